package config

import (
	"fmt"
	"os"

	"github.com/sheikh-saqib/double-entry-ledger/internal/models"
	"gopkg.in/yaml.v3"
)

// TaxConfig maps companies (or jurisdictions) to the tax accounts and rates
// used when invoices are posted. Companies without an entry use Default.
type TaxConfig struct {
	Default   models.TaxRules            `yaml:"default"`
	Companies map[string]models.TaxRules `yaml:"companies"`
}

// DefaultTaxConfig uses the Spanish PGC accounts 472/477 and the 4/10/21 rates.
func DefaultTaxConfig() *TaxConfig {
	return &TaxConfig{
		Default: models.TaxRules{
			InputTaxAccount:  "472",
			OutputTaxAccount: "477",
			Rates:            []int64{4, 10, 21},
		},
		Companies: map[string]models.TaxRules{},
	}
}

// LoadTaxConfig reads a YAML tax file. An empty path yields DefaultTaxConfig.
func LoadTaxConfig(path string) (*TaxConfig, error) {
	cfg := DefaultTaxConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tax file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse tax file %s: %w", path, err)
	}

	for company, rules := range cfg.Companies {
		cfg.Companies[company] = cfg.inherit(rules)
	}
	return cfg, nil
}

// inherit fills the blanks of a company rule from the default one.
func (c *TaxConfig) inherit(r models.TaxRules) models.TaxRules {
	if r.InputTaxAccount == "" {
		r.InputTaxAccount = c.Default.InputTaxAccount
	}
	if r.OutputTaxAccount == "" {
		r.OutputTaxAccount = c.Default.OutputTaxAccount
	}
	if len(r.Rates) == 0 {
		r.Rates = c.Default.Rates
	}
	return r
}

// RulesFor returns the rules for companyID. It satisfies ledger.TaxRulesSource.
func (c *TaxConfig) RulesFor(companyID string) (models.TaxRules, error) {
	rules := c.Default
	if r, ok := c.Companies[companyID]; ok {
		rules = c.inherit(r)
	}

	if rules.InputTaxAccount == "" || rules.OutputTaxAccount == "" {
		return models.TaxRules{}, fmt.Errorf("no tax accounts configured for company %q", companyID)
	}
	return rules, nil
}
