package models

// TaxRules holds the tax accounts and accepted rates for one company or jurisdiction.
type TaxRules struct {
	InputTaxAccount  string  `yaml:"input_tax_account"`
	OutputTaxAccount string  `yaml:"output_tax_account"`
	Rates            []int64 `yaml:"rates"`
}

// AllowsRate reports whether rate is one of the accepted percentages.
func (r TaxRules) AllowsRate(rate int64) bool {
	for _, allowed := range r.Rates {
		if allowed == rate {
			return true
		}
	}
	return false
}
