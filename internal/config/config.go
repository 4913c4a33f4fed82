// Package config loads ledger service configuration from environment
// variables, an optional .env file and an optional YAML tax rules file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Store backends understood by LEDGER_STORE.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config represents the application configuration.
type Config struct {
	Environment string
	LogLevel    string
	HTTPAddr    string

	Store       string
	SQLitePath  string
	PostgresDSN string

	Kafka KafkaConfig
	Tax   *TaxConfig
}

// KafkaConfig controls the EntryCreated publisher. No brokers means no publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Load loads configuration from environment variables.
// It loads .env from the current directory if present, or the given path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	tax, err := LoadTaxConfig(os.Getenv("LEDGER_TAX_FILE"))
	if err != nil {
		return nil, err
	}
	if v := os.Getenv("LEDGER_INPUT_TAX_ACCOUNT"); v != "" {
		tax.Default.InputTaxAccount = v
	}
	if v := os.Getenv("LEDGER_OUTPUT_TAX_ACCOUNT"); v != "" {
		tax.Default.OutputTaxAccount = v
	}

	cfg := &Config{
		Environment: getEnvOrDefault("LEDGER_ENV", "development"),
		LogLevel:    os.Getenv("LEDGER_LOG_LEVEL"),
		HTTPAddr:    getEnvOrDefault("LEDGER_HTTP_ADDR", ":8080"),
		Store:       strings.ToLower(getEnvOrDefault("LEDGER_STORE", StoreMemory)),
		SQLitePath:  getEnvOrDefault("LEDGER_SQLITE_PATH", "./data/ledger.db"),
		PostgresDSN: os.Getenv("LEDGER_POSTGRES_DSN"),
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("LEDGER_KAFKA_BROKERS")),
			Topic:   os.Getenv("LEDGER_KAFKA_TOPIC"),
		},
		Tax: tax,
	}

	return cfg, nil
}

// Validate checks that the selected store has what it needs.
func (c *Config) Validate() error {
	var missing []string

	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			missing = append(missing, "LEDGER_SQLITE_PATH")
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			missing = append(missing, "LEDGER_POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unknown LEDGER_STORE %q (want memory, sqlite or postgres)", c.Store)
	}

	if c.Tax == nil || c.Tax.Default.InputTaxAccount == "" {
		missing = append(missing, "LEDGER_INPUT_TAX_ACCOUNT")
	}
	if c.Tax == nil || c.Tax.Default.OutputTaxAccount == "" {
		missing = append(missing, "LEDGER_OUTPUT_TAX_ACCOUNT")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}
	return nil
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
