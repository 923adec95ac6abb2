// Package common provides shared utilities for the savings engine
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the savings engine
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Savings     SavingsConfig   `toml:"savings"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig selects and configures the ledger store backend.
type StorageConfig struct {
	Backend   string `toml:"backend"` // "sqlite" or "surrealdb"
	Path      string `toml:"path"`    // sqlite database file
	Address   string `toml:"address"` // surrealdb websocket endpoint
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// SavingsConfig holds the ledger-wide posting settings.
type SavingsConfig struct {
	InterestPostingAtPeriodEnd  bool `toml:"interest_posting_at_period_end"`
	ReversalTransactionsAllowed bool `toml:"reversal_transactions_allowed"`
	FinancialYearBeginningMonth int  `toml:"financial_year_beginning_month"`
	PivotDateRelaxingDays       int  `toml:"pivot_date_relaxing_days"`
}

// SchedulerConfig controls the background interest posting job.
type SchedulerConfig struct {
	InterestInterval string `toml:"interest_interval"` // Go duration; empty disables the job
}

// GetInterestInterval returns the posting interval, or 0 when disabled or invalid.
func (c SchedulerConfig) GetInterestInterval() time.Duration {
	if c.InterestInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(c.InterestInterval)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Backend:   "sqlite",
			Path:      "data/savings.db",
			Address:   "ws://localhost:8000/rpc",
			Namespace: "savings",
			Database:  "ledger",
			Username:  "root",
			Password:  "root",
		},
		Savings: SavingsConfig{
			InterestPostingAtPeriodEnd:  true,
			ReversalTransactionsAllowed: false,
			FinancialYearBeginningMonth: 1,
			PivotDateRelaxingDays:       0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SAVINGS_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("SAVINGS_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("SAVINGS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("SAVINGS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if backend := os.Getenv("SAVINGS_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = strings.ToLower(backend)
	}
	if path := os.Getenv("SAVINGS_STORAGE_PATH"); path != "" {
		config.Storage.Path = path
	}
	if addr := os.Getenv("SAVINGS_STORAGE_ADDRESS"); addr != "" {
		config.Storage.Address = addr
	}

	if v := os.Getenv("SAVINGS_REVERSALS_ALLOWED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Savings.ReversalTransactionsAllowed = b
		}
	}
	if v := os.Getenv("SAVINGS_PIVOT_RELAXING_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Savings.PivotDateRelaxingDays = n
		}
	}
	if v := os.Getenv("SAVINGS_INTEREST_INTERVAL"); v != "" {
		config.Scheduler.InterestInterval = v
	}
	if v := os.Getenv("SAVINGS_FINANCIAL_YEAR_START"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Savings.FinancialYearBeginningMonth = n
		}
	}
}

// Validate rejects settings the ledger cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "sqlite", "surrealdb":
	default:
		return fmt.Errorf("unsupported storage backend %q", c.Storage.Backend)
	}
	if m := c.Savings.FinancialYearBeginningMonth; m < 1 || m > 12 {
		return fmt.Errorf("financial_year_beginning_month must be 1-12, got %d", m)
	}
	if c.Savings.PivotDateRelaxingDays < 0 {
		return fmt.Errorf("pivot_date_relaxing_days must not be negative")
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
