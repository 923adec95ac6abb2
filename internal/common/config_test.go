package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.True(t, cfg.Savings.InterestPostingAtPeriodEnd)
	assert.False(t, cfg.Savings.ReversalTransactionsAllowed)
	assert.Equal(t, 1, cfg.Savings.FinancialYearBeginningMonth)
	require.NoError(t, cfg.Validate())
}

func TestConfig_PortEnvOverride(t *testing.T) {
	t.Setenv("SAVINGS_PORT", "9090")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestConfig_SavingsEnvOverrides(t *testing.T) {
	t.Setenv("SAVINGS_REVERSALS_ALLOWED", "true")
	t.Setenv("SAVINGS_PIVOT_RELAXING_DAYS", "3")
	t.Setenv("SAVINGS_FINANCIAL_YEAR_START", "7")
	t.Setenv("SAVINGS_STORAGE_BACKEND", "SurrealDB")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	assert.True(t, cfg.Savings.ReversalTransactionsAllowed)
	assert.Equal(t, 3, cfg.Savings.PivotDateRelaxingDays)
	assert.Equal(t, 7, cfg.Savings.FinancialYearBeginningMonth)
	assert.Equal(t, "surrealdb", cfg.Storage.Backend)
}

func TestConfig_InvalidEnvIgnored(t *testing.T) {
	t.Setenv("SAVINGS_PORT", "not-a-port")
	t.Setenv("SAVINGS_REVERSALS_ALLOWED", "maybe")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Savings.ReversalTransactionsAllowed)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "savings.toml")
	content := `
environment = "production"

[storage]
backend = "sqlite"
path = "/var/lib/savings/ledger.db"

[savings]
reversal_transactions_allowed = true
pivot_date_relaxing_days = 2
financial_year_beginning_month = 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "/var/lib/savings/ledger.db", cfg.Storage.Path)
	assert.True(t, cfg.Savings.ReversalTransactionsAllowed)
	assert.Equal(t, 2, cfg.Savings.PivotDateRelaxingDays)
	assert.Equal(t, 4, cfg.Savings.FinancialYearBeginningMonth)
	// untouched keys keep their defaults
	assert.True(t, cfg.Savings.InterestPostingAtPeriodEnd)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfig_MissingFileSkipped(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"), "")
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown backend", "[storage]\nbackend = \"badger\"\n"},
		{"month out of range", "[savings]\nfinancial_year_beginning_month = 13\n"},
		{"negative relax days", "[savings]\npivot_date_relaxing_days = -1\n"},
		{"bad toml", "[savings\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestSchedulerConfig_GetInterestInterval(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"24h", 24 * time.Hour},
		{"90m", 90 * time.Minute},
		{"daily", 0},
		{"-1h", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SchedulerConfig{InterestInterval: tt.in}.GetInterestInterval(), tt.in)
	}

	t.Setenv("SAVINGS_INTEREST_INTERVAL", "12h")
	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)
	assert.Equal(t, 12*time.Hour, cfg.Scheduler.GetInterestInterval())
}
