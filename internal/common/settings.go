package common

import (
	"context"
	"strconv"

	"github.com/bobmcallan/savings/internal/interfaces"
)

// System KV keys that override [savings] at runtime.
const (
	KeyInterestPostingAtPeriodEnd  = "savings.interest_posting_at_period_end"
	KeyReversalTransactionsAllowed = "savings.reversal_transactions_allowed"
	KeyFinancialYearBeginningMonth = "savings.financial_year_beginning_month"
	KeyPivotDateRelaxingDays       = "savings.pivot_date_relaxing_days"
)

// Settings resolves savings settings.
// Priority: system KV (runtime) > config file (which already includes env overrides).
type Settings struct {
	store interfaces.SystemKVStore
	cfg   SavingsConfig
}

var _ interfaces.ConfigProvider = (*Settings)(nil)

// NewSettings creates a resolver. store may be nil.
func NewSettings(store interfaces.SystemKVStore, cfg SavingsConfig) *Settings {
	return &Settings{store: store, cfg: cfg}
}

func (s *Settings) InterestPostingAtPeriodEnd(ctx context.Context) bool {
	return s.resolveBool(ctx, KeyInterestPostingAtPeriodEnd, s.cfg.InterestPostingAtPeriodEnd)
}

func (s *Settings) ReversalTransactionsAllowed(ctx context.Context) bool {
	return s.resolveBool(ctx, KeyReversalTransactionsAllowed, s.cfg.ReversalTransactionsAllowed)
}

func (s *Settings) FinancialYearBeginningMonth(ctx context.Context) int {
	m := s.resolveInt(ctx, KeyFinancialYearBeginningMonth, s.cfg.FinancialYearBeginningMonth)
	if m < 1 || m > 12 {
		return s.cfg.FinancialYearBeginningMonth
	}
	return m
}

func (s *Settings) PivotDateRelaxingDays(ctx context.Context) int {
	n := s.resolveInt(ctx, KeyPivotDateRelaxingDays, s.cfg.PivotDateRelaxingDays)
	if n < 0 {
		return s.cfg.PivotDateRelaxingDays
	}
	return n
}

func (s *Settings) lookup(ctx context.Context, key string) (string, bool) {
	if s.store == nil {
		return "", false
	}
	val, err := s.store.GetSystemKV(ctx, key)
	if err != nil || val == "" {
		return "", false
	}
	return val, true
}

func (s *Settings) resolveBool(ctx context.Context, key string, fallback bool) bool {
	if val, ok := s.lookup(ctx, key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func (s *Settings) resolveInt(ctx context.Context, key string, fallback int) int {
	if val, ok := s.lookup(ctx, key); ok {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}
