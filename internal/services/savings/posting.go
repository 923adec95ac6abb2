package savings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/savings/internal/models"
)

var hundred = decimal.NewFromInt(100)

// PostingOptions parameterizes one run of the interest posting engine.
type PostingOptions struct {
	UpTo          time.Time // periods posted after this date are ignored
	Mode          models.ReconciliationMode
	PostReversals bool // attach reversal records for corrected postings
	RelaxDays     int
}

// PostingOutcome reports what a posting run changed.
type PostingOutcome struct {
	Created     []*models.Transaction
	Reversed    []*models.Transaction
	Corrections int
}

// Changed reports whether the run touched the ledger.
func (o PostingOutcome) Changed() bool {
	return len(o.Created) > 0 || len(o.Reversed) > 0
}

// ApplyPostingPeriods materializes computed periods as interest, accrual and
// withholding entries, correcting any posting whose amount has changed.
// Re-applying unchanged periods is a no-op.
func ApplyPostingPeriods(account *models.Account, periods []models.PostingPeriod, opts PostingOptions) (PostingOutcome, error) {
	return applyPostingPeriods(newLedgerScope(account, opts.Mode), periods, opts)
}

func applyPostingPeriods(scope ledgerScope, periods []models.PostingPeriod, opts PostingOptions) (PostingOutcome, error) {
	var out PostingOutcome
	account := scope.account
	upTo := models.Day(opts.UpTo)
	recalc := false

	for _, period := range periods {
		date := models.Day(period.PostingDate)
		if date.After(upTo) {
			continue
		}

		existing := scope.findPosting(date)
		if existing == nil {
			created, err := postPeriod(account, period, date, account.Product.WithholdsTax())
			if err != nil {
				return out, err
			}
			out.Created = append(out.Created, created...)
			recalc = true
			continue
		}

		if !existing.HasNotAmount(period.InterestEarned) {
			continue
		}

		reversal, err := account.Reverse(existing)
		if err != nil {
			return out, err
		}
		out.Reversed = append(out.Reversed, existing)
		out.Corrections++
		if opts.PostReversals {
			if err := account.AddTransaction(reversal); err != nil {
				return out, err
			}
			out.Created = append(out.Created, reversal)
		}

		reapplyWithholding := false
		if wh := scope.withholdingOn(date); wh != nil {
			if _, err := account.Reverse(wh); err != nil {
				return out, err
			}
			out.Reversed = append(out.Reversed, wh)
			reapplyWithholding = true
		}

		created, err := postPeriod(account, period, date, reapplyWithholding)
		if err != nil {
			return out, err
		}
		out.Created = append(out.Created, created...)
		recalc = true
	}

	summaryOpts := models.SummaryOptions{CalculatedOn: upTo, RelaxDays: opts.RelaxDays}
	if recalc {
		recalculate(scope, scope.opening(), time.Time{}, opts.PostReversals, summaryOpts)
	} else {
		account.Summary = scope.summarize(summaryOpts)
	}
	return out, nil
}

// postPeriod appends the posting for one period: interest for a positive
// amount, overdraft interest for a negative one and nothing for zero.
func postPeriod(account *models.Account, period models.PostingPeriod, date time.Time, withhold bool) ([]*models.Transaction, error) {
	earned := period.InterestEarned
	if earned.IsZero() {
		return nil, nil
	}

	txType := models.TxInterestPosting
	if earned.IsNegative() {
		txType = models.TxOverdraftInterest
	}
	amount := earned.Abs()

	posting := newEntry(txType, date, amount, period.UserPosting)
	if err := account.AddTransaction(posting); err != nil {
		return nil, err
	}
	created := []*models.Transaction{posting}

	if account.Product.AccrualAccounting {
		accrual := newEntry(models.TxAccrual, date, amount, period.UserPosting)
		if err := account.AddTransaction(accrual); err != nil {
			return created, err
		}
		created = append(created, accrual)
	}

	if withhold && txType == models.TxInterestPosting {
		tax := amount.Mul(account.Product.WithholdTaxRate).Div(hundred).Round(2)
		if tax.IsPositive() {
			wh := newEntry(models.TxWithholdTax, date, tax, period.UserPosting)
			if err := account.AddTransaction(wh); err != nil {
				return created, err
			}
			created = append(created, wh)
		}
	}
	return created, nil
}

func newEntry(txType models.TransactionType, date time.Time, amount decimal.Decimal, userPosting bool) *models.Transaction {
	return &models.Transaction{
		Type:        txType,
		Date:        date,
		Amount:      amount,
		RefNo:       uuid.NewString(),
		UserPosting: userPosting,
		CreatedAt:   time.Now().UTC(),
	}
}

// postInterest asks the calculator for periods through req.UpTo and applies them.
func (s *Service) postInterest(ctx context.Context, account *models.Account, scope ledgerScope, req models.PostInterestRequest, postReversals bool) error {
	upTo := models.Day(req.UpTo)
	if upTo.IsZero() {
		upTo = s.today()
	}

	periods, err := s.calculator.CalculatePostingPeriods(ctx, account, models.InterestCalculationRequest{
		UpTo:                        upTo,
		InterestTransfer:            req.InterestTransfer,
		PostAtPeriodEnd:             s.config.InterestPostingAtPeriodEnd(ctx),
		FinancialYearBeginningMonth: s.config.FinancialYearBeginningMonth(ctx),
		PostingDate:                 req.PostingDate,
		Mode:                        scope.mode,
	})
	if err != nil {
		return fmt.Errorf("failed to calculate posting periods for account %s: %w", account.ID, err)
	}

	for _, p := range periods {
		s.logger.Debug().
			Str("account", account.ID).
			Time("posting_date", p.PostingDate).
			Str("interest_earned", p.InterestEarned.String()).
			Msg("Posting period")
	}

	out, err := applyPostingPeriods(scope, periods, PostingOptions{
		UpTo:          upTo,
		Mode:          scope.mode,
		PostReversals: postReversals,
		RelaxDays:     s.config.PivotDateRelaxingDays(ctx),
	})
	if err != nil {
		return err
	}

	for _, tx := range out.Created {
		if tx.Type == models.TxReversal {
			continue
		}
		s.metrics.Posting(string(tx.Type))
	}
	for i := 0; i < out.Corrections; i++ {
		s.metrics.Correction()
	}
	if out.Changed() {
		s.logger.Info().
			Str("account", account.ID).
			Int("periods", len(periods)).
			Int("created", len(out.Created)).
			Int("corrections", out.Corrections).
			Str("mode", scope.mode.String()).
			Msg("Interest posted")
	}
	return nil
}

// refreshBalances is the lightweight path: running balances and summary are
// recomputed without touching existing postings.
func (s *Service) refreshBalances(ctx context.Context, scope ledgerScope, postReversals bool) {
	recalculate(scope, scope.opening(), time.Time{}, postReversals, models.SummaryOptions{
		CalculatedOn: scope.account.Summary.LastInterestCalculationDate,
		RelaxDays:    s.config.PivotDateRelaxingDays(ctx),
	})
}
