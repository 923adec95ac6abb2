package savings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/savings/internal/metrics"
	"github.com/bobmcallan/savings/internal/models"
)

func accountWithDeposit(t *testing.T, p models.Product, amount string) *models.Account {
	t.Helper()
	a := models.NewAccount("SAV-9", "AUD", p)
	require.NoError(t, a.AddTransaction(&models.Transaction{Type: models.TxDeposit, Date: day(0), Amount: amt(amount)}))
	return a
}

func period(d int, earned string) models.PostingPeriod {
	return models.PostingPeriod{From: day(d - 30), To: day(d), InterestEarned: amt(earned), PostingDate: day(d)}
}

func TestApplyPostingPeriods_CreatesPosting(t *testing.T) {
	a := accountWithDeposit(t, openProduct(), "100")

	out, err := ApplyPostingPeriods(a, []models.PostingPeriod{period(30, "1.00")}, PostingOptions{UpTo: day(40)})
	require.NoError(t, err)

	require.Len(t, out.Created, 1)
	assert.Equal(t, models.TxInterestPosting, out.Created[0].Type)
	assert.True(t, a.Balance().Equal(amt("101")))
	assert.True(t, a.Summary.InterestPosted.Equal(amt("1")))
	assert.True(t, a.Summary.InterestPostedTillDate.Equal(day(30)))
	assert.True(t, a.Summary.LastInterestCalculationDate.Equal(day(40)))
	assert.True(t, out.Created[0].RunningBalance.Equal(amt("101")))
}

func TestApplyPostingPeriods_Idempotent(t *testing.T) {
	a := accountWithDeposit(t, openProduct(), "100")
	periods := []models.PostingPeriod{period(30, "1.00"), period(59, "1.01")}

	_, err := ApplyPostingPeriods(a, periods, PostingOptions{UpTo: day(60)})
	require.NoError(t, err)
	before := len(a.Transactions())

	out, err := ApplyPostingPeriods(a, periods, PostingOptions{UpTo: day(60)})
	require.NoError(t, err)

	assert.False(t, out.Changed())
	assert.Len(t, a.Transactions(), before)
	assert.True(t, a.Balance().Equal(amt("102.01")))
}

func TestApplyPostingPeriods_SkipsPeriodsAfterUpTo(t *testing.T) {
	a := accountWithDeposit(t, openProduct(), "100")

	out, err := ApplyPostingPeriods(a, []models.PostingPeriod{period(30, "1"), period(59, "1")}, PostingOptions{UpTo: day(45)})
	require.NoError(t, err)
	assert.Len(t, out.Created, 1)
}

func TestApplyPostingPeriods_SignOfInterest(t *testing.T) {
	tests := []struct {
		name     string
		earned   string
		wantType models.TransactionType
		wantAmt  string
		balance  string
	}{
		{"positive posts interest", "2.50", models.TxInterestPosting, "2.5", "102.5"},
		{"negative posts overdraft interest", "-1.25", models.TxOverdraftInterest, "1.25", "98.75"},
		{"zero posts nothing", "0", "", "", "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := accountWithDeposit(t, openProduct(), "100")

			out, err := ApplyPostingPeriods(a, []models.PostingPeriod{period(30, tt.earned)}, PostingOptions{UpTo: day(30)})
			require.NoError(t, err)

			if tt.wantType == "" {
				assert.Empty(t, out.Created)
			} else {
				require.Len(t, out.Created, 1)
				assert.Equal(t, tt.wantType, out.Created[0].Type)
				assert.True(t, out.Created[0].Amount.Equal(amt(tt.wantAmt)))
			}
			assert.True(t, a.Balance().Equal(amt(tt.balance)), "balance = %s", a.Balance())
		})
	}
}

func TestApplyPostingPeriods_AccrualAndWithholding(t *testing.T) {
	p := openProduct()
	p.AccrualAccounting = true
	p.WithholdTaxRate = amt("10")
	a := accountWithDeposit(t, p, "100")

	out, err := ApplyPostingPeriods(a, []models.PostingPeriod{period(30, "5.00")}, PostingOptions{UpTo: day(30)})
	require.NoError(t, err)
	require.Len(t, out.Created, 3)

	assert.Equal(t, models.TxInterestPosting, out.Created[0].Type)
	assert.Equal(t, models.TxAccrual, out.Created[1].Type)
	assert.True(t, out.Created[1].Amount.Equal(amt("5")))
	assert.Equal(t, models.TxWithholdTax, out.Created[2].Type)
	assert.True(t, out.Created[2].Amount.Equal(amt("0.5")))

	// accruals are memos; withholding is a debit
	assert.True(t, a.Balance().Equal(amt("104.5")))
	assert.True(t, a.Summary.WithholdTax.Equal(amt("0.5")))
}

func TestApplyPostingPeriods_CorrectionWithReversalRecord(t *testing.T) {
	p := openProduct()
	p.WithholdTaxRate = amt("10")
	a := accountWithDeposit(t, p, "100")
	opts := PostingOptions{UpTo: day(30), PostReversals: true}

	_, err := ApplyPostingPeriods(a, []models.PostingPeriod{period(30, "1.00")}, opts)
	require.NoError(t, err)
	stale := live(a, models.TxInterestPosting)[0]

	out, err := ApplyPostingPeriods(a, []models.PostingPeriod{period(30, "1.50")}, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Corrections)

	assert.True(t, stale.Reversed)
	postings := live(a, models.TxInterestPosting)
	require.Len(t, postings, 1)
	assert.True(t, postings[0].Amount.Equal(amt("1.5")))

	reversals := ofType(a, models.TxReversal)
	require.Len(t, reversals, 1)
	assert.True(t, reversals[0].Amount.Equal(amt("-1")))
	assert.Equal(t, stale.RefNo, reversals[0].ReversalOfRef)

	taxes := live(a, models.TxWithholdTax)
	require.Len(t, taxes, 1)
	assert.True(t, taxes[0].Amount.Equal(amt("0.15")))
	assert.Len(t, ofType(a, models.TxWithholdTax), 2)

	// 100 + 1.50 - 0.15
	assert.True(t, a.Balance().Equal(amt("101.35")))
}

func TestApplyPostingPeriods_CorrectionWithoutReversalRecord(t *testing.T) {
	a := accountWithDeposit(t, openProduct(), "100")

	_, err := ApplyPostingPeriods(a, []models.PostingPeriod{period(30, "1.00")}, PostingOptions{UpTo: day(30)})
	require.NoError(t, err)
	_, err = ApplyPostingPeriods(a, []models.PostingPeriod{period(30, "0.75")}, PostingOptions{UpTo: day(30)})
	require.NoError(t, err)

	assert.Empty(t, ofType(a, models.TxReversal))
	assert.Len(t, ofType(a, models.TxInterestPosting), 2)
	assert.Len(t, live(a, models.TxInterestPosting), 1)
	assert.True(t, a.Balance().Equal(amt("100.75")))
}

func TestApplyPostingPeriods_OverdraftComparedBySign(t *testing.T) {
	a := accountWithDeposit(t, openProduct(), "100")
	opts := PostingOptions{UpTo: day(30)}

	_, err := ApplyPostingPeriods(a, []models.PostingPeriod{period(30, "-2.00")}, opts)
	require.NoError(t, err)

	out, err := ApplyPostingPeriods(a, []models.PostingPeriod{period(30, "-2.00")}, opts)
	require.NoError(t, err)
	assert.False(t, out.Changed(), "unchanged overdraft interest must not be corrected")

	out, err = ApplyPostingPeriods(a, []models.PostingPeriod{period(30, "-3.00")}, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Corrections)
	assert.True(t, a.Balance().Equal(amt("97")))
}

func TestApplyPostingPeriods_CorrectionToZero(t *testing.T) {
	a := accountWithDeposit(t, openProduct(), "100")
	opts := PostingOptions{UpTo: day(30)}

	_, err := ApplyPostingPeriods(a, []models.PostingPeriod{period(30, "1.00")}, opts)
	require.NoError(t, err)
	out, err := ApplyPostingPeriods(a, []models.PostingPeriod{period(30, "0")}, opts)
	require.NoError(t, err)

	assert.Equal(t, 1, out.Corrections)
	assert.Empty(t, live(a, models.TxInterestPosting))
	assert.True(t, a.Balance().Equal(amt("100")))
	assert.True(t, a.Summary.InterestPostedTillDate.IsZero())
}

func TestService_PostInterest_PassesSettingsToCalculator(t *testing.T) {
	calc := &fixedCalculator{periods: []models.PostingPeriod{period(30, "1")}}
	f := newFixture(t, withCalculator(calc))
	f.deposit(t, day(0), "100")

	req := models.PostInterestRequest{UpTo: day(40), PostingDate: models.PostOn(day(30))}
	require.NoError(t, f.svc.PostInterest(f.ctx, f.account, req))
	require.NoError(t, f.svc.PostInterest(f.ctx, f.account, req))

	require.Len(t, calc.requests, 2)
	got := calc.requests[0]
	assert.True(t, got.UpTo.Equal(day(40)))
	assert.True(t, got.PostAtPeriodEnd)
	assert.Equal(t, 1, got.FinancialYearBeginningMonth)
	d, explicit := got.PostingDate.Date()
	assert.True(t, explicit)
	assert.True(t, d.Equal(day(30)))

	assert.Len(t, live(f.account, models.TxInterestPosting), 1)
	assert.NotZero(t, live(f.account, models.TxInterestPosting)[0].ID)
}

func TestService_PostInterest_DefaultsToToday(t *testing.T) {
	calc := &fixedCalculator{}
	f := newFixture(t, withCalculator(calc))

	require.NoError(t, f.svc.PostInterest(f.ctx, f.account, models.PostInterestRequest{}))
	require.Len(t, calc.requests, 1)
	assert.True(t, calc.requests[0].UpTo.Equal(day(90)))
	assert.True(t, calc.requests[0].PostingDate.IsDefault())
}

func TestService_BackdatedDepositCorrectsInterest(t *testing.T) {
	calc := &rateCalculator{rate: amt("0.01"), postingDates: []time.Time{day(30)}}
	f := newFixture(t, withCalculator(calc), withReversals())
	rec := metrics.NewRecorder()
	f.svc.SetMetrics(rec)

	f.deposit(t, day(0), "100")
	require.NoError(t, f.svc.PostInterest(f.ctx, f.account, models.PostInterestRequest{UpTo: day(40)}))
	stale := live(f.account, models.TxInterestPosting)
	require.Len(t, stale, 1)
	assert.True(t, stale[0].Amount.Equal(amt("1")))

	// A deposit dated before the posting changes the balance interest was earned on.
	f.deposit(t, day(15), "50")

	assert.True(t, stale[0].Reversed)
	postings := live(f.account, models.TxInterestPosting)
	require.Len(t, postings, 1)
	assert.True(t, postings[0].Amount.Equal(amt("1.5")))
	assert.Len(t, ofType(f.account, models.TxReversal), 1)
	assert.True(t, f.account.Balance().Equal(amt("151.5")))

	data := f.bridge.last()
	assert.Len(t, data.NewlyReversed, 1)
	assert.Len(t, data.New, 3) // deposit, replacement posting, reversal record

	counts := postingCounts(t, rec)
	assert.Equal(t, 2.0, counts[string(models.TxInterestPosting)])
	assert.NotContains(t, counts, string(models.TxReversal))
}

// postingCounts reads the interest postings counter by transaction type.
func postingCounts(t *testing.T, rec *metrics.Recorder) map[string]float64 {
	t.Helper()
	families, err := rec.Registry().Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "savings_interest_postings_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "type" {
					counts[l.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}
	return counts
}

func TestService_DepositAfterLastPostingSkipsCorrection(t *testing.T) {
	calc := &rateCalculator{rate: amt("0.01"), postingDates: []time.Time{day(30)}}
	f := newFixture(t, withCalculator(calc))

	f.deposit(t, day(0), "100")
	require.NoError(t, f.svc.PostInterest(f.ctx, f.account, models.PostInterestRequest{UpTo: day(40)}))
	before := len(f.account.Transactions())

	f.deposit(t, day(35), "50")
	assert.Len(t, f.account.Transactions(), before+1)
	assert.True(t, f.account.Balance().Equal(amt("151")))
}
