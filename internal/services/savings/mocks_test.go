package savings

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/savings/internal/common"
	"github.com/bobmcallan/savings/internal/interfaces"
	"github.com/bobmcallan/savings/internal/models"
)

// --- in-memory ledger store ---

type memStore struct {
	mu       sync.Mutex
	nextID   int64
	nextHold int64
	saved    map[int64]*models.Transaction
	holds    []*models.OnHoldTransaction
	accounts map[string]*models.Account

	bulkSaves    int
	accountSaves int
}

var _ interfaces.LedgerStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		saved:    make(map[int64]*models.Transaction),
		accounts: make(map[string]*models.Account),
	}
}

func (m *memStore) CreateAccount(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.ID] = a
	return nil
}

func (m *memStore) ListAccountIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memStore) LoadAccount(_ context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, &models.LedgerError{Kind: models.ErrAccountNotFound, AccountID: id}
	}
	return a, nil
}

func (m *memStore) SaveAccount(ctx context.Context, a *models.Account) error {
	for _, tx := range a.Transactions() {
		if err := m.SaveTransaction(ctx, tx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a.Version++
	m.accounts[a.ID] = a
	m.accountSaves++
	return nil
}

func (m *memStore) SaveTransaction(_ context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.ID == 0 {
		m.nextID++
		tx.ID = m.nextID
	}
	m.saved[tx.ID] = tx.Clone()
	return nil
}

func (m *memStore) SaveTransactions(ctx context.Context, txs []*models.Transaction) error {
	m.mu.Lock()
	m.bulkSaves++
	m.mu.Unlock()
	for _, tx := range txs {
		if err := m.SaveTransaction(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) GetTransaction(_ context.Context, accountID string, id int64) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.saved[id]
	if !ok || tx.AccountID != accountID {
		return nil, &models.LedgerError{Kind: models.ErrTransactionNotFound, AccountID: accountID, TransactionID: id}
	}
	return tx.Clone(), nil
}

func (m *memStore) OnHoldTransactions(_ context.Context, accountID string) ([]*models.OnHoldTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.OnHoldTransaction
	for _, h := range m.holds {
		if h.AccountID == accountID && !h.Reversed {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memStore) SaveOnHold(_ context.Context, h *models.OnHoldTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h.ID == 0 {
		m.nextHold++
		h.ID = m.nextHold
	}
	m.holds = append(m.holds, h)
	return nil
}

func (m *memStore) Atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- owners ---

type mockOwners struct {
	clients map[string]bool
	groups  map[string]bool
}

func (o *mockOwners) ClientActive(_ context.Context, id string) (bool, error) {
	active, ok := o.clients[id]
	return !ok || active, nil
}

func (o *mockOwners) GroupActive(_ context.Context, id string) (bool, error) {
	active, ok := o.groups[id]
	return !ok || active, nil
}

func (o *mockOwners) SetClientActive(_ context.Context, id string, active bool) error {
	o.clients[id] = active
	return nil
}

func (o *mockOwners) SetGroupActive(_ context.Context, id string, active bool) error {
	o.groups[id] = active
	return nil
}

// --- accounting bridge ---

type mockBridge struct {
	calls []models.AccountingBridgeData
	err   error
}

func (b *mockBridge) CreateJournalEntries(_ context.Context, data models.AccountingBridgeData) error {
	b.calls = append(b.calls, data)
	return b.err
}

func (b *mockBridge) last() models.AccountingBridgeData {
	return b.calls[len(b.calls)-1]
}

// --- interest calculators ---

// fixedCalculator returns the same periods on every call.
type fixedCalculator struct {
	periods  []models.PostingPeriod
	requests []models.InterestCalculationRequest
}

func (c *fixedCalculator) CalculatePostingPeriods(_ context.Context, _ *models.Account, req models.InterestCalculationRequest) ([]models.PostingPeriod, error) {
	c.requests = append(c.requests, req)
	return c.periods, nil
}

// rateCalculator earns rate on the principal balance held at each posting
// date, so backdated principal changes alter the computed interest.
type rateCalculator struct {
	rate         decimal.Decimal
	postingDates []time.Time
}

func (c *rateCalculator) CalculatePostingPeriods(_ context.Context, a *models.Account, req models.InterestCalculationRequest) ([]models.PostingPeriod, error) {
	var periods []models.PostingPeriod
	from := time.Time{}
	for _, pd := range c.postingDates {
		if pd.After(req.UpTo) {
			break
		}
		principal := decimal.Zero
		for _, tx := range a.Transactions() {
			if tx.Date.After(pd) || tx.Type.IsInterestPosting() || tx.Type == models.TxWithholdTax {
				continue
			}
			principal = principal.Add(tx.SignedAmount())
		}
		periods = append(periods, models.PostingPeriod{
			From:           from,
			To:             pd,
			InterestEarned: principal.Mul(c.rate).Round(2),
			PostingDate:    pd,
		})
		from = pd.AddDate(0, 0, 1)
	}
	return periods, nil
}

// --- fixtures ---

func day(n int) time.Time {
	return time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func openProduct() models.Product {
	return models.Product{
		Name:            "passbook",
		AllowDeposit:    true,
		AllowWithdrawal: true,
		AllowModify:     true,
	}
}

type fixture struct {
	svc     *Service
	store   *memStore
	owners  *mockOwners
	bridge  *mockBridge
	account *models.Account
	ctx     context.Context
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	savings    common.SavingsConfig
	product    models.Product
	calculator interfaces.InterestCalculator
	today      time.Time
}

func withReversals() fixtureOption {
	return func(c *fixtureConfig) { c.savings.ReversalTransactionsAllowed = true }
}

func withRelaxDays(n int) fixtureOption {
	return func(c *fixtureConfig) { c.savings.PivotDateRelaxingDays = n }
}

func withProduct(p models.Product) fixtureOption {
	return func(c *fixtureConfig) { c.product = p }
}

func withCalculator(calc interfaces.InterestCalculator) fixtureOption {
	return func(c *fixtureConfig) { c.calculator = calc }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{
		savings:    common.NewDefaultConfig().Savings,
		product:    openProduct(),
		calculator: &fixedCalculator{},
		today:      day(90),
	}
	for _, o := range opts {
		o(&cfg)
	}

	store := newMemStore()
	owners := &mockOwners{clients: map[string]bool{}, groups: map[string]bool{}}
	bridge := &mockBridge{}
	svc := NewService(store, owners, common.NewSettings(nil, cfg.savings), cfg.calculator, bridge, common.NewSilentLogger())
	today := cfg.today
	svc.SetClock(func() time.Time { return today })

	account := models.NewAccount("SAV-1", "AUD", cfg.product)
	account.ClientID = "C-1"
	return &fixture{svc: svc, store: store, owners: owners, bridge: bridge, account: account, ctx: context.Background()}
}

func (f *fixture) deposit(t *testing.T, d time.Time, amount string) *models.Transaction {
	t.Helper()
	return f.depositMode(t, d, amount, models.ModeNormal)
}

func (f *fixture) depositMode(t *testing.T, d time.Time, amount string, mode models.ReconciliationMode) *models.Transaction {
	t.Helper()
	res, err := f.svc.HandleDeposit(f.ctx, f.account, models.TransactionRequest{
		Date:   d,
		Amount: amt(amount),
		Flags:  models.TransactionFlags{RegularTransaction: true, Mode: mode},
	})
	if err != nil {
		t.Fatalf("deposit %s on %s: %v", amount, d.Format("2006-01-02"), err)
	}
	return res.Transaction
}

func (f *fixture) withdraw(t *testing.T, d time.Time, amount string, flags models.TransactionFlags) (*models.TransactionResult, error) {
	t.Helper()
	flags.RegularTransaction = true
	return f.svc.HandleWithdrawal(f.ctx, f.account, models.TransactionRequest{Date: d, Amount: amt(amount), Flags: flags})
}

func live(a *models.Account, txType models.TransactionType) []*models.Transaction {
	var out []*models.Transaction
	for _, tx := range a.Transactions() {
		if tx.Type == txType && !tx.Reversed {
			out = append(out, tx)
		}
	}
	return out
}

func ofType(a *models.Account, txType models.TransactionType) []*models.Transaction {
	var out []*models.Transaction
	for _, tx := range a.Transactions() {
		if tx.Type == txType {
			out = append(out, tx)
		}
	}
	return out
}
