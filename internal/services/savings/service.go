// Package savings posts deposits, withdrawals, reversals and interest against
// a savings account and keeps its running balances and summary reconciled.
package savings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/savings/internal/common"
	"github.com/bobmcallan/savings/internal/interfaces"
	"github.com/bobmcallan/savings/internal/metrics"
	"github.com/bobmcallan/savings/internal/models"
)

// Compile-time interface check
var _ interfaces.SavingsService = (*Service)(nil)

// Service implements SavingsService
type Service struct {
	store      interfaces.LedgerStore
	owners     interfaces.OwnerDirectory
	config     interfaces.ConfigProvider
	calculator interfaces.InterestCalculator
	bridge     interfaces.AccountingBridge
	metrics    *metrics.Recorder
	logger     *common.Logger
	now        func() time.Time
}

// NewService creates a new savings service. owners and bridge may be nil.
func NewService(
	store interfaces.LedgerStore,
	owners interfaces.OwnerDirectory,
	config interfaces.ConfigProvider,
	calculator interfaces.InterestCalculator,
	bridge interfaces.AccountingBridge,
	logger *common.Logger,
) *Service {
	return &Service{
		store:      store,
		owners:     owners,
		config:     config,
		calculator: calculator,
		bridge:     bridge,
		logger:     logger,
		now:        time.Now,
	}
}

// SetMetrics attaches a Prometheus recorder.
func (s *Service) SetMetrics(m *metrics.Recorder) { s.metrics = m }

// SetClock overrides the business clock.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) today() time.Time { return models.Day(s.now()) }

// HandleDeposit posts a deposit.
func (s *Service) HandleDeposit(ctx context.Context, account *models.Account, req models.TransactionRequest) (*models.TransactionResult, error) {
	return s.handleCredit(ctx, account, req, models.TxDeposit)
}

// HandleDividendPayout posts a dividend as a regular credit. Credits cannot
// push the balance negative, so the balance check is skipped.
func (s *Service) HandleDividendPayout(ctx context.Context, account *models.Account, req models.TransactionRequest) (*models.TransactionResult, error) {
	req.Flags.RegularTransaction = true
	req.Flags.AccountTransfer = false
	req.Flags.SkipBalanceCheck = true
	return s.handleCredit(ctx, account, req, models.TxDividendPayout)
}

func (s *Service) handleCredit(ctx context.Context, account *models.Account, req models.TransactionRequest, txType models.TransactionType) (result *models.TransactionResult, err error) {
	started := time.Now()
	defer func() { s.metrics.Operation(string(txType), req.Flags.Mode.String(), started, err) }()

	if err := checkTransactionAllowed(account, txType, req.Flags.RegularTransaction); err != nil {
		return nil, err
	}

	scope := newLedgerScope(account, req.Flags.Mode)
	snapshot := snapshotIDs(scope)

	tx, err := s.appendTransaction(account, txType, req)
	if err != nil {
		return nil, err
	}

	// Deposits never transfer interest.
	if err := s.reconcileAfter(ctx, scope, tx.Date, false, s.config.ReversalTransactionsAllowed(ctx)); err != nil {
		return nil, err
	}

	if err := s.validateWithHolds(ctx, account, req.Flags.Mode, string(txType), req.Flags.SkipBalanceCheck, true); err != nil {
		return nil, err
	}

	if err := s.persist(ctx, scope, tx); err != nil {
		return nil, err
	}
	if err := s.postJournalEntries(ctx, scope, snapshot, req.Flags.AccountTransfer); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("account", account.ID).
		Str("type", string(txType)).
		Int64("transaction", tx.ID).
		Str("amount", tx.Amount.String()).
		Str("balance", account.Balance().String()).
		Msg("Credit posted")

	return &models.TransactionResult{
		Transaction: tx,
		Events:      []models.Event{s.event(models.EventDepositCompleted, tx)},
	}, nil
}

// HandleWithdrawal posts a withdrawal and, when requested, its withdrawal fee.
func (s *Service) HandleWithdrawal(ctx context.Context, account *models.Account, req models.TransactionRequest) (result *models.TransactionResult, err error) {
	started := time.Now()
	defer func() { s.metrics.Operation("withdrawal", req.Flags.Mode.String(), started, err) }()

	if err := checkTransactionAllowed(account, models.TxWithdrawal, req.Flags.RegularTransaction); err != nil {
		return nil, err
	}

	scope := newLedgerScope(account, req.Flags.Mode)
	snapshot := snapshotIDs(scope)

	tx, err := s.appendTransaction(account, models.TxWithdrawal, req)
	if err != nil {
		return nil, err
	}
	pending := []*models.Transaction{tx}

	if fee := account.Product.WithdrawalFee; req.Flags.ApplyFee && fee.IsPositive() {
		feeTx := newEntry(models.TxWithdrawalFee, tx.Date, fee, false)
		if err := account.AddTransaction(feeTx); err != nil {
			return nil, err
		}
		pending = append(pending, feeTx)
	}

	if err := s.reconcileAfter(ctx, scope, tx.Date, req.Flags.InterestTransfer, s.config.ReversalTransactionsAllowed(ctx)); err != nil {
		return nil, err
	}

	if err := s.validateWithHolds(ctx, account, req.Flags.Mode, "withdrawal", req.Flags.SkipBalanceCheck, false); err != nil {
		return nil, err
	}

	// The fee is saved straight after the withdrawal so it takes the next id.
	if err := s.persist(ctx, scope, pending...); err != nil {
		return nil, err
	}
	if err := s.postJournalEntries(ctx, scope, snapshot, req.Flags.AccountTransfer); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("account", account.ID).
		Int64("transaction", tx.ID).
		Str("amount", tx.Amount.String()).
		Bool("fee", len(pending) > 1).
		Str("balance", account.Balance().String()).
		Msg("Withdrawal posted")

	return &models.TransactionResult{
		Transaction: tx,
		Events:      []models.Event{s.event(models.EventWithdrawalCompleted, tx)},
	}, nil
}

// HandleReversal reverses each original and returns the reversal built for
// each, in input order. Reversal records join the ledger only when reversal
// transactions are enabled.
func (s *Service) HandleReversal(ctx context.Context, account *models.Account, originals []*models.Transaction, mode models.ReconciliationMode) (reversals []*models.Transaction, err error) {
	started := time.Now()
	defer func() { s.metrics.Operation("reversal", mode.String(), started, err) }()

	if len(originals) == 0 {
		return nil, &models.LedgerError{Kind: models.ErrInvalidTransaction, AccountID: account.ID, Action: "reversal", Detail: "nothing to reverse"}
	}

	postReversals := s.config.ReversalTransactionsAllowed(ctx)
	scope := newLedgerScope(account, mode)
	snapshot := snapshotIDs(scope)

	reversals = make([]*models.Transaction, 0, len(originals))
	for _, orig := range originals {
		if err := ValidatePivotDate(account, orig.Date, mode); err != nil {
			return nil, err
		}
		reversal, err := account.Reverse(orig)
		if err != nil {
			return nil, err
		}
		if postReversals {
			if err := account.AddTransaction(reversal); err != nil {
				return nil, err
			}
		}
		reversals = append(reversals, reversal)
	}

	for _, orig := range originals {
		if orig.RequiresInterestRecalculation() && scope.isBeforeLastPosting(orig.Date) {
			req := models.PostInterestRequest{UpTo: s.today(), PostingDate: models.DefaultPostingDate(), Mode: mode}
			if err := s.postInterest(ctx, account, scope, req, postReversals); err != nil {
				return nil, err
			}
		} else {
			s.refreshBalances(ctx, scope, postReversals)
		}
		if err := ValidatePivotDate(account, orig.Date, mode); err != nil {
			return nil, err
		}
		if err := ValidateBalanceMinimal(account, orig.Amount, mode, false); err != nil {
			return nil, err
		}
		account.ActivateBasedOnBalance()
	}

	if err := s.persist(ctx, scope); err != nil {
		return nil, err
	}
	if err := s.postJournalEntries(ctx, scope, snapshot, false); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("account", account.ID).
		Int("reversed", len(reversals)).
		Bool("posted", postReversals).
		Str("balance", account.Balance().String()).
		Msg("Transactions reversed")

	return reversals, nil
}

// UndoTransaction reverses a persisted transaction in place, together with
// the withdrawal fee saved directly after a withdrawal.
func (s *Service) UndoTransaction(ctx context.Context, account *models.Account, transactionID int64, mode models.ReconciliationMode) (tx *models.Transaction, err error) {
	started := time.Now()
	defer func() { s.metrics.Operation("undo", mode.String(), started, err) }()

	tx, ok := account.TransactionByID(transactionID)
	if !ok {
		return nil, &models.LedgerError{Kind: models.ErrTransactionNotFound, AccountID: account.ID, TransactionID: transactionID, Action: "undo"}
	}

	scope := newLedgerScope(account, mode)
	snapshot := snapshotIDs(scope)

	if err := ValidatePivotDate(account, tx.Date, mode); err != nil {
		return nil, err
	}
	if !account.Product.AllowModify {
		return nil, &models.LedgerError{Kind: models.ErrModificationNotAllowed, AccountID: account.ID, TransactionID: transactionID, Action: "undo"}
	}
	if !account.IsActive() {
		return nil, &models.LedgerError{Kind: models.ErrAccountNotActive, AccountID: account.ID, TransactionID: transactionID, Action: "undo"}
	}

	if _, err := account.Reverse(tx); err != nil {
		return nil, err
	}

	if tx.Type == models.TxWithdrawal {
		if err := s.undoWithdrawalFee(ctx, account, tx.ID+1); err != nil {
			return nil, err
		}
	}

	if err := s.CheckOwnerActive(ctx, account); err != nil {
		return nil, err
	}

	if tx.RequiresInterestRecalculation() && scope.isBeforeLastPosting(tx.Date) {
		req := models.PostInterestRequest{UpTo: s.today(), PostingDate: models.DefaultPostingDate(), Mode: mode}
		if err := s.postInterest(ctx, account, scope, req, false); err != nil {
			return nil, err
		}
	} else {
		s.refreshBalances(ctx, scope, false)
	}

	if err := s.validateWithHolds(ctx, account, mode, "undo", false, false); err != nil {
		return nil, err
	}
	account.ActivateBasedOnBalance()

	if err := s.persist(ctx, scope); err != nil {
		return nil, err
	}
	if err := s.postJournalEntries(ctx, scope, snapshot, false); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("account", account.ID).
		Int64("transaction", tx.ID).
		Str("type", string(tx.Type)).
		Str("balance", account.Balance().String()).
		Msg("Transaction undone")

	return tx, nil
}

func (s *Service) undoWithdrawalFee(ctx context.Context, account *models.Account, feeID int64) error {
	stored, err := s.store.GetTransaction(ctx, account.ID, feeID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to look up withdrawal fee %d: %w", feeID, err)
	}
	if !stored.IsWithdrawalFeeAndNotReversed() {
		return nil
	}
	fee, ok := account.TransactionByID(feeID)
	if !ok || fee.Reversed {
		return nil
	}
	_, err = account.Reverse(fee)
	return err
}

// PostInterest posts and corrects interest through req.UpTo, then persists
// the account and emits the accounting diff.
func (s *Service) PostInterest(ctx context.Context, account *models.Account, req models.PostInterestRequest) (err error) {
	started := time.Now()
	defer func() { s.metrics.Operation("post_interest", req.Mode.String(), started, err) }()

	scope := newLedgerScope(account, req.Mode)
	snapshot := snapshotIDs(scope)

	if err := s.postInterest(ctx, account, scope, req, s.config.ReversalTransactionsAllowed(ctx)); err != nil {
		return err
	}
	if err := s.persist(ctx, scope); err != nil {
		return err
	}
	return s.postJournalEntries(ctx, scope, snapshot, false)
}

// HandleHold earmarks funds against the account outside the ledger. A lien
// may exceed the available balance; any other hold is validated together
// with the holds already in place.
func (s *Service) HandleHold(ctx context.Context, account *models.Account, amount decimal.Decimal, date time.Time, lienAllowed bool) (*models.OnHoldTransaction, error) {
	if !amount.IsPositive() {
		return nil, &models.LedgerError{Kind: models.ErrInvalidTransaction, AccountID: account.ID, Action: "hold", Detail: "amount must be positive"}
	}
	if date.IsZero() {
		date = s.today()
	}
	hold := &models.OnHoldTransaction{
		AccountID: account.ID,
		Amount:    amount,
		Date:      models.Day(date),
		Lien:      lienAllowed,
		CreatedAt: s.now().UTC(),
	}

	if !lienAllowed {
		holds, err := s.activeHolds(ctx, account, false)
		if err != nil {
			return nil, err
		}
		if err := ValidateBalance(account, append(holds, hold), models.ModeNormal, "hold", false); err != nil {
			return nil, err
		}
	}

	if err := s.store.SaveOnHold(ctx, hold); err != nil {
		return nil, fmt.Errorf("failed to save hold: %w", err)
	}
	account.OnHoldFunds = account.OnHoldFunds.Add(amount)
	if err := s.store.SaveAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to save account %s: %w", account.ID, err)
	}
	return hold, nil
}

// CheckOwnerActive fails if the account's client or group is inactive.
func (s *Service) CheckOwnerActive(ctx context.Context, account *models.Account) error {
	if s.owners == nil {
		return nil
	}
	if account.ClientID != "" {
		active, err := s.owners.ClientActive(ctx, account.ClientID)
		if err != nil {
			return fmt.Errorf("failed to look up client %s: %w", account.ClientID, err)
		}
		if !active {
			return &models.LedgerError{Kind: models.ErrOwnerInactive, AccountID: account.ID, Detail: "client " + account.ClientID}
		}
	}
	if account.GroupID != "" {
		active, err := s.owners.GroupActive(ctx, account.GroupID)
		if err != nil {
			return fmt.Errorf("failed to look up group %s: %w", account.GroupID, err)
		}
		if !active {
			return &models.LedgerError{Kind: models.ErrOwnerInactive, AccountID: account.ID, Detail: "group " + account.GroupID}
		}
	}
	return nil
}

// PostJournalEntries emits the diff between snapshot and the current ledger.
func (s *Service) PostJournalEntries(ctx context.Context, account *models.Account, snapshot models.IDSnapshot, mode models.ReconciliationMode) error {
	return s.postJournalEntries(ctx, newLedgerScope(account, mode), snapshot, false)
}

// checkTransactionAllowed applies block, status and product rules.
func checkTransactionAllowed(account *models.Account, txType models.TransactionType, regular bool) error {
	action := string(txType)
	if account.IsBlocked() {
		return &models.LedgerError{Kind: models.ErrAccountBlocked, AccountID: account.ID, Action: action}
	}
	credit := txType.IsCredit()
	if credit && account.IsCreditBlocked() {
		return &models.LedgerError{Kind: models.ErrAccountBlocked, AccountID: account.ID, Action: action, Detail: "credits blocked"}
	}
	if !credit && account.IsDebitBlocked() {
		return &models.LedgerError{Kind: models.ErrAccountBlocked, AccountID: account.ID, Action: action, Detail: "debits blocked"}
	}
	if !account.IsActive() {
		return &models.LedgerError{Kind: models.ErrAccountNotActive, AccountID: account.ID, Action: action}
	}
	if regular {
		allowed := account.Product.AllowWithdrawal
		if credit {
			allowed = account.Product.AllowDeposit
		}
		if !allowed {
			return &models.LedgerError{
				Kind:      models.ErrTransactionNotAllowed,
				AccountID: account.ID,
				Action:    action,
				Detail:    "not permitted by product " + account.Product.Name,
			}
		}
	}
	return nil
}

// appendTransaction validates and attaches a new deposit-side or withdrawal entry.
func (s *Service) appendTransaction(account *models.Account, txType models.TransactionType, req models.TransactionRequest) (*models.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, &models.LedgerError{Kind: models.ErrInvalidTransaction, AccountID: account.ID, Action: string(txType), Detail: "amount must be positive"}
	}
	date := models.Day(req.Date)
	if req.Date.IsZero() {
		date = s.today()
	}
	if date.After(s.today()) {
		return nil, &models.LedgerError{Kind: models.ErrInvalidTransaction, AccountID: account.ID, Action: string(txType), Detail: "date is in the future"}
	}
	if err := ValidatePivotDate(account, date, req.Flags.Mode); err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		Type:      txType,
		Date:      date,
		Amount:    req.Amount,
		RefNo:     uuid.NewString(),
		CreatedAt: s.now().UTC(),
	}
	if err := account.AddTransaction(tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// reconcileAfter runs the full posting engine when date precedes the last
// posting, and the lightweight recomputation otherwise.
func (s *Service) reconcileAfter(ctx context.Context, scope ledgerScope, date time.Time, interestTransfer, postReversals bool) error {
	if scope.isBeforeLastPosting(date) {
		req := models.PostInterestRequest{
			UpTo:             s.today(),
			InterestTransfer: interestTransfer,
			PostingDate:      models.DefaultPostingDate(),
			Mode:             scope.mode,
		}
		return s.postInterest(ctx, scope.account, scope, req, postReversals)
	}
	s.refreshBalances(ctx, scope, postReversals)
	return nil
}

// validateWithHolds loads active holds only when the account has funds on
// hold. Credits never worsen the position, so liens are left out for them.
func (s *Service) validateWithHolds(ctx context.Context, account *models.Account, mode models.ReconciliationMode, action string, skip, credit bool) error {
	if skip {
		return nil
	}
	holds, err := s.activeHolds(ctx, account, credit)
	if err != nil {
		return err
	}
	return ValidateBalance(account, holds, mode, action, false)
}

func (s *Service) activeHolds(ctx context.Context, account *models.Account, withoutLiens bool) ([]*models.OnHoldTransaction, error) {
	if !account.OnHoldFunds.IsPositive() {
		return nil, nil
	}
	holds, err := s.store.OnHoldTransactions(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load holds for account %s: %w", account.ID, err)
	}
	if !withoutLiens {
		return holds, nil
	}
	kept := holds[:0]
	for _, h := range holds {
		if !h.Lien {
			kept = append(kept, h)
		}
	}
	return kept, nil
}

// persist saves first (in order) to fix their ids, then the backdated scope,
// then the account with the rest of its ledger.
func (s *Service) persist(ctx context.Context, scope ledgerScope, first ...*models.Transaction) error {
	for _, tx := range first {
		if err := s.store.SaveTransaction(ctx, tx); err != nil {
			return fmt.Errorf("failed to save transaction: %w", err)
		}
	}
	if scope.mode.IsBackdated() {
		if err := s.store.SaveTransactions(ctx, scope.transactions()); err != nil {
			return fmt.Errorf("failed to save pivot transactions: %w", err)
		}
	}
	if err := s.store.SaveAccount(ctx, scope.account); err != nil {
		return fmt.Errorf("failed to save account %s: %w", scope.account.ID, err)
	}
	return nil
}

func (s *Service) event(t models.EventType, tx *models.Transaction) models.Event {
	return models.Event{Type: t, AccountID: tx.AccountID, Transaction: tx, OccurredAt: s.now().UTC()}
}
