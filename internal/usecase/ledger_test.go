package usecase

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vithxrlorencetti/TransactionsAPI/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// -- Mocks --

type mockTransactionRepo struct {
	entries []*domain.Transaction
	nextID  int64
}

func newMockTransactionRepo() *mockTransactionRepo {
	return &mockTransactionRepo{}
}

func (m *mockTransactionRepo) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	m.nextID++
	tx.ID = m.nextID
	m.entries = append(m.entries, tx)
	return nil
}

func (m *mockTransactionRepo) FindTransactionByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	for _, e := range m.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (m *mockTransactionRepo) GetTransactionForUpdate(ctx context.Context, id int64) (*domain.Transaction, error) {
	return m.FindTransactionByID(ctx, id)
}

func (m *mockTransactionRepo) MarkTransactionReversed(ctx context.Context, tx *domain.Transaction) error {
	return nil
}

func (m *mockTransactionRepo) CountByAccountID(ctx context.Context, accountID int64) (int, error) {
	n := 0
	for _, e := range m.entries {
		if m.touches(e, accountID) {
			n++
		}
	}
	return n, nil
}

func (m *mockTransactionRepo) ListByAccountID(ctx context.Context, accountID int64, limit, offset int) ([]*domain.Transaction, int, error) {
	matched := m.matching(accountID)
	total := len(matched)
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (m *mockTransactionRepo) ListFiltered(ctx context.Context, accountID int64, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	var result []*domain.Transaction
	cutoff := time.Now().UTC().AddDate(0, 0, -30)
	for _, e := range m.matching(accountID) {
		switch filter.Type {
		case domain.FilterLast30Days:
			if e.CreatedAt.Before(cutoff) {
				continue
			}
		case domain.FilterByMonth:
			if int(e.CreatedAt.Month()) != filter.Month || e.CreatedAt.Year() != filter.Year {
				continue
			}
		case domain.FilterReversed:
			if !e.Reversed() {
				continue
			}
		}
		result = append(result, e)
	}
	return result, nil
}

// matching returns the account's entries newest-first, id descending on ties,
// mirroring the repository's ordering.
func (m *mockTransactionRepo) matching(accountID int64) []*domain.Transaction {
	var matched []*domain.Transaction
	for _, e := range m.entries {
		if m.touches(e, accountID) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return matched
}

func (m *mockTransactionRepo) touches(e *domain.Transaction, accountID int64) bool {
	return e.ReceiverID == accountID || (e.SenderID != nil && *e.SenderID == accountID)
}

type mockTxManager struct{}

func (m *mockTxManager) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockPublisher struct {
	events []domain.TransactionCompleted
}

func (m *mockPublisher) Publish(ctx context.Context, event domain.TransactionCompleted) error {
	m.events = append(m.events, event)
	return nil
}

func newLedger(accRepo *mockAccountRepo, txRepo *mockTransactionRepo, pub *mockPublisher) *LedgerUseCase {
	var publisher domain.EventPublisher
	if pub != nil {
		publisher = pub
	}
	return NewLedgerUseCase(accRepo, txRepo, &mockTxManager{}, publisher, testLogger())
}

func seedAccount(t *testing.T, repo *mockAccountRepo, name, balance string) *domain.Account {
	t.Helper()
	acc := domain.NewAccount(name, name+"@example.com", "hash")
	acc.Balance = dec(balance)
	if err := repo.CreateAccount(context.Background(), acc); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return acc
}

// -- Deposit --

func TestLedgerUseCase_Deposit(t *testing.T) {
	accRepo := newMockAccountRepo()
	txRepo := newMockTransactionRepo()
	pub := &mockPublisher{}
	uc := newLedger(accRepo, txRepo, pub)
	ctx := context.Background()

	acc := seedAccount(t, accRepo, "Alice", "100.00")

	name, err := uc.Deposit(ctx, acc.ID, dec("50.00"), "salary")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "Alice" {
		t.Errorf("expected receiver name Alice, got %s", name)
	}
	if !acc.Balance.Equal(dec("150.00")) {
		t.Errorf("expected balance 150.00, got %s", acc.Balance)
	}
	if len(txRepo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(txRepo.entries))
	}
	entry := txRepo.entries[0]
	if entry.Type != domain.TypeDeposit {
		t.Errorf("expected Deposit entry, got %s", entry.Type)
	}
	if entry.SenderID != nil {
		t.Error("deposit entry must not have a sender")
	}
	if entry.ReceiverID != acc.ID {
		t.Errorf("expected receiver %d, got %d", acc.ID, entry.ReceiverID)
	}
	if len(pub.events) != 1 {
		t.Errorf("expected 1 published event, got %d", len(pub.events))
	}
}

func TestLedgerUseCase_Deposit_Validation(t *testing.T) {
	accRepo := newMockAccountRepo()
	txRepo := newMockTransactionRepo()
	uc := newLedger(accRepo, txRepo, nil)
	ctx := context.Background()

	acc := seedAccount(t, accRepo, "Alice", "100.00")

	if _, err := uc.Deposit(ctx, acc.ID, dec("0.00"), ""); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := uc.Deposit(ctx, acc.ID, dec("-5.00"), ""); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := uc.Deposit(ctx, 999, dec("10.00"), ""); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}

	disabled := seedAccount(t, accRepo, "Bob", "0.00")
	disabled.Disable(time.Now().UTC())
	if _, err := uc.Deposit(ctx, disabled.ID, dec("10.00"), ""); !errors.Is(err, domain.ErrAccountDisabled) {
		t.Errorf("expected ErrAccountDisabled, got %v", err)
	}

	// No entry was created by any failed deposit
	if len(txRepo.entries) != 0 {
		t.Errorf("expected no entries, got %d", len(txRepo.entries))
	}
	if !acc.Balance.Equal(dec("100.00")) {
		t.Errorf("balance changed by failed deposit: %s", acc.Balance)
	}
}

// -- Transfer --

func TestLedgerUseCase_Transfer(t *testing.T) {
	accRepo := newMockAccountRepo()
	txRepo := newMockTransactionRepo()
	uc := newLedger(accRepo, txRepo, nil)
	ctx := context.Background()

	a := seedAccount(t, accRepo, "Alice", "150.00")
	b := seedAccount(t, accRepo, "Bob", "0.00")
	sumBefore := a.Balance.Add(b.Balance)

	senderName, receiverName, err := uc.Transfer(ctx, a.ID, b.ID, dec("150.00"), "rent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if senderName != "Alice" || receiverName != "Bob" {
		t.Errorf("expected names (Alice, Bob), got (%s, %s)", senderName, receiverName)
	}
	if !a.Balance.Equal(dec("0.00")) {
		t.Errorf("expected sender balance 0.00, got %s", a.Balance)
	}
	if !b.Balance.Equal(dec("150.00")) {
		t.Errorf("expected receiver balance 150.00, got %s", b.Balance)
	}

	// Balance conservation
	if !a.Balance.Add(b.Balance).Equal(sumBefore) {
		t.Errorf("transfer did not conserve balances: %s", a.Balance.Add(b.Balance))
	}

	if len(txRepo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(txRepo.entries))
	}
	entry := txRepo.entries[0]
	if entry.Type != domain.TypeTransfer {
		t.Errorf("expected Transfer entry, got %s", entry.Type)
	}
	if entry.SenderID == nil || *entry.SenderID != a.ID {
		t.Error("transfer entry must reference the sender")
	}
	if entry.Reversed() {
		t.Error("fresh transfer must not be reversed")
	}
}

func TestLedgerUseCase_Transfer_SelfTransfer(t *testing.T) {
	accRepo := newMockAccountRepo()
	txRepo := newMockTransactionRepo()
	uc := newLedger(accRepo, txRepo, nil)
	ctx := context.Background()

	a := seedAccount(t, accRepo, "Alice", "1000.00")

	if _, _, err := uc.Transfer(ctx, a.ID, a.ID, dec("1.00"), ""); !errors.Is(err, domain.ErrSelfTransfer) {
		t.Errorf("expected ErrSelfTransfer, got %v", err)
	}
	if !a.Balance.Equal(dec("1000.00")) {
		t.Errorf("balance changed by rejected transfer: %s", a.Balance)
	}
}

func TestLedgerUseCase_Transfer_InsufficientBalance(t *testing.T) {
	accRepo := newMockAccountRepo()
	txRepo := newMockTransactionRepo()
	uc := newLedger(accRepo, txRepo, nil)
	ctx := context.Background()

	a := seedAccount(t, accRepo, "Alice", "10.00")
	b := seedAccount(t, accRepo, "Bob", "0.00")

	_, _, err := uc.Transfer(ctx, a.ID, b.ID, dec("20.00"), "")
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// Balances unchanged, no entry created
	if !a.Balance.Equal(dec("10.00")) || !b.Balance.Equal(dec("0.00")) {
		t.Errorf("balances changed by rejected transfer: %s / %s", a.Balance, b.Balance)
	}
	if len(txRepo.entries) != 0 {
		t.Errorf("expected no entries, got %d", len(txRepo.entries))
	}
}

func TestLedgerUseCase_Transfer_NotFound(t *testing.T) {
	accRepo := newMockAccountRepo()
	txRepo := newMockTransactionRepo()
	uc := newLedger(accRepo, txRepo, nil)
	ctx := context.Background()

	a := seedAccount(t, accRepo, "Alice", "100.00")

	if _, _, err := uc.Transfer(ctx, 999, a.ID, dec("10.00"), ""); !errors.Is(err, domain.ErrSenderNotFound) {
		t.Errorf("expected ErrSenderNotFound, got %v", err)
	}
	if _, _, err := uc.Transfer(ctx, a.ID, 999, dec("10.00"), ""); !errors.Is(err, domain.ErrReceiverNotFound) {
		t.Errorf("expected ErrReceiverNotFound, got %v", err)
	}
}

// -- Revert --

func TestLedgerUseCase_Revert(t *testing.T) {
	accRepo := newMockAccountRepo()
	txRepo := newMockTransactionRepo()
	uc := newLedger(accRepo, txRepo, nil)
	ctx := context.Background()

	// Scenario: A deposits 50 on top of 100, transfers everything to B,
	// then the transfer is reverted.
	a := seedAccount(t, accRepo, "Alice", "100.00")
	b := seedAccount(t, accRepo, "Bob", "0.00")

	if _, err := uc.Deposit(ctx, a.ID, dec("50.00"), ""); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, _, err := uc.Transfer(ctx, a.ID, b.ID, dec("150.00"), ""); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !a.Balance.Equal(dec("0.00")) || !b.Balance.Equal(dec("150.00")) {
		t.Fatalf("unexpected balances before revert: %s / %s", a.Balance, b.Balance)
	}

	transferID := txRepo.entries[1].ID
	if err := uc.Revert(ctx, transferID); err != nil {
		t.Fatalf("revert: %v", err)
	}

	// Revert is an exact inverse
	if !a.Balance.Equal(dec("150.00")) {
		t.Errorf("expected sender balance 150.00 after revert, got %s", a.Balance)
	}
	if !b.Balance.Equal(dec("0.00")) {
		t.Errorf("expected receiver balance 0.00 after revert, got %s", b.Balance)
	}
	if !txRepo.entries[1].Reversed() {
		t.Error("entry should carry the reversal marker")
	}

	// Reverting twice fails with Conflict
	err := uc.Revert(ctx, transferID)
	if !errors.Is(err, domain.ErrAlreadyReverted) {
		t.Errorf("expected ErrAlreadyReverted, got %v", err)
	}
	if domain.KindOf(err) != domain.KindConflict {
		t.Errorf("expected Conflict kind, got %v", domain.KindOf(err))
	}
}

func TestLedgerUseCase_Revert_Preconditions(t *testing.T) {
	accRepo := newMockAccountRepo()
	txRepo := newMockTransactionRepo()
	uc := newLedger(accRepo, txRepo, nil)
	ctx := context.Background()

	a := seedAccount(t, accRepo, "Alice", "100.00")

	if err := uc.Revert(ctx, 999); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Errorf("expected ErrTransactionNotFound, got %v", err)
	}

	if _, err := uc.Deposit(ctx, a.ID, dec("10.00"), ""); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	depositID := txRepo.entries[0].ID
	if err := uc.Revert(ctx, depositID); !errors.Is(err, domain.ErrOnlyTransfersReverted) {
		t.Errorf("expected ErrOnlyTransfersReverted, got %v", err)
	}
}

func TestLedgerUseCase_Revert_ReceiverSpentFunds(t *testing.T) {
	accRepo := newMockAccountRepo()
	txRepo := newMockTransactionRepo()
	uc := newLedger(accRepo, txRepo, nil)
	ctx := context.Background()

	a := seedAccount(t, accRepo, "Alice", "50.00")
	b := seedAccount(t, accRepo, "Bob", "0.00")
	c := seedAccount(t, accRepo, "Carol", "0.00")

	if _, _, err := uc.Transfer(ctx, a.ID, b.ID, dec("50.00"), ""); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	firstID := txRepo.entries[0].ID

	// B drains most of the funds before the revert attempt.
	if _, _, err := uc.Transfer(ctx, b.ID, c.ID, dec("40.00"), ""); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	err := uc.Revert(ctx, firstID)
	if !errors.Is(err, domain.ErrReceiverBalanceTooLow) {
		t.Fatalf("expected ErrReceiverBalanceTooLow, got %v", err)
	}

	// The failed revert changed nothing.
	if !a.Balance.Equal(dec("0.00")) || !b.Balance.Equal(dec("10.00")) || !c.Balance.Equal(dec("40.00")) {
		t.Errorf("balances changed by failed revert: %s / %s / %s", a.Balance, b.Balance, c.Balance)
	}
	if txRepo.entries[0].Reversed() {
		t.Error("entry must not be marked reversed after a failed revert")
	}
}
