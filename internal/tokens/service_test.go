package tokens

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/studiox/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory mocks for UserStore and LedgerStore.
// These let us test the real accounting logic without a database.
// ---------------------------------------------------------------------------

// --- noopTx satisfies pgx.Tx for test use; only Commit/Rollback are called. ---

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

// --- UserStore mock ---

// mockUsers mimics the conditional UPDATE: a deduct that would go negative
// affects zero rows, surfaced as pgx.ErrNoRows.
type mockUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMockUsers(users ...*models.User) *mockUsers {
	m := &mockUsers{users: make(map[uuid.UUID]*models.User)}
	for _, u := range users {
		cp := *u
		m.users[u.ID] = &cp
	}
	return m
}

func (m *mockUsers) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

func (m *mockUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUsers) Exists(_ context.Context, _ pgx.Tx, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[id]
	return ok, nil
}

func (m *mockUsers) DeductTokens(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.TokenBalance < amount {
		return 0, pgx.ErrNoRows
	}
	u.TokenBalance -= amount
	return u.TokenBalance, nil
}

func (m *mockUsers) AddTokens(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	u.TokenBalance += amount
	return u.TokenBalance, nil
}

func (m *mockUsers) balance(id uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id].TokenBalance
}

// --- LedgerStore mock ---

type mockLedger struct {
	mu      sync.Mutex
	entries []*models.LedgerEntry
}

func (m *mockLedger) CreateTx(_ context.Context, _ pgx.Tx, e *models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockLedger) all() []*models.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.LedgerEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *mockLedger) sum(userID uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, e := range m.entries {
		if e.UserID == userID {
			total += e.Amount
		}
	}
	return total
}

func user(id uuid.UUID, balance int64) *models.User {
	return &models.User{ID: id, TokenBalance: balance}
}

// ---------------------------------------------------------------------------
// 1. TestDebit
// ---------------------------------------------------------------------------

func TestDebit(t *testing.T) {
	userID := uuid.New()
	jobID := uuid.New()

	users := newMockUsers(user(userID, 1000))
	ledger := &mockLedger{}
	svc := NewService(users, ledger)

	ctx := context.Background()
	if err := svc.Debit(ctx, noopTx{}, userID, 200, "Job generated with test-model", &jobID); err != nil {
		t.Fatalf("Debit: %v", err)
	}

	if got := users.balance(userID); got != 800 {
		t.Errorf("balance after debit: got %d, want 800", got)
	}

	entries := ledger.all()
	if len(entries) != 1 {
		t.Fatalf("ledger entries: got %d, want 1", len(entries))
	}
	if entries[0].Amount != -200 {
		t.Errorf("ledger amount: got %d, want -200", entries[0].Amount)
	}
	if entries[0].JobID == nil || *entries[0].JobID != jobID {
		t.Error("ledger entry should reference the job")
	}
}

func TestDebitInsufficientFunds(t *testing.T) {
	userID := uuid.New()

	users := newMockUsers(user(userID, 50))
	ledger := &mockLedger{}
	svc := NewService(users, ledger)

	err := svc.Debit(context.Background(), noopTx{}, userID, 60, "Job generated with test-model", nil)
	if !errors.Is(err, models.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got: %v", err)
	}

	// Reject, never clamp: balance and ledger untouched.
	if got := users.balance(userID); got != 50 {
		t.Errorf("balance after rejected debit: got %d, want 50", got)
	}
	if len(ledger.all()) != 0 {
		t.Errorf("ledger entries after rejected debit: got %d, want 0", len(ledger.all()))
	}
}

func TestDebitUnknownUser(t *testing.T) {
	users := newMockUsers()
	svc := NewService(users, &mockLedger{})

	err := svc.Debit(context.Background(), noopTx{}, uuid.New(), 10, "x", nil)
	if !errors.Is(err, models.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got: %v", err)
	}
}

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	userID := uuid.New()
	svc := NewService(newMockUsers(user(userID, 100)), &mockLedger{})

	for _, amount := range []int64{0, -5} {
		err := svc.Debit(context.Background(), noopTx{}, userID, amount, "x", nil)
		if !errors.Is(err, models.ErrInvalidRequest) {
			t.Errorf("amount %d: expected ErrInvalidRequest, got: %v", amount, err)
		}
	}
}

// ---------------------------------------------------------------------------
// 2. TestCredit
// ---------------------------------------------------------------------------

func TestCredit(t *testing.T) {
	userID := uuid.New()

	users := newMockUsers(user(userID, 10))
	ledger := &mockLedger{}
	svc := NewService(users, ledger)

	if err := svc.Credit(context.Background(), noopTx{}, userID, 1000, "Purchased starter plan", nil); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	if got := users.balance(userID); got != 1010 {
		t.Errorf("balance after credit: got %d, want 1010", got)
	}
	entries := ledger.all()
	if len(entries) != 1 || entries[0].Amount != 1000 {
		t.Fatalf("expected one +1000 ledger entry, got %+v", entries)
	}
}

func TestCreditNew(t *testing.T) {
	userID := uuid.New()

	users := newMockUsers(user(userID, 0))
	ledger := &mockLedger{}
	svc := NewService(users, ledger)

	if err := svc.CreditNew(context.Background(), userID, 200, "Initial signup welcome bonus", nil); err != nil {
		t.Fatalf("CreditNew: %v", err)
	}
	if got := users.balance(userID); got != 200 {
		t.Errorf("balance: got %d, want 200", got)
	}
	if got := len(ledger.all()); got != 1 {
		t.Errorf("ledger entries: got %d, want 1", got)
	}
}

// ---------------------------------------------------------------------------
// 3. TestLedgerMatchesBalance: debit then refund nets to zero.
// ---------------------------------------------------------------------------

func TestLedgerMatchesBalance(t *testing.T) {
	userID := uuid.New()
	jobID := uuid.New()

	users := newMockUsers(user(userID, 500))
	ledger := &mockLedger{}
	svc := NewService(users, ledger)

	ctx := context.Background()
	if err := svc.Debit(ctx, noopTx{}, userID, 30, "Job generated with test-model", &jobID); err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if err := svc.Credit(ctx, noopTx{}, userID, 30, "Refund for failed rendering task "+jobID.String(), &jobID); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	if got := users.balance(userID); got != 500 {
		t.Errorf("balance after debit+refund: got %d, want 500", got)
	}
	if got := ledger.sum(userID); got != 0 {
		t.Errorf("ledger net after debit+refund: got %d, want 0", got)
	}
	if got := len(ledger.all()); got != 2 {
		t.Errorf("ledger entries: got %d, want 2", got)
	}
}

// ---------------------------------------------------------------------------
// 4. TestConcurrentDebits: the guarded deduct never overdraws.
// ---------------------------------------------------------------------------

func TestConcurrentDebits(t *testing.T) {
	userID := uuid.New()

	users := newMockUsers(user(userID, 50))
	ledger := &mockLedger{}
	svc := NewService(users, ledger)

	const workers = 10
	const cost = 10

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.Debit(context.Background(), noopTx{}, userID, cost, "Job generated with test-model", nil)
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, models.ErrInsufficientFunds):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if succeeded != 5 || rejected != 5 {
		t.Errorf("succeeded=%d rejected=%d, want 5/5", succeeded, rejected)
	}
	if got := users.balance(userID); got != 0 {
		t.Errorf("final balance: got %d, want 0", got)
	}
	if got := ledger.sum(userID); got != -50 {
		t.Errorf("ledger net: got %d, want -50", got)
	}
}
