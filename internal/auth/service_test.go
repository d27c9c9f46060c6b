package auth

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
// In-memory mocks
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

type mockUsers struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*models.User
	byEmail map[string]*models.User
}

func newMockUsers() *mockUsers {
	return &mockUsers{
		byID:    make(map[uuid.UUID]*models.User),
		byEmail: make(map[string]*models.User),
	}
}

func (m *mockUsers) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

func (m *mockUsers) CreateTx(_ context.Context, _ pgx.Tx, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[u.Email]; exists {
		return &pgconn.PgError{Code: "23505"}
	}
	cp := *u
	m.byID[u.ID] = &cp
	m.byEmail[u.Email] = &cp
	return nil
}

func (m *mockUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEmail[email]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

type mockCreditor struct {
	mu      sync.Mutex
	amounts map[uuid.UUID]int64
	reasons []string
}

func (m *mockCreditor) Credit(_ context.Context, _ pgx.Tx, userID uuid.UUID, amount int64, reason string, _ *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.amounts == nil {
		m.amounts = make(map[uuid.UUID]int64)
	}
	m.amounts[userID] += amount
	m.reasons = append(m.reasons, reason)
	return nil
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestRegisterGrantsWelcomeBonus(t *testing.T) {
	users := newMockUsers()
	creditor := &mockCreditor{}
	svc := NewService(users, creditor, "test-secret")

	user, err := svc.Register(context.Background(), "fox@example.com", "hunter2hunter2", "Fox")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.TokenBalance != models.WelcomeBonusTokens {
		t.Errorf("balance: got %d, want %d", user.TokenBalance, models.WelcomeBonusTokens)
	}
	if got := creditor.amounts[user.ID]; got != models.WelcomeBonusTokens {
		t.Errorf("credited: got %d, want %d", got, models.WelcomeBonusTokens)
	}
	if len(creditor.reasons) != 1 || creditor.reasons[0] != "Initial signup welcome bonus" {
		t.Errorf("reasons: %v", creditor.reasons)
	}
	if user.PasswordHash == "hunter2hunter2" {
		t.Error("password must be hashed")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := NewService(newMockUsers(), &mockCreditor{}, "test-secret")
	ctx := context.Background()

	if _, err := svc.Register(ctx, "fox@example.com", "pw123456", ""); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, err := svc.Register(ctx, "fox@example.com", "pw123456", "")
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got: %v", err)
	}
}

func TestLoginAndValidateToken(t *testing.T) {
	svc := NewService(newMockUsers(), &mockCreditor{}, "test-secret")
	ctx := context.Background()

	user, err := svc.Register(ctx, "fox@example.com", "pw123456", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, err := svc.Login(ctx, "fox@example.com", "pw123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	got, err := svc.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if got != user.ID {
		t.Errorf("token subject: got %s, want %s", got, user.ID)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	svc := NewService(newMockUsers(), &mockCreditor{}, "test-secret")
	ctx := context.Background()

	if _, err := svc.Register(ctx, "fox@example.com", "pw123456", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Login(ctx, "fox@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got: %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "pw123456"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: expected ErrInvalidCredentials, got: %v", err)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := NewService(newMockUsers(), &mockCreditor{}, "test-secret")

	if _, err := svc.ValidateToken(context.Background(), "not.a.jwt"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got: %v", err)
	}

	// A token signed with a different secret is rejected too.
	other := NewService(newMockUsers(), &mockCreditor{}, "other-secret")
	user, err := other.Register(context.Background(), "fox@example.com", "pw123456", "")
	if err != nil {
		t.Fatal(err)
	}
	token, err := other.Login(context.Background(), user.Email, "pw123456")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ValidateToken(context.Background(), token); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("cross-secret token: expected ErrInvalidCredentials, got: %v", err)
	}
}
