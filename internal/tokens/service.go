package tokens

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/studiox/backend/internal/models"
)

// UserStore is the minimal user repository interface for token accounting.
type UserStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Exists(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
	DeductTokens(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (int64, error)
	AddTokens(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (int64, error)
}

// LedgerStore is the minimal ledger interface for token accounting.
type LedgerStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error
}

// Service is the single writer path for token balances. Every balance
// mutation goes through Debit or Credit, which pair the counter update with
// its ledger entry inside one transaction: a reader sees both or neither.
type Service struct {
	Users  UserStore
	Ledger LedgerStore
}

func NewService(users UserStore, ledger LedgerStore) *Service {
	return &Service{Users: users, Ledger: ledger}
}

// Debit deducts amount from the user and appends a negative ledger entry.
// Runs inside the caller's transaction so the debit can commit atomically
// with whatever the tokens pay for. Rejects, never clamps: a balance below
// amount returns models.ErrInsufficientFunds and writes nothing.
func (s *Service) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, reason string, jobID *uuid.UUID) error {
	if amount <= 0 {
		return fmt.Errorf("%w: debit amount must be > 0", models.ErrInvalidRequest)
	}
	_, err := s.Users.DeductTokens(ctx, tx, userID, amount)
	if errors.Is(err, pgx.ErrNoRows) {
		// Zero rows means either no such user or not enough tokens.
		exists, existsErr := s.Users.Exists(ctx, tx, userID)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return models.ErrUserNotFound
		}
		return models.ErrInsufficientFunds
	}
	if err != nil {
		return err
	}
	return s.Ledger.CreateTx(ctx, tx, &models.LedgerEntry{
		ID:     uuid.New(),
		UserID: userID,
		Amount: -amount,
		Reason: reason,
		JobID:  jobID,
	})
}

// Credit adds amount to the user and appends a positive ledger entry, inside
// the caller's transaction. No sufficiency check; used for refunds and
// payment crediting.
func (s *Service) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, reason string, jobID *uuid.UUID) error {
	if amount <= 0 {
		return fmt.Errorf("%w: credit amount must be > 0", models.ErrInvalidRequest)
	}
	if _, err := s.Users.AddTokens(ctx, tx, userID, amount); err != nil {
		return err
	}
	return s.Ledger.CreateTx(ctx, tx, &models.LedgerEntry{
		ID:     uuid.New(),
		UserID: userID,
		Amount: amount,
		Reason: reason,
		JobID:  jobID,
	})
}

// CreditNew runs Credit in its own freshly opened transaction, for callers
// that are not composing the credit with other writes.
func (s *Service) CreditNew(ctx context.Context, userID uuid.UUID, amount int64, reason string, jobID *uuid.UUID) error {
	tx, err := s.Users.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := s.Credit(ctx, tx, userID, amount, reason, jobID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetBalance returns the user's current token balance.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.TokenBalance, nil
}
