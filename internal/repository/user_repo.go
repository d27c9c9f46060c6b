package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studiox/backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// CreateTx inserts a user inside the given transaction so the signup bonus
// credit can commit atomically with the row.
func (r *UserRepo) CreateTx(ctx context.Context, tx pgx.Tx, u *models.User) error {
	return tx.QueryRow(ctx, `
		INSERT INTO users (id, email, display_name, photo_url, password_hash, plan, token_balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, u.ID, u.Email, u.DisplayName, u.PhotoURL, u.PasswordHash, u.Plan, u.TokenBalance).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.get(ctx, "id", id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.get(ctx, "email", email)
}

func (r *UserRepo) get(ctx context.Context, column string, value any) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, display_name, photo_url, password_hash, plan, token_balance, created_at, updated_at
		FROM users WHERE `+column+` = $1
	`, value).Scan(&u.ID, &u.Email, &u.DisplayName, &u.PhotoURL, &u.PasswordHash, &u.Plan, &u.TokenBalance, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Exists reports whether a user row exists, inside the given transaction.
// Used to distinguish a missing user from an insufficient balance after a
// conditional debit touches zero rows.
func (r *UserRepo) Exists(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	var ok bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

// DeductTokens atomically deducts amount from the user's balance if it covers
// the amount. Returns pgx.ErrNoRows (via Scan) when the balance is too low or
// the user is absent; callers disambiguate with Exists.
func (r *UserRepo) DeductTokens(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (newBalance int64, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE users SET token_balance = token_balance - $1, updated_at = now()
		WHERE id = $2 AND token_balance >= $1
		RETURNING token_balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// AddTokens adds amount to the user's balance and returns the new balance.
func (r *UserRepo) AddTokens(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (newBalance int64, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE users SET token_balance = token_balance + $1, updated_at = now()
		WHERE id = $2
		RETURNING token_balance
	`, amount, id).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, models.ErrUserNotFound
	}
	return newBalance, err
}

// SetPlan updates the user's subscription plan after a purchase.
func (r *UserRepo) SetPlan(ctx context.Context, tx pgx.Tx, id uuid.UUID, plan string) error {
	_, err := tx.Exec(ctx, `
		UPDATE users SET plan = $2, updated_at = now() WHERE id = $1
	`, id, plan)
	return err
}
