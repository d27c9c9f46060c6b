package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studiox/backend/internal/models"
)

type PaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

func (r *PaymentRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// GetByEventIDTx reads the dedup record inside the given transaction. Returns
// (nil, nil) when no record exists.
func (r *PaymentRepo) GetByEventIDTx(ctx context.Context, tx pgx.Tx, eventID string) (*models.PaymentRecord, error) {
	var p models.PaymentRecord
	err := tx.QueryRow(ctx, `
		SELECT event_id, user_id, amount_paid, tokens_added, plan, status, created_at
		FROM payments WHERE event_id = $1
	`, eventID).Scan(&p.EventID, &p.UserID, &p.AmountPaid, &p.TokensAdded, &p.Plan, &p.Status, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateTx writes the dedup record inside the given transaction. The primary
// key on event_id rejects a concurrent duplicate that raced past the read.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx pgx.Tx, p *models.PaymentRecord) error {
	return tx.QueryRow(ctx, `
		INSERT INTO payments (event_id, user_id, amount_paid, tokens_added, plan, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, p.EventID, p.UserID, p.AmountPaid, p.TokensAdded, p.Plan, p.Status).Scan(&p.CreatedAt)
}
