package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studiox/backend/internal/models"
)

type JobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

func (r *JobRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const jobColumns = `id, user_id, provider, model, parameters, cost_tokens, status, provider_task_id, output_url, error, created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.UserID, &j.Provider, &j.Model, &j.Parameters, &j.CostTokens,
		&j.Status, &j.ProviderTaskID, &j.OutputURL, &j.Error, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// CreateTx inserts the job inside the given transaction so it commits
// atomically with the token debit that reserved its cost.
func (r *JobRepo) CreateTx(ctx context.Context, tx pgx.Tx, j *models.Job) error {
	return tx.QueryRow(ctx, `
		INSERT INTO jobs (id, user_id, provider, model, parameters, cost_tokens, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, j.ID, j.UserID, j.Provider, j.Model, j.Parameters, j.CostTokens, j.Status).Scan(&j.CreatedAt, &j.UpdatedAt)
}

func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
}

// GetByIDForUpdate locks the job row. Call within a transaction; this is the
// race guard that lets exactly one concurrent poller perform the terminal
// transition.
func (r *JobRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Job, error) {
	return scanJob(tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id))
}

// MarkProcessing records the provider task id after a successful submission.
func (r *JobRepo) MarkProcessing(ctx context.Context, id uuid.UUID, providerTaskID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE jobs SET status = $2, provider_task_id = $3, updated_at = now() WHERE id = $1
	`, id, models.JobStatusProcessing, providerTaskID)
	return err
}

// MarkFailed records a failure reason. Used for the submission-failure path,
// outside the refund transaction.
func (r *JobRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE jobs SET status = $2, error = $3, updated_at = now() WHERE id = $1
	`, id, models.JobStatusFailed, reason)
	return err
}

// CompleteTx finalizes the job inside the given transaction.
func (r *JobRepo) CompleteTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, outputURL string) error {
	_, err := tx.Exec(ctx, `
		UPDATE jobs SET status = $2, output_url = $3, updated_at = now() WHERE id = $1
	`, id, models.JobStatusCompleted, outputURL)
	return err
}

// FailTx finalizes the job as failed inside the given transaction.
func (r *JobRepo) FailTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string) error {
	_, err := tx.Exec(ctx, `
		UPDATE jobs SET status = $2, error = $3, updated_at = now() WHERE id = $1
	`, id, models.JobStatusFailed, reason)
	return err
}

func (r *JobRepo) ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Job, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Job
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(&j.ID, &j.UserID, &j.Provider, &j.Model, &j.Parameters, &j.CostTokens,
			&j.Status, &j.ProviderTaskID, &j.OutputURL, &j.Error, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &j)
	}
	return list, rows.Err()
}
