package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studiox/backend/internal/models"
)

type CreationRepo struct {
	pool *pgxpool.Pool
}

func NewCreationRepo(pool *pgxpool.Pool) *CreationRepo {
	return &CreationRepo{pool: pool}
}

const creationColumns = `id, user_id, job_id, type, provider, model, prompt, settings, output_url, thumbnail_url, created_at`

// CreateTx inserts a creation inside the given transaction, atomically with
// the job's completed transition. The unique index on job_id backs the
// one-creation-per-job ownership rule.
func (r *CreationRepo) CreateTx(ctx context.Context, tx pgx.Tx, c *models.Creation) error {
	return tx.QueryRow(ctx, `
		INSERT INTO creations (id, user_id, job_id, type, provider, model, prompt, settings, output_url, thumbnail_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, c.ID, c.UserID, c.JobID, c.Type, c.Provider, c.Model, c.Prompt, c.Settings, c.OutputURL, c.ThumbnailURL).Scan(&c.CreatedAt)
}

func (r *CreationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Creation, error) {
	var c models.Creation
	err := r.pool.QueryRow(ctx, `
		SELECT `+creationColumns+` FROM creations WHERE id = $1
	`, id).Scan(&c.ID, &c.UserID, &c.JobID, &c.Type, &c.Provider, &c.Model, &c.Prompt, &c.Settings, &c.OutputURL, &c.ThumbnailURL, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrCreationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByUserID returns the user's creations newest first. When before is
// non-zero only creations older than it are returned (cursor pagination).
func (r *CreationRepo) ListByUserID(ctx context.Context, userID uuid.UUID, limit int, before time.Time) ([]*models.Creation, error) {
	query := `SELECT ` + creationColumns + ` FROM creations
		WHERE user_id = $1 AND created_at < $2
		ORDER BY created_at DESC LIMIT $3`
	if before.IsZero() {
		before = time.Now().Add(time.Hour)
	}

	rows, err := r.pool.Query(ctx, query, userID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Creation
	for rows.Next() {
		var c models.Creation
		if err := rows.Scan(&c.ID, &c.UserID, &c.JobID, &c.Type, &c.Provider, &c.Model, &c.Prompt, &c.Settings, &c.OutputURL, &c.ThumbnailURL, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}

func (r *CreationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM creations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrCreationNotFound
	}
	return nil
}
