package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Creation is the persisted artifact of a completed job. A job owns at most
// one creation (jobs.id is unique in creations), written in the same
// transaction as the completed transition.
type Creation struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	JobID        uuid.UUID       `json:"job_id"`
	Type         string          `json:"type"`
	Provider     string          `json:"provider"`
	Model        string          `json:"model"`
	Prompt       string          `json:"prompt"`
	Settings     json.RawMessage `json:"settings"`
	OutputURL    string          `json:"output_url"`
	ThumbnailURL string          `json:"thumbnail_url"`
	CreatedAt    time.Time       `json:"created_at"`
}
