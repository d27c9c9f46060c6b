package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job status enums. Transitions are monotonic: completed and failed are
// terminal, and the finalize transactions re-read the row before writing so
// concurrent pollers cannot move a job out of a terminal state.
const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

type Job struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Provider       string          `json:"provider"`
	Model          string          `json:"model"`
	Parameters     json.RawMessage `json:"parameters"`
	CostTokens     int64           `json:"cost_tokens"`
	Status         string          `json:"status"`
	ProviderTaskID *string         `json:"provider_task_id,omitempty"`
	OutputURL      *string         `json:"output_url,omitempty"`
	Error          *string         `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
