package models

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEntry is one signed token movement. Entries are append-only: nothing
// in the codebase updates or deletes a row once written, and every entry is
// inserted in the same transaction as the balance mutation it describes.
// Amount sign matches direction: negative = spend, positive = credit/refund.
type LedgerEntry struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Amount    int64      `json:"amount"`
	Reason    string     `json:"reason"`
	JobID     *uuid.UUID `json:"job_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
