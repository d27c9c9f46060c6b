package models

import (
	"time"

	"github.com/google/uuid"
)

const PaymentStatusCompleted = "completed"

// PaymentRecord deduplicates payment-gateway event deliveries. EventID is the
// primary key; the existence of a row is the idempotency guard, checked and
// written inside the same transaction that applies the token credit.
type PaymentRecord struct {
	EventID     string    `json:"event_id"`
	UserID      uuid.UUID `json:"user_id"`
	AmountPaid  int64     `json:"amount_paid"`
	TokensAdded int64     `json:"tokens_added"`
	Plan        string    `json:"plan"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}
