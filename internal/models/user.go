package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription plan names. Plans gate nothing server-side except the token
// bundle granted on purchase (see billing.PlanTokens).
const (
	PlanFree      = "free"
	PlanStarter   = "starter"
	PlanPro       = "pro"
	PlanUnlimited = "unlimited"
)

// WelcomeBonusTokens is credited once at signup.
const WelcomeBonusTokens = 200

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	PasswordHash string    `json:"-"`
	Plan         string    `json:"plan"`
	TokenBalance int64     `json:"token_balance"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
