// Package billing credits purchased tokens from payment provider webhooks.
package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/studiox/backend/internal/models"
)

// PlanTokens maps a purchased plan to the tokens it grants.
var PlanTokens = map[string]int64{
	models.PlanStarter:   1000,
	models.PlanPro:       5000,
	models.PlanUnlimited: 50000,
}

// PlanPrices is the advertised price per plan in cents.
var PlanPrices = map[string]int64{
	models.PlanStarter:   999,
	models.PlanPro:       2999,
	models.PlanUnlimited: 9999,
}

// PaymentStore is the payment-record repository interface.
type PaymentStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	GetByEventIDTx(ctx context.Context, tx pgx.Tx, eventID string) (*models.PaymentRecord, error)
	CreateTx(ctx context.Context, tx pgx.Tx, p *models.PaymentRecord) error
}

// TokenCreditor adds purchased tokens inside the payment transaction.
type TokenCreditor interface {
	Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, reason string, jobID *uuid.UUID) error
}

// PlanSetter records the user's active plan.
type PlanSetter interface {
	SetPlan(ctx context.Context, tx pgx.Tx, id uuid.UUID, plan string) error
}

// Service applies payment events exactly once.
type Service struct {
	Payments PaymentStore
	Tokens   TokenCreditor
	Users    PlanSetter
	Logger   *slog.Logger
}

func NewService(payments PaymentStore, tokens TokenCreditor, users PlanSetter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Payments: payments, Tokens: tokens, Users: users, Logger: logger}
}

// ApplyPayment credits the tokens for a completed checkout. The dedup check,
// the payment record, the plan update, and the credit commit as one
// transaction keyed on the provider's event ID, so a replayed webhook either
// sees the existing record or loses the primary-key race. Returns the record
// and whether this call applied it.
func (s *Service) ApplyPayment(ctx context.Context, eventID string, userID uuid.UUID, plan string, amountPaid int64) (*models.PaymentRecord, bool, error) {
	tokens, ok := PlanTokens[plan]
	if !ok {
		return nil, false, fmt.Errorf("%w: unknown plan %q", models.ErrInvalidRequest, plan)
	}

	tx, err := s.Payments.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	existing, err := s.Payments.GetByEventIDTx(ctx, tx, eventID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		s.Logger.Info("duplicate payment event ignored", "event_id", eventID, "user_id", userID)
		return existing, false, tx.Commit(ctx)
	}

	record := &models.PaymentRecord{
		EventID:     eventID,
		UserID:      userID,
		AmountPaid:  amountPaid,
		TokensAdded: tokens,
		Plan:        plan,
		Status:      models.PaymentStatusCompleted,
	}
	if err := s.Payments.CreateTx(ctx, tx, record); err != nil {
		// A racing delivery of the same event inserts first and wins; this
		// transaction rolls back without crediting.
		return nil, false, err
	}
	if err := s.Users.SetPlan(ctx, tx, userID, plan); err != nil {
		return nil, false, err
	}
	reason := fmt.Sprintf("Purchased %s plan", plan)
	if err := s.Tokens.Credit(ctx, tx, userID, tokens, reason, nil); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}

	s.Logger.Info("payment applied", "event_id", eventID, "user_id", userID, "plan", plan, "tokens", tokens)
	return record, true, nil
}
