package billing

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/studiox/backend/internal/models"
)

// Verifier authenticates a webhook delivery before its event is trusted.
type Verifier interface {
	Verify(body []byte, signature string) error
}

// SharedSecretVerifier compares the signature header against a static secret.
// Stand-in for a real payment provider's HMAC scheme.
type SharedSecretVerifier struct {
	Secret string
}

func (v SharedSecretVerifier) Verify(_ []byte, signature string) error {
	if v.Secret == "" || signature != v.Secret {
		return errors.New("bad webhook signature")
	}
	return nil
}

// checkoutEvent is the payment provider's webhook payload.
type checkoutEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		UserID     string `json:"user_id"`
		Plan       string `json:"plan"`
		AmountPaid int64  `json:"amount_paid"`
	} `json:"data"`
}

type webhookResponse struct {
	Received bool  `json:"received"`
	Credited bool  `json:"credited"`
	Tokens   int64 `json:"tokens,omitempty"`
}

// Handler serves the billing endpoints.
type Handler struct {
	Svc      *Service
	Verifier Verifier
	Logger   *slog.Logger
}

func NewHandler(svc *Service, verifier Verifier, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Svc: svc, Verifier: verifier, Logger: logger}
}

// Webhook handles POST /api/v1/billing/webhook.
// Verify signature -> parse event -> apply exactly once -> 200.
//
// Always answers 200 for events it chooses to skip (wrong type, unknown
// plan), so the provider does not retry deliveries that will never apply.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
		return
	}
	if err := h.Verifier.Verify(body, r.Header.Get("X-Webhook-Signature")); err != nil {
		http.Error(w, `{"error":"invalid signature"}`, http.StatusUnauthorized)
		return
	}

	var event checkoutEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if event.ID == "" {
		http.Error(w, `{"error":"event id is required"}`, http.StatusBadRequest)
		return
	}
	if event.Type != "checkout.completed" {
		writeJSON(w, http.StatusOK, webhookResponse{Received: true})
		return
	}
	userID, err := uuid.Parse(event.Data.UserID)
	if err != nil {
		http.Error(w, `{"error":"invalid user_id"}`, http.StatusBadRequest)
		return
	}

	record, applied, err := h.Svc.ApplyPayment(r.Context(), event.ID, userID, event.Data.Plan, event.Data.AmountPaid)
	if err != nil {
		if errors.Is(err, models.ErrInvalidRequest) {
			writeJSON(w, http.StatusOK, webhookResponse{Received: true})
			return
		}
		h.Logger.Error("apply payment", "event_id", event.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{Received: true, Credited: applied, Tokens: record.TokensAdded})
}

// --- GET /api/v1/billing/plans ---

type planInfo struct {
	Plan       string `json:"plan"`
	Tokens     int64  `json:"tokens"`
	PriceCents int64  `json:"price_cents"`
}

// ListPlans handles GET /api/v1/billing/plans (public, no auth).
func ListPlans(w http.ResponseWriter, _ *http.Request) {
	plans := []planInfo{
		{Plan: models.PlanStarter, Tokens: PlanTokens[models.PlanStarter], PriceCents: PlanPrices[models.PlanStarter]},
		{Plan: models.PlanPro, Tokens: PlanTokens[models.PlanPro], PriceCents: PlanPrices[models.PlanPro]},
		{Plan: models.PlanUnlimited, Tokens: PlanTokens[models.PlanUnlimited], PriceCents: PlanPrices[models.PlanUnlimited]},
	}
	writeJSON(w, http.StatusOK, plans)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
