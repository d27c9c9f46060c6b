package tokens

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/studiox/backend/internal/middleware"
	"github.com/studiox/backend/internal/models"
)

// BalanceReader reads the current token balance.
type BalanceReader interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
}

// LedgerReader lists a user's ledger entries.
type LedgerReader interface {
	ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LedgerEntry, error)
}

// Handler serves the token balance and ledger endpoints.
type Handler struct {
	Balance BalanceReader
	Ledger  LedgerReader
	Logger  *slog.Logger
}

func NewHandler(balance BalanceReader, ledger LedgerReader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Balance: balance, Ledger: ledger, Logger: logger}
}

type balanceResponse struct {
	TokenBalance int64 `json:"token_balance"`
}

// GetBalance handles GET /api/v1/tokens/balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	balance, err := h.Balance.GetBalance(r.Context(), userID)
	if err != nil {
		h.Logger.Error("get balance", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{TokenBalance: balance})
}

// ListLedger handles GET /api/v1/tokens/ledger.
func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			http.Error(w, `{"error":"limit must be between 1 and 100"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries, err := h.Ledger.ListByUserID(r.Context(), userID, limit)
	if err != nil {
		h.Logger.Error("list ledger", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
