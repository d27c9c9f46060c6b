package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studiox/backend/internal/pricing"
)

const ctxModelCostKey contextKey = "model_cost"

// parsedSubmission is stored in context so the handler can read the priced
// cost without re-parsing the body.
type parsedSubmission struct {
	Model string `json:"model"`
	Cost  int64  `json:"-"`
}

// ModelCostFromCtx returns the cost computed by BalanceCheck, or 0 if not set.
func ModelCostFromCtx(ctx context.Context) int64 {
	if p, ok := ctx.Value(ctxModelCostKey).(*parsedSubmission); ok {
		return p.Cost
	}
	return 0
}

// BalanceCheck rejects generation requests early when the user's balance
// cannot cover the model's cost. It reads the body to extract "model", then
// replaces r.Body so downstream handlers can re-read it.
//
// This is an advisory fast path: the authoritative guard is the conditional
// debit inside the job-creation transaction, which also closes the window
// for concurrent submissions racing past this check.
func BalanceCheck(pool *pgxpool.Pool, prices *pricing.Table) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromCtx(r.Context())
			if !ok {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			bodyBytes, err := io.ReadAll(r.Body)
			r.Body.Close()
			if err != nil {
				http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
				return
			}
			// Restore body for the handler.
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			var peek parsedSubmission
			if err := json.Unmarshal(bodyBytes, &peek); err != nil {
				http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
				return
			}
			if peek.Model == "" {
				http.Error(w, `{"error":"model is required"}`, http.StatusBadRequest)
				return
			}

			peek.Cost = prices.Cost(peek.Model)
			if peek.Cost > 0 {
				balance, err := balanceFn(r.Context(), pool, userID)
				if err != nil {
					http.Error(w, `{"error":"failed to check balance"}`, http.StatusInternalServerError)
					return
				}
				if balance < peek.Cost {
					http.Error(w, `{"error":"insufficient token balance"}`, http.StatusPaymentRequired)
					return
				}
			}

			ctx := context.WithValue(r.Context(), ctxModelCostKey, &peek)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// balanceFn is the function used to read the current balance.
// Tests can replace this to avoid hitting a real database.
var balanceFn = defaultBalance

func defaultBalance(ctx context.Context, pool *pgxpool.Pool, userID uuid.UUID) (int64, error) {
	var balance int64
	err := pool.QueryRow(ctx, `
		SELECT token_balance FROM users WHERE id = $1
	`, userID).Scan(&balance)
	return balance, err
}
