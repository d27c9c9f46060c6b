package router

import (
	"net/http"

	"github.com/studiox/backend/internal/auth"
	"github.com/studiox/backend/internal/billing"
	"github.com/studiox/backend/internal/creations"
	"github.com/studiox/backend/internal/studio"
	"github.com/studiox/backend/internal/tokens"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// New returns an http.Handler serving the API under /api/v1.
// requireUser authenticates; balanceCheck runs on generation submissions only.
func New(
	authHandler *auth.Handler,
	tokensHandler *tokens.Handler,
	studioHandler *studio.Handler,
	billingHandler *billing.Handler,
	creationsHandler *creations.Handler,
	requireUser Middleware,
	balanceCheck Middleware,
) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	// Public.
	mux.HandleFunc("POST "+base+"/auth/register", authHandler.Register)
	mux.HandleFunc("POST "+base+"/auth/login", authHandler.Login)
	mux.HandleFunc("GET "+base+"/billing/plans", billing.ListPlans)
	mux.HandleFunc("POST "+base+"/billing/webhook", billingHandler.Webhook)

	// Authenticated.
	mux.Handle("GET "+base+"/users/me", requireUser(http.HandlerFunc(authHandler.Me)))
	mux.Handle("GET "+base+"/tokens/balance", requireUser(http.HandlerFunc(tokensHandler.GetBalance)))
	mux.Handle("GET "+base+"/tokens/ledger", requireUser(http.HandlerFunc(tokensHandler.ListLedger)))

	// POST /studio/generate: Auth -> Balance -> Generate
	generate := http.Handler(http.HandlerFunc(studioHandler.Generate))
	if balanceCheck != nil {
		generate = balanceCheck(generate)
	}
	mux.Handle("POST "+base+"/studio/generate", requireUser(generate))
	mux.Handle("GET "+base+"/studio/jobs", requireUser(http.HandlerFunc(studioHandler.ListJobs)))
	mux.Handle("GET "+base+"/studio/jobs/{id}", requireUser(http.HandlerFunc(studioHandler.PollJob)))

	mux.Handle("GET "+base+"/creations", requireUser(http.HandlerFunc(creationsHandler.List)))
	mux.Handle("DELETE "+base+"/creations/{id}", requireUser(http.HandlerFunc(creationsHandler.Delete)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}
