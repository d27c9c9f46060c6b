package tokens

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/studiox/backend/internal/middleware"
	"github.com/studiox/backend/internal/models"
)

type fixedLedger struct {
	entries []*models.LedgerEntry
}

func (f fixedLedger) ListByUserID(_ context.Context, _ uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	if limit > len(f.entries) {
		limit = len(f.entries)
	}
	return f.entries[:limit], nil
}

func authed(method, target string, userID uuid.UUID) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	return r.WithContext(middleware.WithUserID(r.Context(), userID))
}

func TestGetBalanceHandler(t *testing.T) {
	userID := uuid.New()
	svc := NewService(newMockUsers(user(userID, 170)), &mockLedger{})
	h := NewHandler(svc, fixedLedger{}, nil)

	w := httptest.NewRecorder()
	h.GetBalance(w, authed(http.MethodGet, "/api/v1/tokens/balance", userID))

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	var resp balanceResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.TokenBalance != 170 {
		t.Errorf("balance: got %d, want 170", resp.TokenBalance)
	}
}

func TestGetBalanceHandlerUnauthorized(t *testing.T) {
	svc := NewService(newMockUsers(), &mockLedger{})
	h := NewHandler(svc, fixedLedger{}, nil)

	w := httptest.NewRecorder()
	h.GetBalance(w, httptest.NewRequest(http.MethodGet, "/api/v1/tokens/balance", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", w.Code)
	}
}

func TestListLedgerHandler(t *testing.T) {
	userID := uuid.New()
	entries := []*models.LedgerEntry{
		{ID: uuid.New(), UserID: userID, Amount: 200, Reason: "Initial signup welcome bonus"},
		{ID: uuid.New(), UserID: userID, Amount: -30, Reason: "Job generated with test-model"},
	}
	h := NewHandler(NewService(newMockUsers(user(userID, 170)), &mockLedger{}), fixedLedger{entries: entries}, nil)

	w := httptest.NewRecorder()
	h.ListLedger(w, authed(http.MethodGet, "/api/v1/tokens/ledger?limit=10", userID))

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	var got []*models.LedgerEntry
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("entries: got %d, want 2", len(got))
	}

	// Out-of-range limits are rejected, not clamped silently.
	w2 := httptest.NewRecorder()
	h.ListLedger(w2, authed(http.MethodGet, "/api/v1/tokens/ledger?limit=9999", userID))
	if w2.Code != http.StatusBadRequest {
		t.Fatalf("limit=9999 status: got %d, want 400", w2.Code)
	}
}
