package studio

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/studiox/backend/internal/middleware"
	"github.com/studiox/backend/internal/models"
)

// Request/response structs use snake_case JSON.

type generateRequest struct {
	Provider   string          `json:"provider"`
	Model      string          `json:"model"`
	Parameters json.RawMessage `json:"parameters"`
}

type jobResponse struct {
	ID             string          `json:"id"`
	Status         string          `json:"status"`
	Provider       string          `json:"provider"`
	Model          string          `json:"model"`
	Parameters     json.RawMessage `json:"parameters"`
	CostTokens     int64           `json:"cost_tokens"`
	ProviderTaskID *string         `json:"provider_task_id,omitempty"`
	OutputURL      *string         `json:"output_url,omitempty"`
	Error          *string         `json:"error,omitempty"`
}

// Handler serves the generation endpoints.
type Handler struct {
	Svc    *Service
	Logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Svc: svc, Logger: logger}
}

// Generate handles POST /api/v1/studio/generate.
// Auth -> Balance (via middleware) -> Validate -> Debit+Create -> Submit -> 202.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Provider == "" {
		req.Provider = "poyo"
	}
	if req.Model == "" {
		http.Error(w, `{"error":"model is required"}`, http.StatusBadRequest)
		return
	}

	job, err := h.Svc.CreateJob(r.Context(), userID, req.Provider, req.Model, req.Parameters)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, jobToResponse(job))
	case errors.Is(err, models.ErrInsufficientFunds):
		http.Error(w, `{"error":"insufficient token balance"}`, http.StatusPaymentRequired)
	case errors.Is(err, models.ErrInvalidRequest) || errors.Is(err, ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case job != nil && job.Status == models.JobStatusFailed:
		// Submission failed after the debit; the refund already ran. Surface
		// the failed job so the client sees the terminal state immediately.
		writeJSON(w, http.StatusBadGateway, jobToResponse(job))
	default:
		h.Logger.Error("create job", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

// PollJob handles GET /api/v1/studio/jobs/{id}.
func (h *Handler) PollJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	jobID, ok := extractJobID(r)
	if !ok {
		http.Error(w, `{"error":"invalid job id"}`, http.StatusBadRequest)
		return
	}

	result, err := h.Svc.PollJob(r.Context(), jobID, userID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, models.ErrJobNotFound):
		http.Error(w, `{"error":"job not found"}`, http.StatusNotFound)
	case errors.Is(err, models.ErrUnauthorized):
		// Do not reveal that the job exists.
		http.Error(w, `{"error":"job not found"}`, http.StatusNotFound)
	default:
		h.Logger.Error("poll job", "job_id", jobID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

// ListJobs handles GET /api/v1/studio/jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	jobs, err := h.Svc.ListJobs(r.Context(), userID, limit)
	if err != nil {
		h.Logger.Error("list jobs", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobToResponse(j))
	}
	writeJSON(w, http.StatusOK, out)
}

func jobToResponse(j *models.Job) jobResponse {
	return jobResponse{
		ID:             j.ID.String(),
		Status:         j.Status,
		Provider:       j.Provider,
		Model:          j.Model,
		Parameters:     j.Parameters,
		CostTokens:     j.CostTokens,
		ProviderTaskID: j.ProviderTaskID,
		OutputURL:      j.OutputURL,
		Error:          j.Error,
	}
}

// extractJobID parses the job UUID from the URL path.
// Supports paths like /api/v1/studio/jobs/{id}.
func extractJobID(r *http.Request) (uuid.UUID, bool) {
	if id := r.PathValue("id"); id != "" {
		parsed, err := uuid.Parse(id)
		return parsed, err == nil
	}
	path := r.URL.Path
	idx := strings.LastIndex(path, "/")
	if idx < 0 || idx == len(path)-1 {
		return uuid.Nil, false
	}
	parsed, err := uuid.Parse(path[idx+1:])
	return parsed, err == nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
