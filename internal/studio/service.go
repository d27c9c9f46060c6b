package studio

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/studiox/backend/internal/assets"
	"github.com/studiox/backend/internal/models"
	"github.com/studiox/backend/internal/pricing"
	"github.com/studiox/backend/internal/provider"
)

// JobStore is the job repository interface used by the lifecycle service.
type JobStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	CreateTx(ctx context.Context, tx pgx.Tx, j *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Job, error)
	MarkProcessing(ctx context.Context, id uuid.UUID, providerTaskID string) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	CompleteTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, outputURL string) error
	FailTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string) error
	ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Job, error)
}

// CreationStore writes the completion artifact.
type CreationStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, c *models.Creation) error
}

// TokenAccountant is the token accounting interface the lifecycle needs.
// tokens.Service satisfies it.
type TokenAccountant interface {
	Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, reason string, jobID *uuid.UUID) error
	Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, reason string, jobID *uuid.UUID) error
}

// Service owns the job state machine:
//
//	queued --(submit ok)--> processing --(poll finished)--> completed
//	queued --(submit err)--> failed                 [refund]
//	processing --(poll failed)--> failed            [refund]
//	processing --(poll pending)--> processing
//
// Transactions never span a gateway call: provider submission and polling
// happen strictly outside the atomic units that move money or finalize state.
type Service struct {
	Jobs      JobStore
	Creations CreationStore
	Tokens    TokenAccountant
	Gateway   provider.Gateway
	Assets    assets.Relocator
	Prices    *pricing.Table
	Validator *Validator
	Logger    *slog.Logger
}

func NewService(
	jobs JobStore,
	creations CreationStore,
	tokens TokenAccountant,
	gateway provider.Gateway,
	relocator assets.Relocator,
	prices *pricing.Table,
	validator *Validator,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Jobs:      jobs,
		Creations: creations,
		Tokens:    tokens,
		Gateway:   gateway,
		Assets:    relocator,
		Prices:    prices,
		Validator: validator,
		Logger:    logger,
	}
}

// jobParams is the subset of generation parameters the lifecycle reads.
type jobParams struct {
	Type              string `json:"type"`
	Prompt            string `json:"prompt"`
	ReferenceImageURL string `json:"reference_image_url"`
}

func parseParams(raw json.RawMessage) jobParams {
	var p jobParams
	_ = json.Unmarshal(raw, &p)
	if p.Type == "" {
		p.Type = GenerationTypeImage
	}
	return p
}

// CreateJob reserves tokens for a generation job and submits it to the
// provider. The debit and the queued job commit as one transaction; the
// provider call happens after commit, and a submission failure triggers a
// compensating refund.
func (s *Service) CreateJob(ctx context.Context, userID uuid.UUID, providerName, model string, params json.RawMessage) (*models.Job, error) {
	if providerName == "" || model == "" || len(params) == 0 {
		return nil, fmt.Errorf("%w: provider, model, and parameters are required", models.ErrInvalidRequest)
	}
	p := parseParams(params)
	if s.Validator != nil {
		if err := s.Validator.ValidateParameters(p.Type, params); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
		}
	}

	cost := s.Prices.Cost(model)
	job := &models.Job{
		ID:         uuid.New(),
		UserID:     userID,
		Provider:   providerName,
		Model:      model,
		Parameters: params,
		CostTokens: cost,
		Status:     models.JobStatusQueued,
	}

	// Reserve tokens and persist the job as one atomic unit. If the debit
	// fails, no job exists.
	tx, err := s.Jobs.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)
	if cost > 0 {
		if err := s.Tokens.Debit(ctx, tx, userID, cost, "Job generated with "+model, &job.ID); err != nil {
			return nil, err
		}
	}
	if err := s.Jobs.CreateTx(ctx, tx, job); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	// Everything past this point talks to the external gateway, outside any
	// transaction.
	taskID, submitErr := s.submit(ctx, model, params, p)
	if submitErr != nil {
		return s.failSubmission(ctx, job, submitErr)
	}

	if err := s.Jobs.MarkProcessing(ctx, job.ID, taskID); err != nil {
		return nil, fmt.Errorf("record provider task: %w", err)
	}
	job.Status = models.JobStatusProcessing
	job.ProviderTaskID = &taskID
	return job, nil
}

// submit prepares parameters (re-hosting any reference image inside the
// provider first) and submits the task.
func (s *Service) submit(ctx context.Context, model string, params json.RawMessage, p jobParams) (string, error) {
	if p.ReferenceImageURL != "" {
		internalURL, err := s.Gateway.UploadReferenceAsset(ctx, p.ReferenceImageURL)
		if err != nil {
			return "", err
		}
		var m map[string]json.RawMessage
		if err := json.Unmarshal(params, &m); err != nil {
			return "", fmt.Errorf("reparse parameters: %w", err)
		}
		delete(m, "reference_image_url")
		quoted, _ := json.Marshal(internalURL)
		m["image_url"] = quoted
		rewritten, err := json.Marshal(m)
		if err != nil {
			return "", fmt.Errorf("rewrite parameters: %w", err)
		}
		params = rewritten
	}
	return s.Gateway.Submit(ctx, model, params)
}

// failSubmission marks the job failed and issues the compensating refund. A
// refund failure is money at risk: it is logged at the highest severity with
// a reconciliation marker and left for manual reconciliation, never silently
// swallowed.
func (s *Service) failSubmission(ctx context.Context, job *models.Job, submitErr error) (*models.Job, error) {
	s.Logger.Error("provider submission failed", "job_id", job.ID, "error", submitErr)

	reason := submitErr.Error()
	if err := s.Jobs.MarkFailed(ctx, job.ID, reason); err != nil {
		s.Logger.Error("mark job failed after submission error", "job_id", job.ID, "error", err)
	}
	job.Status = models.JobStatusFailed
	job.Error = &reason

	if job.CostTokens > 0 {
		if err := s.refund(ctx, job, fmt.Sprintf("Refund for failed submission job %s", job.ID)); err != nil {
			s.Logger.Error("compensating refund failed, tokens stuck pending manual reconciliation",
				"reconciliation", true, "job_id", job.ID, "user_id", job.UserID,
				"amount", job.CostTokens, "error", err)
		}
	}

	return job, fmt.Errorf("submit generation task: %w", submitErr)
}

func (s *Service) refund(ctx context.Context, job *models.Job, reason string) error {
	tx, err := s.Jobs.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := s.Tokens.Credit(ctx, tx, job.UserID, job.CostTokens, reason, &job.ID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// PollResult is the caller-visible outcome of one poll.
type PollResult struct {
	JobID     uuid.UUID `json:"job_id"`
	Status    string    `json:"status"`
	OutputURL *string   `json:"output_url,omitempty"`
	Error     *string   `json:"error,omitempty"`
	Progress  int       `json:"progress,omitempty"`
	Advisory  string    `json:"advisory,omitempty"`
}

func resultFromJob(j *models.Job) *PollResult {
	return &PollResult{JobID: j.ID, Status: j.Status, OutputURL: j.OutputURL, Error: j.Error}
}

// PollJob reconciles the job's state with the provider's. Terminal jobs
// return their cached result with zero writes, which is what makes repeated
// polling idempotent. Gateway errors are transient: the caller polls again.
func (s *Service) PollJob(ctx context.Context, jobID, requesterID uuid.UUID) (*PollResult, error) {
	job, err := s.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != requesterID {
		return nil, models.ErrUnauthorized
	}
	if job.Terminal() {
		return resultFromJob(job), nil
	}
	if job.Status != models.JobStatusProcessing || job.ProviderTaskID == nil {
		return resultFromJob(job), nil
	}

	st, err := s.Gateway.PollStatus(ctx, *job.ProviderTaskID)
	if err != nil {
		s.Logger.Warn("transient provider poll failure", "job_id", job.ID, "error", err)
		return &PollResult{
			JobID:    job.ID,
			Status:   models.JobStatusProcessing,
			Advisory: "polling upstream gateway",
		}, nil
	}

	switch st.State {
	case provider.StateFinished:
		return s.finalizeCompleted(ctx, job, st)
	case provider.StateFailed:
		return s.finalizeFailed(ctx, job, st)
	default:
		return &PollResult{JobID: job.ID, Status: models.JobStatusProcessing, Progress: st.Progress}, nil
	}
}

// finalizeCompleted re-hosts the output asset, then performs the guarded
// terminal transition: the job row is re-read under lock inside the
// transaction, so when two pollers race exactly one writes the completed
// state and its Creation.
func (s *Service) finalizeCompleted(ctx context.Context, job *models.Job, st *provider.Status) (*PollResult, error) {
	outputURL := st.OutputURL
	if outputURL != "" && s.Assets != nil {
		ext := assets.ExtFromURL(outputURL)
		destKey := fmt.Sprintf("generated/%s/%s/output.%s", job.UserID, job.ID, ext)
		stored, err := s.Assets.Store(ctx, outputURL, destKey, assets.ContentTypeForExt(ext))
		if err != nil {
			// Degrade to the provider-hosted URL rather than failing the
			// completion.
			s.Logger.Warn("asset relocation failed, keeping provider URL", "job_id", job.ID, "error", err)
		} else {
			outputURL = stored
		}
	}

	p := parseParams(job.Parameters)

	tx, err := s.Jobs.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	fresh, err := s.Jobs.GetByIDForUpdate(ctx, tx, job.ID)
	if err != nil {
		return nil, err
	}
	if fresh.Terminal() {
		// A concurrent poller won the race; report its result untouched.
		return resultFromJob(fresh), tx.Commit(ctx)
	}

	if err := s.Jobs.CompleteTx(ctx, tx, job.ID, outputURL); err != nil {
		return nil, err
	}
	if err := s.Creations.CreateTx(ctx, tx, &models.Creation{
		ID:           uuid.New(),
		UserID:       job.UserID,
		JobID:        job.ID,
		Type:         p.Type,
		Provider:     job.Provider,
		Model:        job.Model,
		Prompt:       p.Prompt,
		Settings:     job.Parameters,
		OutputURL:    outputURL,
		ThumbnailURL: outputURL,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &PollResult{JobID: job.ID, Status: models.JobStatusCompleted, OutputURL: &outputURL}, nil
}

// finalizeFailed performs the guarded failed transition and refunds the
// reserved tokens in the same transaction. If the transaction fails nothing
// moved: the job stays processing and a later poll retries the refund.
func (s *Service) finalizeFailed(ctx context.Context, job *models.Job, st *provider.Status) (*PollResult, error) {
	errMsg := st.ErrorMessage
	if errMsg == "" {
		errMsg = "upstream generation failure"
	}

	tx, err := s.Jobs.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	fresh, err := s.Jobs.GetByIDForUpdate(ctx, tx, job.ID)
	if err != nil {
		return nil, err
	}
	if fresh.Terminal() {
		return resultFromJob(fresh), tx.Commit(ctx)
	}

	if err := s.Jobs.FailTx(ctx, tx, job.ID, errMsg); err != nil {
		return nil, err
	}
	if job.CostTokens > 0 {
		reason := fmt.Sprintf("Refund for failed rendering task %s", job.ID)
		if err := s.Tokens.Credit(ctx, tx, job.UserID, job.CostTokens, reason, &job.ID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &PollResult{JobID: job.ID, Status: models.JobStatusFailed, Error: &errMsg}, nil
}

// ListJobs returns the user's jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Job, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	return s.Jobs.ListByUserID(ctx, userID, limit)
}
