package provider

import (
	"context"
	"encoding/json"
	"fmt"
)

// Task states as reported by the generation provider.
const (
	StatePending  = "pending"
	StateFinished = "finished"
	StateFailed   = "failed"
)

// Status is the provider-reported state of a submitted task.
type Status struct {
	State        string
	OutputURL    string
	Progress     int
	ErrorMessage string
}

// Gateway abstracts the generation provider. Implementations
// talk to an external, latent, unreliable service; every call must be
// bounded by a timeout and never holds a database transaction open.
type Gateway interface {
	// Submit starts a generation task and returns the provider's task id.
	Submit(ctx context.Context, model string, params json.RawMessage) (string, error)

	// PollStatus reports the current state of a task. Errors are transient
	// from the caller's point of view: polling again later is the recovery.
	PollStatus(ctx context.Context, taskID string) (*Status, error)

	// UploadReferenceAsset copies a caller-supplied asset URL into the
	// provider and returns the provider-internal URL.
	UploadReferenceAsset(ctx context.Context, fileURL string) (string, error)
}

// Error is a failure reported by or while reaching the provider.
type Error struct {
	Op      string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s", e.Op, e.Message)
}
