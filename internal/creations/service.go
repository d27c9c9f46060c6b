// Package creations serves the user's gallery of completed generations.
package creations

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studiox/backend/internal/models"
)

// Store is the creation repository interface used by the gallery service.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Creation, error)
	ListByUserID(ctx context.Context, userID uuid.UUID, limit int, before time.Time) ([]*models.Creation, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ObjectDeleter removes a stored output object. assets.MinioStore satisfies it.
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

type Service struct {
	Creations Store
	Objects   ObjectDeleter
	Logger    *slog.Logger
}

func NewService(creations Store, objects ObjectDeleter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Creations: creations, Objects: objects, Logger: logger}
}

// List returns the user's creations, newest first, paginated by created_at.
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit int, before time.Time) ([]*models.Creation, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	return s.Creations.ListByUserID(ctx, userID, limit, before)
}

// Delete removes the caller's creation. The database row is authoritative;
// the stored object is cleaned up best-effort, and a leak is only a log line.
func (s *Service) Delete(ctx context.Context, userID, creationID uuid.UUID) error {
	creation, err := s.Creations.GetByID(ctx, creationID)
	if err != nil {
		return err
	}
	if creation.UserID != userID {
		// Do not reveal that the creation exists.
		return models.ErrCreationNotFound
	}
	if err := s.Creations.Delete(ctx, creationID); err != nil {
		return err
	}

	if s.Objects != nil {
		if key, ok := objectKeyFromURL(creation.OutputURL); ok {
			if err := s.Objects.Delete(ctx, key); err != nil {
				s.Logger.Warn("delete stored output", "creation_id", creationID, "key", key, "error", err)
			}
		}
	}
	return nil
}

// objectKeyFromURL recovers the storage key from a public output URL.
// Only URLs under the generated/ prefix are ours to delete; provider-hosted
// fallback URLs are left alone.
func objectKeyFromURL(url string) (string, bool) {
	idx := strings.Index(url, "/generated/")
	if idx < 0 {
		return "", false
	}
	key := url[idx+1:]
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	return key, true
}
