// Package store persists consent artifacts. One active row per
// (principal, fiduciary) pair; history is kept by inserting new rows on
// fork, never by overwriting a deactivated version.
package store

import (
	"context"

	"concur/internal/consent/models"
)

// Store is the durable record of consent artifacts.
//
// GetActive returns sentinel.ErrNotFound when the pair has no active
// artifact. Upsert writes the active row in place — the non-versioning
// correction path — and must never touch historical rows. Fork atomically
// deactivates the row identified by prevAgreementID and inserts next as the
// new active version; it returns sentinel.ErrConflict when that row is no
// longer active (a concurrent writer won) and sentinel.ErrNotFound when it
// does not exist.
type Store interface {
	GetActive(ctx context.Context, principalID, fiduciaryID string) (*models.ConsentArtifact, error)
	ListVersions(ctx context.Context, principalID, fiduciaryID string) ([]*models.ConsentArtifact, error)
	Upsert(ctx context.Context, artifact *models.ConsentArtifact) error
	Fork(ctx context.Context, prevAgreementID string, next *models.ConsentArtifact) error
}
