// Package drafts holds the uncommitted, per-user field-edit overlays.
// A draft is client-local state: it lives outside the authoritative log
// and disappears once submitted as an action or discarded.
package drafts

import (
	"context"

	"registrar/internal/record/models"
	id "registrar/pkg/domain"
)

// Store keeps at most one draft per (record, user) pair.
type Store interface {
	// Save upserts the draft.
	Save(ctx context.Context, draft models.Draft) error

	// Find returns the caller's draft for a record, or
	// sentinel.ErrNotFound.
	Find(ctx context.Context, recordID id.RecordID, userID id.UserID) (models.Draft, error)

	// Discard removes the draft; removing a missing draft is a no-op.
	Discard(ctx context.Context, recordID id.RecordID, userID id.UserID) error
}
