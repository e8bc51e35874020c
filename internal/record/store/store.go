// Package store defines the Action Log Store contract: durable,
// append-only persistence of actions per record. Append is conditional
// on the record's status as read at append time, which makes the store
// the sole serialization point for concurrent submissions.
package store

import (
	"context"

	"registrar/internal/record/models"
	id "registrar/pkg/domain"
)

// ReadMode selects how much of the log GetByID returns.
type ReadMode int

const (
	// ReadMinimal returns the actions needed to project current state:
	// everything except superseded ASSIGN/UNASSIGN entries. This is the
	// default for read-heavy call paths.
	ReadMinimal ReadMode = iota

	// ReadFull returns the complete history, for handlers that branch on
	// the timeline and for audit views.
	ReadFull
)

// Store is interface-driven so the lifecycle service stays testable and
// the in-memory and Postgres implementations are interchangeable.
type Store interface {
	// Create persists a new record together with its entry action
	// (DECLARE or NOTIFY). Fails with sentinel.ErrConflict if the record
	// id already exists.
	Create(ctx context.Context, record models.Record, first models.Action) (models.Record, error)

	// Append adds one action to the record's log if, at append time, the
	// status projected from the log is in allowedFrom. A lost
	// optimistic-concurrency race surfaces as sentinel.ErrConflict and
	// leaves the log unchanged. Either the action is fully logged or not
	// logged at all.
	Append(ctx context.Context, recordID id.RecordID, action models.Action, allowedFrom []models.Status) (models.Action, error)

	// GetByID returns the record with its log in the requested mode, or
	// sentinel.ErrNotFound.
	GetByID(ctx context.Context, recordID id.RecordID, mode ReadMode) (models.Record, error)

	// SetResourceIDs merges store-assigned external identifiers into the
	// record head after synchronization.
	SetResourceIDs(ctx context.Context, recordID id.RecordID, resourceIDs map[string]string) error

	// ListIDs returns every record id, oldest first. Used by the
	// reindexing pipeline.
	ListIDs(ctx context.Context) ([]id.RecordID, error)
}

// StatusAllowed reports membership of status in allowedFrom. Both store
// implementations run this check inside their serialization point.
func StatusAllowed(status models.Status, allowedFrom []models.Status) bool {
	for _, allowed := range allowedFrom {
		if allowed == status {
			return true
		}
	}
	return false
}

// MinimalActions filters a full log down to the minimal read view: all
// non-assignment actions plus the latest ASSIGN/UNASSIGN, which is the
// only one that matters for the derived assignment.
func MinimalActions(actions []models.Action) []models.Action {
	lastAssignment := -1
	for i, action := range actions {
		if action.Type == models.ActionAssign || action.Type == models.ActionUnassign {
			lastAssignment = i
		}
	}
	out := make([]models.Action, 0, len(actions))
	for i, action := range actions {
		if action.Type == models.ActionAssign || action.Type == models.ActionUnassign {
			if i != lastAssignment {
				continue
			}
		}
		out = append(out, action)
	}
	return out
}
