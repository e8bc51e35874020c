package audit

import (
	"context"

	id "registrar/pkg/domain"
)

// Store persists audit events. Implementations must be safe for
// concurrent use.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByRecord(ctx context.Context, recordID id.RecordID) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
