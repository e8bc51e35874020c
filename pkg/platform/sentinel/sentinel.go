package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, search, and queue
// clients return these (optionally wrapped) so the lifecycle service can
// translate them into coded domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record or action does not exist in the store
// - ErrConflict: conditional append lost the optimistic-concurrency race
// - ErrInvalidState: record in wrong status for the requested operation
// - ErrUnavailable: backing store, index, or queue temporarily unreachable
//
// For payload validation errors use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
