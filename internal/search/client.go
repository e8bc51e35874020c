// Package search defines the engine's view of the external search
// index. The index consumes projected record state for criteria search
// and serves the deduplication queries; it is eventually consistent
// with the action log and reconciled by reindexing, never by rollback.
package search

import (
	"context"

	"registrar/internal/record/models"
	id "registrar/pkg/domain"
)

// Document is the indexed shape of one record's projection.
type Document struct {
	RecordID   id.RecordID                  `json:"recordId"`
	Event      id.EventType                 `json:"event"`
	TrackingID string                       `json:"trackingId"`
	Status     models.Status                `json:"status"`
	Fields     map[string]models.FieldValue `json:"fields"`
	Duplicates []models.DuplicateCandidate  `json:"duplicates,omitempty"`
}

// MatchKind selects the comparison a clause performs.
type MatchKind string

const (
	MatchExact     MatchKind = "exact"
	MatchFuzzy     MatchKind = "fuzzy"
	MatchDateRange MatchKind = "dateRange"
)

// Clause is one field comparison within a deduplication query. Boost is
// added to the candidate's score when the clause matches.
type Clause struct {
	Field string
	Kind  MatchKind
	Value models.FieldValue
	Boost float64

	// WithinDays bounds a dateRange comparison (dates as YYYY-MM-DD
	// string fields).
	WithinDays int
}

// Hit is one scored candidate from a single query.
type Hit struct {
	RecordID id.RecordID
	Score    float64
}

// Client is the port to the search index.
type Client interface {
	// Index upserts a record's projection document.
	Index(ctx context.Context, doc Document) error

	// Search scores all indexed documents of the given event type
	// against the clauses and returns every positive-scoring hit, in no
	// particular order.
	Search(ctx context.Context, event id.EventType, clauses []Clause) ([]Hit, error)
}

// DocumentFor builds the index document from a projected state. Draft
// overlays never reach the index; callers pass draft-free projections.
func DocumentFor(state models.EventState) Document {
	fields := make(map[string]models.FieldValue, len(state.Declaration))
	for key, value := range state.Declaration {
		fields[key] = value
	}
	return Document{
		RecordID:   state.RecordID,
		Event:      state.Event,
		TrackingID: state.TrackingID,
		Status:     state.Status,
		Fields:     fields,
		Duplicates: append([]models.DuplicateCandidate(nil), state.Duplicates...),
	}
}
