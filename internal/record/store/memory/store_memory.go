// Package memory implements the action log store over process memory.
// The mutex is the serialization point: status is re-projected under
// the lock immediately before append, so two concurrent submissions
// against the same record cannot both win.
package memory

import (
	"context"
	"sync"

	"registrar/internal/record/models"
	"registrar/internal/record/projection"
	"registrar/internal/record/store"
	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.RecordID]*models.Record
	order   []id.RecordID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.RecordID]*models.Record)}
}

func (s *InMemoryStore) Create(_ context.Context, record models.Record, first models.Action) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return models.Record{}, sentinel.ErrConflict
	}

	record.Actions = []models.Action{first}
	stored := cloneRecord(record)
	s.records[record.ID] = &stored
	s.order = append(s.order, record.ID)
	return cloneRecord(stored), nil
}

func (s *InMemoryStore) Append(_ context.Context, recordID id.RecordID, action models.Action, allowedFrom []models.Status) (models.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[recordID]
	if !ok {
		return models.Action{}, sentinel.ErrNotFound
	}

	// Conditional append: re-derive status under the lock so the check
	// and the write are one atomic step.
	current := projection.Status(*record)
	if len(allowedFrom) > 0 && !store.StatusAllowed(current, allowedFrom) {
		return models.Action{}, sentinel.ErrConflict
	}

	record.Actions = append(record.Actions, action)
	return action, nil
}

func (s *InMemoryStore) GetByID(_ context.Context, recordID id.RecordID, mode store.ReadMode) (models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[recordID]
	if !ok {
		return models.Record{}, sentinel.ErrNotFound
	}

	out := cloneRecord(*record)
	if mode == store.ReadMinimal {
		out.Actions = store.MinimalActions(out.Actions)
	}
	return out, nil
}

func (s *InMemoryStore) SetResourceIDs(_ context.Context, recordID id.RecordID, resourceIDs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[recordID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if record.ResourceIDs == nil {
		record.ResourceIDs = make(map[string]string, len(resourceIDs))
	}
	for key, value := range resourceIDs {
		record.ResourceIDs[key] = value
	}
	return nil
}

func (s *InMemoryStore) ListIDs(_ context.Context) ([]id.RecordID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]id.RecordID{}, s.order...), nil
}

func cloneRecord(record models.Record) models.Record {
	out := record
	out.Actions = append([]models.Action{}, record.Actions...)
	if record.ResourceIDs != nil {
		out.ResourceIDs = make(map[string]string, len(record.ResourceIDs))
		for key, value := range record.ResourceIDs {
			out.ResourceIDs[key] = value
		}
	}
	return out
}
