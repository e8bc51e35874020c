package memory

import (
	"context"
	"sync"

	id "registrar/pkg/domain"
	audit "registrar/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	byRec  map[id.RecordID][]audit.Event
	sorted []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byRec: make(map[id.RecordID][]audit.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byRec = make(map[id.RecordID][]audit.Event)
	s.sorted = nil
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byRec[event.RecordID] = append(s.byRec[event.RecordID], event)
	s.sorted = append(s.sorted, event)
	return nil
}

func (s *InMemoryStore) ListByRecord(_ context.Context, recordID id.RecordID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.byRec[recordID]...), nil
}

// ListRecent returns the most recent N events across all records.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.sorted) - limit
	if start < 0 {
		start = 0
	}
	return append([]audit.Event{}, s.sorted[start:]...), nil
}
