package drafts

import (
	"context"
	"sync"

	"registrar/internal/record/models"
	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
)

type draftKey struct {
	record id.RecordID
	user   id.UserID
}

type InMemoryStore struct {
	mu     sync.RWMutex
	drafts map[draftKey]models.Draft
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{drafts: make(map[draftKey]models.Draft)}
}

func (s *InMemoryStore) Save(_ context.Context, draft models.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft.Declaration = draft.Declaration.Clone()
	s.drafts[draftKey{record: draft.RecordID, user: draft.UserID}] = draft
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, recordID id.RecordID, userID id.UserID) (models.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	draft, ok := s.drafts[draftKey{record: recordID, user: userID}]
	if !ok {
		return models.Draft{}, sentinel.ErrNotFound
	}
	draft.Declaration = draft.Declaration.Clone()
	return draft, nil
}

func (s *InMemoryStore) Discard(_ context.Context, recordID id.RecordID, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, draftKey{record: recordID, user: userID})
	return nil
}
