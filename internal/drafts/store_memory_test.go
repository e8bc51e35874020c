package drafts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrar/internal/record/models"
	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
)

func newDraft(recordID id.RecordID, userID id.UserID) models.Draft {
	return models.Draft{
		RecordID:    recordID,
		UserID:      userID,
		Declaration: models.Patch{"child.firstName": models.String("Amina")},
		UpdatedAt:   time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestSaveAndFind(t *testing.T) {
	store := NewInMemoryStore()
	recordID := id.RecordID(uuid.New())
	userID := id.UserID(uuid.New())

	require.NoError(t, store.Save(context.Background(), newDraft(recordID, userID)))

	found, err := store.Find(context.Background(), recordID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.String("Amina"), found.Declaration["child.firstName"])
}

func TestFindMissing(t *testing.T) {
	store := NewInMemoryStore()
	_, err := store.Find(context.Background(), id.RecordID(uuid.New()), id.UserID(uuid.New()))
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}

func TestDraftsArePerUser(t *testing.T) {
	store := NewInMemoryStore()
	recordID := id.RecordID(uuid.New())
	author := id.UserID(uuid.New())
	other := id.UserID(uuid.New())

	require.NoError(t, store.Save(context.Background(), newDraft(recordID, author)))

	_, err := store.Find(context.Background(), recordID, other)
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}

func TestSaveUpserts(t *testing.T) {
	store := NewInMemoryStore()
	recordID := id.RecordID(uuid.New())
	userID := id.UserID(uuid.New())

	require.NoError(t, store.Save(context.Background(), newDraft(recordID, userID)))

	updated := newDraft(recordID, userID)
	updated.Declaration = models.Patch{"child.firstName": models.String("Aminata")}
	require.NoError(t, store.Save(context.Background(), updated))

	found, err := store.Find(context.Background(), recordID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.String("Aminata"), found.Declaration["child.firstName"])
}

func TestDiscard(t *testing.T) {
	store := NewInMemoryStore()
	recordID := id.RecordID(uuid.New())
	userID := id.UserID(uuid.New())

	require.NoError(t, store.Save(context.Background(), newDraft(recordID, userID)))
	require.NoError(t, store.Discard(context.Background(), recordID, userID))

	_, err := store.Find(context.Background(), recordID, userID)
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))

	// Discarding again is harmless.
	require.NoError(t, store.Discard(context.Background(), recordID, userID))
}

func TestFindReturnsCopy(t *testing.T) {
	store := NewInMemoryStore()
	recordID := id.RecordID(uuid.New())
	userID := id.UserID(uuid.New())

	require.NoError(t, store.Save(context.Background(), newDraft(recordID, userID)))

	found, err := store.Find(context.Background(), recordID, userID)
	require.NoError(t, err)
	found.Declaration["child.firstName"] = models.String("mutated")

	reread, err := store.Find(context.Background(), recordID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.String("Amina"), reread.Declaration["child.firstName"])
}
