//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/testutil/containers"

	"registrar/internal/record/models"
	"registrar/internal/record/store"
	"registrar/internal/record/store/postgres"
)

type PostgresStoreSuite struct {
	suite.Suite

	container *containers.PostgresContainer
	store     *postgres.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.container = containers.NewPostgresContainer(s.T())
	s.store = postgres.NewPostgres(s.container.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.container.TruncateTables(context.Background(), "record_actions", "records"))
}

func (s *PostgresStoreSuite) newRecord() (models.Record, models.Action) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	record := models.Record{
		ID:                id.RecordID(uuid.New()),
		Event:             id.EventBirth,
		TrackingID:        models.NewTrackingID(id.EventBirth),
		CreatedAt:         now,
		CreatedAtLocation: id.OfficeID(uuid.New()),
	}
	declare := models.Action{
		ID:                id.ActionID(uuid.New()),
		RecordID:          record.ID,
		Type:              models.ActionDeclare,
		Declaration:       models.Patch{"child.firstName": models.String("Amina")},
		CreatedBy:         id.UserID(uuid.New()),
		CreatedAtLocation: record.CreatedAtLocation,
		CreatedAt:         now,
	}
	return record, declare
}

func (s *PostgresStoreSuite) action(recordID id.RecordID, actionType models.ActionType) models.Action {
	return models.Action{
		ID:                id.ActionID(uuid.New()),
		RecordID:          recordID,
		Type:              actionType,
		CreatedBy:         id.UserID(uuid.New()),
		CreatedAtLocation: id.OfficeID(uuid.New()),
		CreatedAt:         time.Now().UTC(),
	}
}

func (s *PostgresStoreSuite) TestCreateAndGet() {
	ctx := context.Background()
	record, declare := s.newRecord()

	created, err := s.store.Create(ctx, record, declare)
	s.Require().NoError(err)
	s.Len(created.Actions, 1)

	loaded, err := s.store.GetByID(ctx, record.ID, store.ReadFull)
	s.Require().NoError(err)
	s.Equal(record.ID, loaded.ID)
	s.Equal(record.TrackingID, loaded.TrackingID)
	s.Require().Len(loaded.Actions, 1)
	s.Equal(models.ActionDeclare, loaded.Actions[0].Type)
	s.Equal(models.String("Amina"), loaded.Actions[0].Declaration["child.firstName"])
}

func (s *PostgresStoreSuite) TestCreateDuplicateID() {
	ctx := context.Background()
	record, declare := s.newRecord()

	_, err := s.store.Create(ctx, record, declare)
	s.Require().NoError(err)

	again := declare
	again.ID = id.ActionID(uuid.New())
	_, err = s.store.Create(ctx, record, again)
	s.True(errors.Is(err, sentinel.ErrConflict))
}

func (s *PostgresStoreSuite) TestGetMissing() {
	_, err := s.store.GetByID(context.Background(), id.RecordID(uuid.New()), store.ReadFull)
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *PostgresStoreSuite) TestConditionalAppend() {
	ctx := context.Background()
	record, declare := s.newRecord()
	_, err := s.store.Create(ctx, record, declare)
	s.Require().NoError(err)

	appended, err := s.store.Append(ctx, record.ID, s.action(record.ID, models.ActionValidate),
		[]models.Status{models.StatusDeclared})
	s.Require().NoError(err)
	s.Equal(models.ActionValidate, appended.Type)

	// The record is VALIDATED now; an append expecting DECLARED loses.
	_, err = s.store.Append(ctx, record.ID, s.action(record.ID, models.ActionValidate),
		[]models.Status{models.StatusDeclared})
	s.True(errors.Is(err, sentinel.ErrConflict))

	loaded, err := s.store.GetByID(ctx, record.ID, store.ReadFull)
	s.Require().NoError(err)
	s.Len(loaded.Actions, 2)
}

func (s *PostgresStoreSuite) TestAppendMissingRecord() {
	missing := id.RecordID(uuid.New())
	_, err := s.store.Append(context.Background(), missing, s.action(missing, models.ActionValidate),
		[]models.Status{models.StatusDeclared})
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *PostgresStoreSuite) TestConcurrentAppendSingleWinner() {
	ctx := context.Background()
	record, declare := s.newRecord()
	_, err := s.store.Create(ctx, record, declare)
	s.Require().NoError(err)

	const writers = 16
	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Append(ctx, record.ID, s.action(record.ID, models.ActionValidate),
				[]models.Status{models.StatusDeclared})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			default:
				s.T().Errorf("unexpected append error: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(writers-1), conflicts.Load())

	loaded, err := s.store.GetByID(ctx, record.ID, store.ReadFull)
	s.Require().NoError(err)
	s.Len(loaded.Actions, 2)
}

func (s *PostgresStoreSuite) TestReadModes() {
	ctx := context.Background()
	record, declare := s.newRecord()
	_, err := s.store.Create(ctx, record, declare)
	s.Require().NoError(err)

	assignee := id.UserID(uuid.New())
	first := s.action(record.ID, models.ActionAssign)
	first.AssignedTo = &assignee
	_, err = s.store.Append(ctx, record.ID, first, []models.Status{models.StatusDeclared})
	s.Require().NoError(err)
	_, err = s.store.Append(ctx, record.ID, s.action(record.ID, models.ActionUnassign),
		[]models.Status{models.StatusDeclared})
	s.Require().NoError(err)
	second := s.action(record.ID, models.ActionAssign)
	second.AssignedTo = &assignee
	_, err = s.store.Append(ctx, record.ID, second, []models.Status{models.StatusDeclared})
	s.Require().NoError(err)

	full, err := s.store.GetByID(ctx, record.ID, store.ReadFull)
	s.Require().NoError(err)
	s.Len(full.Actions, 4)

	minimal, err := s.store.GetByID(ctx, record.ID, store.ReadMinimal)
	s.Require().NoError(err)
	s.Less(len(minimal.Actions), 4)
	last := minimal.Actions[len(minimal.Actions)-1]
	s.Equal(models.ActionAssign, last.Type)
	s.Equal(second.ID, last.ID)
}

func (s *PostgresStoreSuite) TestSetResourceIDsMerges() {
	ctx := context.Background()
	record, declare := s.newRecord()
	_, err := s.store.Create(ctx, record, declare)
	s.Require().NoError(err)

	s.Require().NoError(s.store.SetResourceIDs(ctx, record.ID,
		map[string]string{"composition": "comp-1"}))
	s.Require().NoError(s.store.SetResourceIDs(ctx, record.ID,
		map[string]string{"task": "task-1"}))

	loaded, err := s.store.GetByID(ctx, record.ID, store.ReadMinimal)
	s.Require().NoError(err)
	s.Equal("comp-1", loaded.ResourceIDs["composition"])
	s.Equal("task-1", loaded.ResourceIDs["task"])
}

func (s *PostgresStoreSuite) TestListIDs() {
	ctx := context.Background()

	var want []id.RecordID
	for range 3 {
		record, declare := s.newRecord()
		_, err := s.store.Create(ctx, record, declare)
		s.Require().NoError(err)
		want = append(want, record.ID)
	}

	ids, err := s.store.ListIDs(ctx)
	s.Require().NoError(err)
	s.ElementsMatch(want, ids)
}

func (s *PostgresStoreSuite) TestActionPayloadRoundtrip() {
	ctx := context.Background()
	record, declare := s.newRecord()
	_, err := s.store.Create(ctx, record, declare)
	s.Require().NoError(err)

	candidate := id.RecordID(uuid.New())
	action := s.action(record.ID, models.ActionValidate)
	action.Comment = "looks complete"
	action.Duplicates = []models.DuplicateCandidate{{ID: candidate, Score: 4.2}}
	_, err = s.store.Append(ctx, record.ID, action, []models.Status{models.StatusDeclared})
	s.Require().NoError(err)

	loaded, err := s.store.GetByID(ctx, record.ID, store.ReadFull)
	s.Require().NoError(err)
	got := loaded.Actions[len(loaded.Actions)-1]
	s.Equal("looks complete", got.Comment)
	s.Require().Len(got.Duplicates, 1)
	s.Equal(candidate, got.Duplicates[0].ID)
	s.InDelta(4.2, got.Duplicates[0].Score, 0.0001)
}
