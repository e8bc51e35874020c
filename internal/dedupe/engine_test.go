package dedupe

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mocksearch "registrar/mocks/search"

	"registrar/internal/record/models"
	"registrar/internal/search"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
)

var testRules = []Rule{
	{
		Name:  "birth-same-child",
		Event: id.EventBirth,
		Clauses: []RuleClause{
			{Field: "child.firstName", Kind: search.MatchFuzzy, Boost: 2},
			{Field: "child.dob", Kind: search.MatchDateRange, Boost: 3, WithinDays: 30},
		},
	},
	{
		Name:  "birth-same-mother",
		Event: id.EventBirth,
		Clauses: []RuleClause{
			{Field: "mother.nationalId", Kind: search.MatchExact, Boost: 4},
		},
	},
}

func newEngine(t *testing.T, index search.Client) *Engine {
	t.Helper()
	config := NewConfigStore(StaticRules(testRules), time.Minute)
	return NewEngine(index, config, slog.Default())
}

func birthState(recordID id.RecordID) models.EventState {
	return models.EventState{
		RecordID: recordID,
		Event:    id.EventBirth,
		Declaration: map[string]models.FieldValue{
			"child.firstName":   models.String("Asha"),
			"child.dob":         models.String("2026-01-15"),
			"mother.nationalId": models.String("NID-12345"),
		},
		NotDuplicates: map[id.RecordID]bool{},
	}
}

func TestFindCandidatesRanking(t *testing.T) {
	ctrl := gomock.NewController(t)
	index := mocksearch.NewMockClient(ctrl)
	engine := newEngine(t, index)

	self := id.RecordID(uuid.New())
	// Fixed ids so the expected order is stable.
	low := id.RecordID(uuid.MustParse("00000000-0000-0000-0000-000000000001"))
	high := id.RecordID(uuid.MustParse("00000000-0000-0000-0000-000000000002"))

	// One rule per expectation; both rules carry fields present in the
	// declaration, so both queries run.
	index.EXPECT().Search(gomock.Any(), id.EventBirth, gomock.Any()).
		Return([]search.Hit{
			{RecordID: low, Score: 4.0},
			{RecordID: high, Score: 2.5},
		}, nil)
	index.EXPECT().Search(gomock.Any(), id.EventBirth, gomock.Any()).
		Return([]search.Hit{
			{RecordID: high, Score: 4.0}, // same score as low: id breaks the tie
			{RecordID: low, Score: 1.0},  // lower duplicate of an id keeps the max
			{RecordID: self, Score: 9.0}, // the record itself is excluded
		}, nil)

	candidates, err := engine.FindCandidates(context.Background(), birthState(self))
	require.NoError(t, err)

	require.Len(t, candidates, 2)
	assert.Equal(t, low, candidates[0].ID, "equal scores break ties by ascending id")
	assert.Equal(t, 4.0, candidates[0].Score)
	assert.Equal(t, high, candidates[1].ID)
	assert.Equal(t, 4.0, candidates[1].Score)
}

func TestFindCandidatesExclusions(t *testing.T) {
	ctrl := gomock.NewController(t)
	index := mocksearch.NewMockClient(ctrl)
	engine := newEngine(t, index)

	self := id.RecordID(uuid.New())
	dismissed := id.RecordID(uuid.New())

	state := birthState(self)
	state.NotDuplicates[dismissed] = true

	index.EXPECT().Search(gomock.Any(), id.EventBirth, gomock.Any()).
		Return([]search.Hit{{RecordID: dismissed, Score: 8.0}}, nil).
		Times(2)

	candidates, err := engine.FindCandidates(context.Background(), state)
	require.NoError(t, err)
	assert.Empty(t, candidates, "confirmed non-duplicates never resurface")
}

func TestFindCandidatesSkipsRulesWithoutFields(t *testing.T) {
	ctrl := gomock.NewController(t)
	index := mocksearch.NewMockClient(ctrl)
	engine := newEngine(t, index)

	state := birthState(id.RecordID(uuid.New()))
	// Only the mother rule's field remains.
	state.Declaration = map[string]models.FieldValue{
		"mother.nationalId": models.String("NID-12345"),
	}

	index.EXPECT().Search(gomock.Any(), id.EventBirth, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ id.EventType, clauses []search.Clause) ([]search.Hit, error) {
			require.Len(t, clauses, 1)
			assert.Equal(t, "mother.nationalId", clauses[0].Field)
			return nil, nil
		})

	candidates, err := engine.FindCandidates(context.Background(), state)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestFindCandidatesNoRulesForEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	index := mocksearch.NewMockClient(ctrl)
	engine := newEngine(t, index)

	state := birthState(id.RecordID(uuid.New()))
	state.Event = id.EventMarriage

	// No Search expectation: the engine must not query at all.
	candidates, err := engine.FindCandidates(context.Background(), state)
	require.NoError(t, err)
	assert.Nil(t, candidates)
}

func TestFindCandidatesIndexFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	index := mocksearch.NewMockClient(ctrl)
	engine := newEngine(t, index)

	index.EXPECT().Search(gomock.Any(), id.EventBirth, gomock.Any()).
		Return(nil, errors.New("index down")).
		MinTimes(1)
	index.EXPECT().Search(gomock.Any(), id.EventBirth, gomock.Any()).
		Return(nil, nil).
		AnyTimes()

	_, err := engine.FindCandidates(context.Background(), birthState(id.RecordID(uuid.New())))
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUpstreamUnavailable))
}
