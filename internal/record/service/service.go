// Package service orchestrates the record lifecycle: route lookup,
// payload validation, projection, transition and scope checks, duplicate
// detection, the conditional append, and downstream synchronization.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/requestcontext"

	"registrar/internal/drafts"
	"registrar/internal/record/metrics"
	"registrar/internal/record/models"
	"registrar/internal/record/projection"
	"registrar/internal/record/routes"
	"registrar/internal/record/store"
)

var tracer = otel.Tracer("record")

// Deduper finds advisory duplicate candidates for a prospective state.
type Deduper interface {
	FindCandidates(ctx context.Context, state models.EventState) ([]models.DuplicateCandidate, error)
}

// Syncer pushes accepted actions downstream.
type Syncer interface {
	Sync(ctx context.Context, record models.Record, action models.Action, state models.EventState) error
	Reindex(ctx context.Context, recordID id.RecordID) error
}

// Service is the single entry point for every record mutation. All
// writes funnel through the store's conditional append, so two
// concurrent submissions can never both land on a stale status.
type Service struct {
	store   store.Store
	sync    Syncer
	logger  *slog.Logger
	drafts  drafts.Store
	dedupe  Deduper
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithDrafts(d drafts.Store) Option {
	return func(s *Service) { s.drafts = d }
}

func WithDeduper(d Deduper) Option {
	return func(s *Service) { s.dedupe = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(st store.Store, sync Syncer, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: st, sync: sync, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput opens a new record with its entry action.
type CreateInput struct {
	Type        models.ActionType // DECLARE or NOTIFY
	Event       id.EventType
	Declaration models.Patch
}

// ActionInput is everything a caller supplies for one action.
type ActionInput struct {
	Type           models.ActionType
	Declaration    models.Patch
	Comment        string
	Reason         string
	AssignedTo     *id.UserID
	NotDuplicateOf *id.RecordID
}

func (s *Service) buildAction(ctx context.Context, recordID id.RecordID, in ActionInput) models.Action {
	return models.Action{
		ID:                id.ActionID(uuid.New()),
		RecordID:          recordID,
		Type:              in.Type,
		Declaration:       in.Declaration.Clone(),
		CreatedBy:         requestcontext.UserID(ctx),
		CreatedAtLocation: requestcontext.OfficeID(ctx),
		CreatedAt:         requestcontext.Now(ctx),
		Comment:           in.Comment,
		Reason:            in.Reason,
		AssignedTo:        in.AssignedTo,
		NotDuplicateOf:    in.NotDuplicateOf,
	}
}

// Create opens a new record via DECLARE or NOTIFY.
func (s *Service) Create(ctx context.Context, in CreateInput) (models.EventState, error) {
	ctx, span := tracer.Start(ctx, "Record.Service.Create")
	defer span.End()
	start := time.Now()
	defer s.metrics.ObserveSubmit(start)

	route, err := routes.Lookup(in.Type)
	if err != nil {
		return models.EventState{}, err
	}
	if !route.CreatesRecord {
		return models.EventState{}, dErrors.Newf(dErrors.CodeBadRequest,
			"action %s cannot open a record", in.Type)
	}
	if err := route.CheckScopes(requestcontext.Scopes(ctx)); err != nil {
		span.RecordError(err)
		return models.EventState{}, err
	}
	if _, err := id.ParseEventType(string(in.Event)); err != nil {
		return models.EventState{}, err
	}

	record := models.Record{
		ID:                id.RecordID(uuid.New()),
		Event:             in.Event,
		TrackingID:        models.NewTrackingID(in.Event),
		CreatedAt:         requestcontext.Now(ctx),
		CreatedAtLocation: requestcontext.OfficeID(ctx),
	}
	first := s.buildAction(ctx, record.ID, ActionInput{Type: in.Type, Declaration: in.Declaration})
	if err := route.ValidatePayload(first); err != nil {
		span.RecordError(err)
		return models.EventState{}, err
	}

	created, err := s.store.Create(ctx, record, first)
	if err != nil {
		span.RecordError(err)
		return models.EventState{}, dErrors.Wrap(err, dErrors.CodeInternal, "create record")
	}

	state := projection.Project(created, nil)
	if err := s.sync.Sync(ctx, created, first, state); err != nil {
		span.RecordError(err)
		return models.EventState{}, err
	}
	s.metrics.IncrementAccepted(string(in.Type), string(record.Event))
	s.logger.InfoContext(ctx, "record created",
		"record_id", record.ID, "event", record.Event,
		"tracking_id", record.TrackingID, "request_id", requestcontext.RequestID(ctx))
	return state, nil
}

// Submit appends one action to an existing record. The status check and
// the append happen atomically inside the store; a lost race surfaces as
// a conflict and leaves the log unchanged.
func (s *Service) Submit(ctx context.Context, recordID id.RecordID, in ActionInput) (models.EventState, error) {
	ctx, span := tracer.Start(ctx, "Record.Service.Submit")
	defer span.End()
	start := time.Now()
	defer s.metrics.ObserveSubmit(start)

	route, err := routes.Lookup(in.Type)
	if err != nil {
		return models.EventState{}, err
	}
	if route.CreatesRecord && in.Type == models.ActionNotify {
		return models.EventState{}, dErrors.New(dErrors.CodeBadRequest,
			"NOTIFY opens a record, it cannot be appended")
	}

	action := s.buildAction(ctx, recordID, in)
	if err := route.ValidatePayload(action); err != nil {
		span.RecordError(err)
		return models.EventState{}, err
	}

	mode := store.ReadMinimal
	if route.FullHistory {
		mode = store.ReadFull
	}
	record, err := s.store.GetByID(ctx, recordID, mode)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.EventState{}, dErrors.Newf(dErrors.CodeNotFound, "record %s not found", recordID)
		}
		return models.EventState{}, dErrors.Wrap(err, dErrors.CodeInternal, "load record")
	}
	state := projection.Project(record, nil)

	if err := route.CheckTransition(state.Status); err != nil {
		s.metrics.IncrementRejected(string(in.Type))
		span.RecordError(err)
		return models.EventState{}, err
	}
	if err := route.CheckScopes(requestcontext.Scopes(ctx)); err != nil {
		span.RecordError(err)
		return models.EventState{}, err
	}

	switch in.Type {
	case models.ActionUnassign:
		if _, assigned := state.AssignedTo(); !assigned {
			// Releasing an unassigned record is a no-op, not an error.
			return state, nil
		}
		if err := routes.CheckUnassign(state, requestcontext.UserID(ctx), requestcontext.Scopes(ctx)); err != nil {
			span.RecordError(err)
			return models.EventState{}, err
		}
	case models.ActionEdit, models.ActionCorrect:
		if err := in.Declaration.CheckCompatible(state.Declaration); err != nil {
			err = dErrors.Wrap(err, dErrors.CodeValidation, "declaration update")
			span.RecordError(err)
			return models.EventState{}, err
		}
	}

	if route.Dedupe && s.dedupe != nil {
		action.Duplicates = s.findDuplicates(ctx, record, action)
	}

	appended, err := s.store.Append(ctx, recordID, action, route.AllowedFrom)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.IncrementConflict()
			return models.EventState{}, dErrors.Wrap(err, dErrors.CodeConflict,
				"record status changed concurrently, re-read and retry")
		}
		span.RecordError(err)
		return models.EventState{}, dErrors.Wrap(err, dErrors.CodeInternal, "append action")
	}

	record.Actions = append(record.Actions, appended)
	newState := projection.Project(record, nil)

	// The accepted action invalidates the caller's draft.
	if s.drafts != nil && len(in.Declaration) > 0 {
		if err := s.drafts.Discard(ctx, recordID, action.CreatedBy); err != nil {
			s.logger.WarnContext(ctx, "discard draft after submit",
				"record_id", recordID, "error", err)
		}
	}

	if err := s.sync.Sync(ctx, record, appended, newState); err != nil {
		span.RecordError(err)
		return models.EventState{}, err
	}
	s.metrics.IncrementAccepted(string(in.Type), string(record.Event))
	s.logger.InfoContext(ctx, "action accepted",
		"record_id", recordID, "action_type", in.Type, "status", newState.Status,
		"request_id", requestcontext.RequestID(ctx))
	return newState, nil
}

// findDuplicates runs the advisory duplicate search against the state
// the record would have after the pending action. Engine failures
// degrade to an empty verdict; they never block the lifecycle.
func (s *Service) findDuplicates(ctx context.Context, record models.Record, pending models.Action) []models.DuplicateCandidate {
	start := time.Now()
	defer s.metrics.ObserveDedupe(start)

	prospective := projection.Prospective(record, pending)
	candidates, err := s.dedupe.FindCandidates(ctx, prospective)
	if err != nil {
		s.logger.WarnContext(ctx, "duplicate search failed, proceeding without verdict",
			"record_id", record.ID, "error", err)
		return nil
	}
	if len(candidates) > 0 {
		s.metrics.IncrementDuplicates()
	}
	return candidates
}

// Assign claims a record for a user. An empty assignee claims it for
// the caller.
func (s *Service) Assign(ctx context.Context, recordID id.RecordID, assignee id.UserID) (models.EventState, error) {
	if assignee.IsNil() {
		assignee = requestcontext.UserID(ctx)
	}
	return s.Submit(ctx, recordID, ActionInput{
		Type:       models.ActionAssign,
		AssignedTo: &assignee,
	})
}

// Unassign releases a record's assignment.
func (s *Service) Unassign(ctx context.Context, recordID id.RecordID) (models.EventState, error) {
	return s.Submit(ctx, recordID, ActionInput{Type: models.ActionUnassign})
}

// ConfirmRegistration is the external validator's callback: it moves a
// record out of WAITING_VALIDATION into REGISTERED.
func (s *Service) ConfirmRegistration(ctx context.Context, recordID id.RecordID, comment string) (models.EventState, error) {
	return s.Submit(ctx, recordID, ActionInput{
		Type:    models.ActionConfirmRegistration,
		Comment: comment,
	})
}

// ResolveDuplicate records a reviewer's verdict on a flagged candidate.
// A confirmed duplicate archives the record; a dismissed one is excluded
// from every later deduplication round.
func (s *Service) ResolveDuplicate(ctx context.Context, recordID, duplicateID id.RecordID, confirmed bool) (models.EventState, error) {
	if confirmed {
		return s.Submit(ctx, recordID, ActionInput{
			Type:   models.ActionArchive,
			Reason: "duplicate of " + duplicateID.String(),
		})
	}
	return s.Submit(ctx, recordID, ActionInput{
		Type:           models.ActionMarkNotDuplicate,
		NotDuplicateOf: &duplicateID,
	})
}

// Get returns the projected state. With includeDraft the caller's own
// draft overlay is applied on top.
func (s *Service) Get(ctx context.Context, recordID id.RecordID, includeDraft bool) (models.EventState, error) {
	record, err := s.store.GetByID(ctx, recordID, store.ReadMinimal)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.EventState{}, dErrors.Newf(dErrors.CodeNotFound, "record %s not found", recordID)
		}
		return models.EventState{}, dErrors.Wrap(err, dErrors.CodeInternal, "load record")
	}

	var draft *models.Draft
	if includeDraft && s.drafts != nil {
		found, err := s.drafts.Find(ctx, recordID, requestcontext.UserID(ctx))
		switch {
		case err == nil:
			draft = &found
		case !errors.Is(err, sentinel.ErrNotFound):
			s.logger.WarnContext(ctx, "load draft overlay", "record_id", recordID, "error", err)
		}
	}
	return projection.Project(record, draft), nil
}

// History returns the complete ordered action log.
func (s *Service) History(ctx context.Context, recordID id.RecordID) ([]models.Action, error) {
	record, err := s.store.GetByID(ctx, recordID, store.ReadFull)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "record %s not found", recordID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load record history")
	}
	return record.Actions, nil
}

// SaveDraft upserts the caller's draft overlay and returns the state
// with the overlay applied. Drafts never touch the log.
func (s *Service) SaveDraft(ctx context.Context, recordID id.RecordID, declaration models.Patch) (models.EventState, error) {
	if s.drafts == nil {
		return models.EventState{}, dErrors.New(dErrors.CodeBadRequest, "drafts are not enabled")
	}
	if len(declaration) == 0 {
		return models.EventState{}, dErrors.New(dErrors.CodeValidation, "draft requires at least one field")
	}

	record, err := s.store.GetByID(ctx, recordID, store.ReadMinimal)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.EventState{}, dErrors.Newf(dErrors.CodeNotFound, "record %s not found", recordID)
		}
		return models.EventState{}, dErrors.Wrap(err, dErrors.CodeInternal, "load record")
	}

	state := projection.Project(record, nil)
	if err := declaration.CheckCompatible(state.Declaration); err != nil {
		return models.EventState{}, dErrors.Wrap(err, dErrors.CodeValidation, "draft update")
	}

	draft := models.Draft{
		RecordID:    recordID,
		UserID:      requestcontext.UserID(ctx),
		Declaration: declaration.Clone(),
		UpdatedAt:   requestcontext.Now(ctx),
	}
	if err := s.drafts.Save(ctx, draft); err != nil {
		return models.EventState{}, dErrors.Wrap(err, dErrors.CodeInternal, "save draft")
	}
	return projection.Project(record, &draft), nil
}

// DiscardDraft drops the caller's draft overlay.
func (s *Service) DiscardDraft(ctx context.Context, recordID id.RecordID) error {
	if s.drafts == nil {
		return nil
	}
	if err := s.drafts.Discard(ctx, recordID, requestcontext.UserID(ctx)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "discard draft")
	}
	return nil
}

// ReindexAll rebuilds the search document of every record. Returns the
// number of records reindexed.
func (s *Service) ReindexAll(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "Record.Service.ReindexAll")
	defer span.End()

	ids, err := s.store.ListIDs(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "list record ids")
	}
	count := 0
	for _, recordID := range ids {
		if err := s.sync.Reindex(ctx, recordID); err != nil {
			span.RecordError(err)
			return count, err
		}
		count++
	}
	s.logger.InfoContext(ctx, "search reindex complete", "records", count)
	return count, nil
}
