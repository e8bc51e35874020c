// Package synchronizer projects accepted actions into downstream
// systems: the external persistence store, the search index, the audit
// trail, webhooks, informant notifications, and the validation queue.
// The action log stays the single source of truth; downstream copies
// are derived and reconcilable.
package synchronizer

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	audit "registrar/pkg/platform/audit"
	"registrar/pkg/requestcontext"

	"registrar/internal/fhir"
	"registrar/internal/notification"
	"registrar/internal/record/metrics"
	"registrar/internal/record/models"
	"registrar/internal/record/projection"
	"registrar/internal/record/store"
	"registrar/internal/search"
	"registrar/internal/validationqueue"
	"registrar/internal/webhook"
)

// AuditEmitter is the slice of the audit publisher the synchronizer uses.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Dispatcher delivers webhook payloads.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload webhook.Payload)
}

// Synchronizer fans one accepted action out to every downstream system.
// Only the persistence store is load-bearing: its failure propagates so
// the caller knows external resources are stale. Everything else is
// best-effort and logged.
type Synchronizer struct {
	store    store.Store
	fhir     fhir.Client
	logger   *slog.Logger
	search   search.Client
	audit    AuditEmitter
	webhooks Dispatcher
	notifier notification.Notifier
	reviews  validationqueue.Reviewer
	metrics  *metrics.Metrics
}

type Option func(*Synchronizer)

func WithSearch(client search.Client) Option {
	return func(s *Synchronizer) { s.search = client }
}

func WithAudit(emitter AuditEmitter) Option {
	return func(s *Synchronizer) { s.audit = emitter }
}

func WithWebhooks(d Dispatcher) Option {
	return func(s *Synchronizer) { s.webhooks = d }
}

func WithNotifier(n notification.Notifier) Option {
	return func(s *Synchronizer) { s.notifier = n }
}

func WithReviewQueue(q validationqueue.Reviewer) Option {
	return func(s *Synchronizer) { s.reviews = q }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Synchronizer) { s.metrics = m }
}

func New(st store.Store, fhirClient fhir.Client, logger *slog.Logger, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:    st,
		fhir:     fhirClient,
		logger:   logger,
		notifier: notification.NopNotifier{},
		reviews:  validationqueue.NopQueue{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync pushes the accepted action downstream. The record carries the
// log including the new action; state is its projection without drafts.
func (s *Synchronizer) Sync(ctx context.Context, record models.Record, action models.Action, state models.EventState) error {
	start := time.Now()
	defer s.metrics.ObserveSync(start)

	if err := s.syncPersistence(ctx, &record, action, state); err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
		return err
	}

	s.indexState(ctx, state)
	s.emitAudit(ctx, action, state)
	s.dispatchWebhook(ctx, action, state)
	s.notifyInformant(ctx, action, state)
	s.requestReview(ctx, record, action, state)
	return nil
}

func (s *Synchronizer) syncPersistence(ctx context.Context, record *models.Record, action models.Action, state models.EventState) error {
	bundle := fhir.BundleFor(*record, action, state)
	result, err := s.fhir.SubmitBundle(ctx, bundle)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "synchronize record bundle")
	}
	if len(result.AssignedIDs) == 0 {
		return nil
	}
	if err := s.store.SetResourceIDs(ctx, record.ID, result.AssignedIDs); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "persist assigned resource ids")
	}
	if record.ResourceIDs == nil {
		record.ResourceIDs = make(map[string]string, len(result.AssignedIDs))
	}
	for key, value := range result.AssignedIDs {
		record.ResourceIDs[key] = value
	}
	return nil
}

func (s *Synchronizer) indexState(ctx context.Context, state models.EventState) {
	if s.search == nil {
		return
	}
	if err := s.search.Index(ctx, search.DocumentFor(state)); err != nil {
		s.logger.WarnContext(ctx, "index record state",
			"record_id", state.RecordID, "error", err)
	}
}

// auditEventByAction maps accepted action types to their audit event.
var auditEventByAction = map[models.ActionType]audit.AuditEvent{
	models.ActionNotify:              audit.EventRecordCreated,
	models.ActionDeclare:             audit.EventRecordCreated,
	models.ActionConfirmRegistration: audit.EventRecordRegistered,
	models.ActionCertify:             audit.EventRecordCertified,
	models.ActionArchive:             audit.EventRecordArchived,
	models.ActionCorrect:             audit.EventCorrectionRequested,
	models.ActionApproveCorrection:   audit.EventCorrectionResolved,
	models.ActionRejectCorrection:    audit.EventCorrectionResolved,
	models.ActionAssign:              audit.EventRecordAssigned,
	models.ActionUnassign:            audit.EventRecordUnassigned,
}

func (s *Synchronizer) emitAudit(ctx context.Context, action models.Action, state models.EventState) {
	if s.audit == nil {
		return
	}
	auditEvent, ok := auditEventByAction[action.Type]
	if !ok {
		auditEvent = audit.EventActionAccepted
	}
	event := audit.Event{
		RecordID:   state.RecordID,
		UserID:     action.CreatedBy,
		OfficeID:   action.CreatedAtLocation,
		Action:     string(auditEvent),
		TrackingID: state.TrackingID,
		Status:     string(state.Status),
		Reason:     action.Reason,
		RequestID:  requestcontext.RequestID(ctx),
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "emit audit event",
			"record_id", state.RecordID, "action", event.Action, "error", err)
	}

	if len(action.Duplicates) > 0 {
		flagged := event
		flagged.Action = string(audit.EventDuplicatesFlagged)
		if err := s.audit.Emit(ctx, flagged); err != nil {
			s.logger.WarnContext(ctx, "emit audit event",
				"record_id", state.RecordID, "action", flagged.Action, "error", err)
		}
	}
}

func (s *Synchronizer) dispatchWebhook(ctx context.Context, action models.Action, state models.EventState) {
	if s.webhooks == nil {
		return
	}
	s.webhooks.Dispatch(ctx, webhook.Payload{
		RecordID:   state.RecordID,
		Event:      state.Event,
		ActionType: action.Type,
		Status:     state.Status,
		TrackingID: state.TrackingID,
		OccurredAt: action.CreatedAt,
	})
}

func (s *Synchronizer) notifyInformant(ctx context.Context, action models.Action, state models.EventState) {
	kind, ok := notification.KindFor(action.Type)
	if !ok {
		return
	}
	msg := notification.Message{
		RecordID:   state.RecordID,
		Event:      state.Event,
		TrackingID: state.TrackingID,
		Kind:       kind,
	}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "notify informant",
			"record_id", state.RecordID, "kind", kind, "error", err)
	}
}

func (s *Synchronizer) requestReview(ctx context.Context, record models.Record, action models.Action, state models.EventState) {
	if action.Type != models.ActionRegister {
		return
	}
	req := validationqueue.ReviewRequest{
		RecordID:    record.ID,
		ActionID:    action.ID,
		Event:       record.Event,
		TrackingID:  record.TrackingID,
		Declaration: state.Declaration,
		RequestedAt: action.CreatedAt,
	}
	if err := s.reviews.RequestReview(ctx, req); err != nil {
		s.logger.WarnContext(ctx, "request external review",
			"record_id", record.ID, "error", err)
	}
}

// Reindex rebuilds one record's search document from its log. Used by
// the reindexing pipeline after index loss or rule changes.
func (s *Synchronizer) Reindex(ctx context.Context, recordID id.RecordID) error {
	if s.search == nil {
		return nil
	}
	record, err := s.store.GetByID(ctx, recordID, store.ReadMinimal)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "load record for reindex")
	}
	state := projection.Project(record, nil)
	if err := s.search.Index(ctx, search.DocumentFor(state)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "reindex record")
	}
	return nil
}
