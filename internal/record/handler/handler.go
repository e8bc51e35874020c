// Package handler exposes the record lifecycle over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"registrar/internal/platform/metrics"
	"registrar/internal/platform/middleware"
	"registrar/internal/record/models"
	"registrar/internal/record/service"
	"registrar/internal/transport/http/shared"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	audit "registrar/pkg/platform/audit"
	"registrar/pkg/requestcontext"
)

// Service defines the lifecycle operations the handler exposes.
type Service interface {
	Create(ctx context.Context, in service.CreateInput) (models.EventState, error)
	Submit(ctx context.Context, recordID id.RecordID, in service.ActionInput) (models.EventState, error)
	Assign(ctx context.Context, recordID id.RecordID, assignee id.UserID) (models.EventState, error)
	Unassign(ctx context.Context, recordID id.RecordID) (models.EventState, error)
	ConfirmRegistration(ctx context.Context, recordID id.RecordID, comment string) (models.EventState, error)
	ResolveDuplicate(ctx context.Context, recordID, duplicateID id.RecordID, confirmed bool) (models.EventState, error)
	Get(ctx context.Context, recordID id.RecordID, includeDraft bool) (models.EventState, error)
	History(ctx context.Context, recordID id.RecordID) ([]models.Action, error)
	SaveDraft(ctx context.Context, recordID id.RecordID, declaration models.Patch) (models.EventState, error)
	DiscardDraft(ctx context.Context, recordID id.RecordID) error
	ReindexAll(ctx context.Context) (int, error)
}

// AuditLister exposes the per-record audit trail.
type AuditLister interface {
	List(ctx context.Context, recordID id.RecordID) ([]audit.Event, error)
}

// Handler handles record lifecycle endpoints.
type Handler struct {
	logger       *slog.Logger
	records      Service
	auditTrail   AuditLister
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new record Handler.
func New(
	records Service,
	logger *slog.Logger,
	m *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
	auditTrail AuditLister,
) *Handler {
	return &Handler{
		logger:       logger,
		records:      records,
		auditTrail:   auditTrail,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register registers the record routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	recordRouter := chi.NewRouter()
	recordRouter.Use(middleware.Recovery(h.logger))
	recordRouter.Use(middleware.RequestID)
	recordRouter.Use(middleware.Logger(h.logger))
	recordRouter.Use(middleware.Timeout(30 * time.Second))
	recordRouter.Use(middleware.ContentTypeJSON)
	recordRouter.Use(middleware.LatencyMiddleware(h.metrics))
	recordRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	recordRouter.Post("/records", h.handleCreate)
	recordRouter.Get("/records/{recordID}", h.handleGet)
	recordRouter.Get("/records/{recordID}/history", h.handleHistory)
	recordRouter.Get("/records/{recordID}/audit", h.handleAudit)
	recordRouter.Post("/records/{recordID}/actions", h.handleAction)
	recordRouter.Post("/records/{recordID}/assign", h.handleAssign)
	recordRouter.Post("/records/{recordID}/unassign", h.handleUnassign)
	recordRouter.Post("/records/{recordID}/confirm", h.handleConfirm)
	recordRouter.Post("/records/{recordID}/duplicates/{duplicateID}/verdict", h.handleDuplicateVerdict)
	recordRouter.Put("/records/{recordID}/draft", h.handleSaveDraft)
	recordRouter.Delete("/records/{recordID}/draft", h.handleDiscardDraft)
	recordRouter.Post("/admin/reindex", h.handleReindex)

	r.Mount("/", recordRouter)
}

func (h *Handler) recordID(w http.ResponseWriter, r *http.Request) (id.RecordID, bool) {
	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		shared.WriteError(w, err)
		return id.RecordID{}, false
	}
	return recordID, true
}

type createRequest struct {
	Type        models.ActionType `json:"type"`
	Event       id.EventType      `json:"event"`
	Declaration models.Patch      `json:"declaration"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	state, err := h.records.Create(ctx, service.CreateInput{
		Type:        req.Type,
		Event:       req.Event,
		Declaration: req.Declaration,
	})
	if err != nil {
		h.writeServiceError(w, r, "create record", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, state)
}

type actionRequest struct {
	Type           models.ActionType `json:"type"`
	Declaration    models.Patch      `json:"declaration"`
	Comment        string            `json:"comment"`
	Reason         string            `json:"reason"`
	AssignedTo     *id.UserID        `json:"assignedTo"`
	NotDuplicateOf *id.RecordID      `json:"notDuplicateOf"`
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	state, err := h.records.Submit(ctx, recordID, service.ActionInput{
		Type:           req.Type,
		Declaration:    req.Declaration,
		Comment:        req.Comment,
		Reason:         req.Reason,
		AssignedTo:     req.AssignedTo,
		NotDuplicateOf: req.NotDuplicateOf,
	})
	if err != nil {
		h.writeServiceError(w, r, "submit action", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, state)
}

type assignRequest struct {
	AssignedTo *id.UserID `json:"assignedTo"`
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}

	var req assignRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}
	assignee := id.UserID{}
	if req.AssignedTo != nil {
		assignee = *req.AssignedTo
	}

	state, err := h.records.Assign(ctx, recordID, assignee)
	if err != nil {
		h.writeServiceError(w, r, "assign record", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, state)
}

func (h *Handler) handleUnassign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}

	state, err := h.records.Unassign(ctx, recordID)
	if err != nil {
		h.writeServiceError(w, r, "unassign record", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, state)
}

type confirmRequest struct {
	Comment string `json:"comment"`
}

// handleConfirm is the external validator's callback after reviewing a
// registration held in WAITING_VALIDATION.
func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}

	var req confirmRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	state, err := h.records.ConfirmRegistration(ctx, recordID, req.Comment)
	if err != nil {
		h.writeServiceError(w, r, "confirm registration", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, state)
}

type verdictRequest struct {
	Confirmed bool `json:"confirmed"`
}

func (h *Handler) handleDuplicateVerdict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	duplicateID, err := id.ParseRecordID(chi.URLParam(r, "duplicateID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req verdictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	state, err := h.records.ResolveDuplicate(ctx, recordID, duplicateID, req.Confirmed)
	if err != nil {
		h.writeServiceError(w, r, "resolve duplicate", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, state)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}

	includeDraft := r.URL.Query().Get("draft") == "true"
	state, err := h.records.Get(ctx, recordID, includeDraft)
	if err != nil {
		h.writeServiceError(w, r, "get record", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, state)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}

	actions, err := h.records.History(ctx, recordID)
	if err != nil {
		h.writeServiceError(w, r, "get record history", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.auditTrail == nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "audit trail not enabled"))
		return
	}
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}

	events, err := h.auditTrail.List(ctx, recordID)
	if err != nil {
		h.writeServiceError(w, r, "list audit trail", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

type draftRequest struct {
	Declaration models.Patch `json:"declaration"`
}

func (h *Handler) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}

	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	state, err := h.records.SaveDraft(ctx, recordID, req.Declaration)
	if err != nil {
		h.writeServiceError(w, r, "save draft", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, state)
}

func (h *Handler) handleDiscardDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}

	if err := h.records.DiscardDraft(ctx, recordID); err != nil {
		h.writeServiceError(w, r, "discard draft", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReindex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	count, err := h.records.ReindexAll(ctx)
	if err != nil {
		h.writeServiceError(w, r, "reindex records", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]int{"reindexed": count})
}

// writeServiceError logs at a level matching the error class and maps
// it onto the HTTP response.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeUpstreamUnavailable:
		h.logger.ErrorContext(ctx, "failed to "+op,
			"request_id", requestID,
			"error", err.Error(),
		)
	default:
		h.logger.WarnContext(ctx, "rejected "+op,
			"request_id", requestID,
			"error", err.Error(),
		)
	}
	shared.WriteError(w, err)
}
