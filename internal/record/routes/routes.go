// Package routes is the state machine behind every action submission.
// Each action type declares the statuses it may fire from, the scopes a
// caller must hold, and whether the handler needs the full log loaded.
// The table keeps transition legality in one place and makes the switch
// over action types exhaustive.
package routes

import (
	"strings"

	"registrar/internal/record/models"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
)

// Route describes the preconditions of one action type.
type Route struct {
	Type models.ActionType

	// AllowedFrom is the set of statuses the action may fire from. Empty
	// means the action creates the record (no prior status exists).
	AllowedFrom []models.Status

	// RequiredScopes is intersected with the caller's scope set; the
	// caller needs at least one. Empty means any authenticated caller.
	RequiredScopes []id.Scope

	// FullHistory marks routes whose handler branches on the timeline
	// (e.g. REINSTATE restores the pre-archive status), so the store load
	// must include superseded assignment actions.
	FullHistory bool

	// Dedupe marks routes that consult the deduplication engine before
	// append; the candidates are attached to the action itself.
	Dedupe bool

	// CreatesRecord marks the two entry actions.
	CreatesRecord bool
}

var nonTerminal = []models.Status{
	models.StatusInProgress, models.StatusDeclared, models.StatusValidated,
	models.StatusWaitingValidation, models.StatusRegistered, models.StatusCertified,
	models.StatusCorrectionRequested,
}

var anyStatus = append(append([]models.Status{}, nonTerminal...),
	models.StatusRejected, models.StatusArchived)

// archivable excludes ARCHIVED itself: a second archive would overwrite
// the status REINSTATE restores.
var archivable = append(append([]models.Status{}, nonTerminal...),
	models.StatusRejected)

var table = map[models.ActionType]Route{
	models.ActionNotify: {
		Type:           models.ActionNotify,
		RequiredScopes: []id.Scope{id.ScopeRecordDeclare},
		CreatesRecord:  true,
	},
	models.ActionDeclare: {
		Type: models.ActionDeclare,
		// DECLARE both creates records and re-enters the forward flow
		// from a rejected or in-progress one.
		AllowedFrom:    []models.Status{models.StatusInProgress, models.StatusRejected},
		RequiredScopes: []id.Scope{id.ScopeRecordDeclare},
		CreatesRecord:  true,
	},
	models.ActionValidate: {
		Type:           models.ActionValidate,
		AllowedFrom:    []models.Status{models.StatusDeclared},
		RequiredScopes: []id.Scope{id.ScopeRecordValidate},
		Dedupe:         true,
	},
	models.ActionRegister: {
		Type:           models.ActionRegister,
		AllowedFrom:    []models.Status{models.StatusValidated},
		RequiredScopes: []id.Scope{id.ScopeRecordRegister},
	},
	models.ActionConfirmRegistration: {
		Type:           models.ActionConfirmRegistration,
		AllowedFrom:    []models.Status{models.StatusWaitingValidation},
		RequiredScopes: []id.Scope{id.ScopeRecordRegister},
	},
	models.ActionCertify: {
		Type:           models.ActionCertify,
		AllowedFrom:    []models.Status{models.StatusRegistered},
		RequiredScopes: []id.Scope{id.ScopeRecordCertify},
	},
	models.ActionReject: {
		Type:           models.ActionReject,
		AllowedFrom:    nonTerminal,
		RequiredScopes: []id.Scope{id.ScopeRecordValidate, id.ScopeRecordRegister},
	},
	models.ActionArchive: {
		Type:           models.ActionArchive,
		AllowedFrom:    archivable,
		RequiredScopes: []id.Scope{id.ScopeRecordArchive},
	},
	models.ActionReinstate: {
		Type:           models.ActionReinstate,
		AllowedFrom:    []models.Status{models.StatusArchived},
		RequiredScopes: []id.Scope{id.ScopeRecordArchive},
		FullHistory:    true,
	},
	models.ActionCorrect: {
		Type:           models.ActionCorrect,
		AllowedFrom:    []models.Status{models.StatusRegistered, models.StatusCertified},
		RequiredScopes: []id.Scope{id.ScopeRecordCorrect},
	},
	models.ActionApproveCorrection: {
		Type:           models.ActionApproveCorrection,
		AllowedFrom:    []models.Status{models.StatusCorrectionRequested},
		RequiredScopes: []id.Scope{id.ScopeRecordRegister},
	},
	models.ActionRejectCorrection: {
		Type:           models.ActionRejectCorrection,
		AllowedFrom:    []models.Status{models.StatusCorrectionRequested},
		RequiredScopes: []id.Scope{id.ScopeRecordRegister},
		FullHistory:    true,
	},
	models.ActionEdit: {
		Type: models.ActionEdit,
		AllowedFrom: []models.Status{
			models.StatusInProgress, models.StatusDeclared, models.StatusRejected,
		},
		RequiredScopes: []id.Scope{id.ScopeRecordDeclare},
	},
	models.ActionAssign: {
		Type:           models.ActionAssign,
		AllowedFrom:    nonTerminal,
		RequiredScopes: []id.Scope{id.ScopeRecordAssign},
		FullHistory:    true,
	},
	models.ActionUnassign: {
		Type:           models.ActionUnassign,
		AllowedFrom:    anyStatus,
		RequiredScopes: []id.Scope{id.ScopeRecordAssign},
		FullHistory:    true,
	},
	models.ActionMarkNotDuplicate: {
		Type:           models.ActionMarkNotDuplicate,
		AllowedFrom:    []models.Status{models.StatusDeclared, models.StatusValidated},
		RequiredScopes: []id.Scope{id.ScopeRecordValidate},
	},
}

// Lookup returns the route for an action type.
func Lookup(t models.ActionType) (Route, error) {
	route, ok := table[t]
	if !ok {
		return Route{}, dErrors.Newf(dErrors.CodeBadRequest, "unknown action type %q", t)
	}
	return route, nil
}

// allows reports whether the route may fire from the given status.
func (r Route) allows(status models.Status) bool {
	for _, allowed := range r.AllowedFrom {
		if allowed == status {
			return true
		}
	}
	return false
}

// CheckTransition rejects the action when the record's current status is
// not an allowed start state. The same check runs again inside the
// store's conditional append, which is the serialization point; this
// early check exists to fail fast with a precise error.
func (r Route) CheckTransition(current models.Status) error {
	if r.allows(current) {
		return nil
	}
	return dErrors.Newf(dErrors.CodeInvalidTransition,
		"action %s is not legal from status %s (allowed: %s)",
		r.Type, current, joinStatuses(r.AllowedFrom))
}

// CheckScopes rejects the caller when their scope set does not intersect
// the route's required scopes.
func (r Route) CheckScopes(scopes id.ScopeSet) error {
	if scopes.HasAny(r.RequiredScopes...) {
		return nil
	}
	return dErrors.Newf(dErrors.CodeUnauthorized,
		"action %s requires one of the scopes %v", r.Type, r.RequiredScopes)
}

// CheckUnassign applies the special assignment rule: unassigning one's
// own record, or a record with no active assignment, is always permitted
// (the latter is a no-op). Unassigning a record held by another user
// requires the event-type-scoped unassign-others grant.
func CheckUnassign(state models.EventState, caller id.UserID, scopes id.ScopeSet) error {
	holder, assigned := state.AssignedTo()
	if !assigned || holder == caller {
		return nil
	}
	if scopes.Has(id.UnassignOthersScope(state.Event)) {
		return nil
	}
	return dErrors.Newf(dErrors.CodeForbidden,
		"record is assigned to another user; scope %s required",
		id.UnassignOthersScope(state.Event))
}

func joinStatuses(statuses []models.Status) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
