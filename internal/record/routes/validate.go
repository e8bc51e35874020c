package routes

import (
	"registrar/internal/record/models"
	dErrors "registrar/pkg/domain-errors"
)

// ValidatePayload rejects a malformed action before any append is
// attempted. Requirements come from the route's semantics: rejection
// must be explainable (comment and reason), side branches must carry a
// reason, and entry actions must carry a declaration.
func (r Route) ValidatePayload(action models.Action) error {
	switch r.Type {
	case models.ActionReject:
		if action.Comment == "" || action.Reason == "" {
			return dErrors.New(dErrors.CodeValidation, "REJECT requires both a comment and a reason")
		}
	case models.ActionArchive, models.ActionCorrect:
		if action.Reason == "" {
			return dErrors.Newf(dErrors.CodeValidation, "%s requires a reason", r.Type)
		}
	case models.ActionDeclare, models.ActionNotify:
		if len(action.Declaration) == 0 {
			return dErrors.Newf(dErrors.CodeValidation, "%s requires a non-empty declaration", r.Type)
		}
	case models.ActionAssign:
		if action.AssignedTo == nil || action.AssignedTo.IsNil() {
			return dErrors.New(dErrors.CodeValidation, "ASSIGN requires an assignee")
		}
	case models.ActionMarkNotDuplicate:
		if action.NotDuplicateOf == nil || action.NotDuplicateOf.IsNil() {
			return dErrors.New(dErrors.CodeValidation, "MARK_NOT_DUPLICATE requires the candidate record id")
		}
	case models.ActionEdit:
		if len(action.Declaration) == 0 {
			return dErrors.New(dErrors.CodeValidation, "EDIT requires at least one field update")
		}
	}
	return nil
}
