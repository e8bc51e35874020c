package models

import (
	"time"

	id "registrar/pkg/domain"
)

// ActionType is the closed set of entries a record's log can carry.
// Adding a variant requires a route table entry (internal/record/routes)
// and, when status-defining, a case in the projection fold.
type ActionType string

const (
	ActionNotify    ActionType = "NOTIFY"
	ActionDeclare   ActionType = "DECLARE"
	ActionValidate  ActionType = "VALIDATE"
	ActionRegister  ActionType = "REGISTER"
	ActionReject    ActionType = "REJECT"
	ActionArchive   ActionType = "ARCHIVE"
	ActionReinstate ActionType = "REINSTATE"
	ActionCertify   ActionType = "CERTIFY"
	ActionCorrect   ActionType = "CORRECT"
	ActionAssign    ActionType = "ASSIGN"
	ActionUnassign  ActionType = "UNASSIGN"
	ActionEdit      ActionType = "EDIT"

	// ActionConfirmRegistration is appended by the external validator's
	// confirm callback and moves WAITING_VALIDATION to REGISTERED.
	ActionConfirmRegistration ActionType = "CONFIRM_REGISTRATION"

	// ActionApproveCorrection / ActionRejectCorrection resolve a
	// CORRECTION_REQUESTED side branch.
	ActionApproveCorrection ActionType = "APPROVE_CORRECTION"
	ActionRejectCorrection  ActionType = "REJECT_CORRECTION"

	// ActionMarkNotDuplicate records a reviewer's verdict that a
	// previously surfaced candidate is not the same real-world event.
	// The referenced record is excluded from later deduplication rounds.
	ActionMarkNotDuplicate ActionType = "MARK_NOT_DUPLICATE"
)

// Status is derived from the log, never stored as an independent source
// of truth. A record has exactly one current status at any point.
type Status string

const (
	StatusInProgress          Status = "IN_PROGRESS"
	StatusDeclared            Status = "DECLARED"
	StatusValidated           Status = "VALIDATED"
	StatusWaitingValidation   Status = "WAITING_VALIDATION"
	StatusRegistered          Status = "REGISTERED"
	StatusCertified           Status = "CERTIFIED"
	StatusRejected            Status = "REJECTED"
	StatusArchived            Status = "ARCHIVED"
	StatusCorrectionRequested Status = "CORRECTION_REQUESTED"
)

// DuplicateCandidate is an advisory (record, score) pair attached to a
// VALIDATE action so a reviewer can confirm or dismiss it later.
type DuplicateCandidate struct {
	ID    id.RecordID `json:"id"`
	Score float64     `json:"score"`
}

// Action is one immutable, timestamped entry in a record's log. Actions
// are append-only and ordered; a mistaken action is superseded by a
// later compensating action, never retracted.
type Action struct {
	ID       id.ActionID `json:"id"`
	RecordID id.RecordID `json:"recordId"`
	Type     ActionType  `json:"type"`

	// Declaration carries only the fields changed by this action.
	Declaration Patch `json:"declaration,omitempty"`

	CreatedBy         id.UserID   `json:"createdBy"`
	CreatedAtLocation id.OfficeID `json:"createdAtLocation"`
	CreatedAt         time.Time   `json:"createdAt"`

	// Comment and Reason are required by some routes (REJECT needs both,
	// ARCHIVE and CORRECT need a reason).
	Comment string `json:"comment,omitempty"`
	Reason  string `json:"reason,omitempty"`

	// Duplicates holds the deduplication verdict known at decision time;
	// populated on VALIDATE before the action is appended.
	Duplicates []DuplicateCandidate `json:"duplicates,omitempty"`

	// AssignedTo is set on ASSIGN actions.
	AssignedTo *id.UserID `json:"assignedTo,omitempty"`

	// NotDuplicateOf is set on MARK_NOT_DUPLICATE actions.
	NotDuplicateOf *id.RecordID `json:"notDuplicateOf,omitempty"`
}

// statusByAction maps status-defining action types to the status they
// establish. REINSTATE and REJECT_CORRECTION are handled separately in
// the projection fold because they restore the pre-branch status.
var statusByAction = map[ActionType]Status{
	ActionNotify:              StatusInProgress,
	ActionDeclare:             StatusDeclared,
	ActionValidate:            StatusValidated,
	ActionRegister:            StatusWaitingValidation,
	ActionConfirmRegistration: StatusRegistered,
	ActionCertify:             StatusCertified,
	ActionReject:              StatusRejected,
	ActionArchive:             StatusArchived,
	ActionCorrect:             StatusCorrectionRequested,
	ActionApproveCorrection:   StatusRegistered,
}

// StatusFor returns the status established by this action type and
// whether the type is status-defining at all.
func StatusFor(t ActionType) (Status, bool) {
	s, ok := statusByAction[t]
	return s, ok
}
