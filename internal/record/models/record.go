package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	id "registrar/pkg/domain"
)

// Record is the aggregate for one civil-registration event. It is owned
// by the office that created it and mutated only by appending actions.
type Record struct {
	ID                id.RecordID  `json:"id"`
	Event             id.EventType `json:"event"`
	TrackingID        string       `json:"trackingId"`
	CreatedAt         time.Time    `json:"createdAt"`
	CreatedAtLocation id.OfficeID  `json:"createdAtLocation"`

	// Actions is the ordered log, oldest first. Minimal reads omit
	// superseded assignment actions; full reads return everything.
	Actions []Action `json:"actions,omitempty"`

	// ResourceIDs maps internal resource keys to identifiers assigned by
	// the external persistence store, merged back after synchronization.
	ResourceIDs map[string]string `json:"resourceIds,omitempty"`
}

// LastAction returns the newest log entry, or false for an empty log.
func (r *Record) LastAction() (Action, bool) {
	if len(r.Actions) == 0 {
		return Action{}, false
	}
	return r.Actions[len(r.Actions)-1], true
}

// trackingPrefix maps event types to the human-facing tracking id prefix.
var trackingPrefix = map[id.EventType]string{
	id.EventBirth:    "B",
	id.EventDeath:    "D",
	id.EventMarriage: "M",
}

// NewTrackingID generates the short reference shown to informants, e.g.
// "B7F3K2Q1X". Uniqueness is probabilistic; the record UUID stays the
// canonical identifier.
func NewTrackingID(event id.EventType) string {
	const alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
	raw := uuid.New()
	out := make([]byte, 8)
	for i := range out {
		out[i] = alphabet[int(raw[i])%len(alphabet)]
	}
	return fmt.Sprintf("%s%s", trackingPrefix[event], out)
}

// Draft is an uncommitted, per-user overlay of field edits for a record.
// It exists only until submitted as an action or discarded, and is never
// part of the authoritative log.
type Draft struct {
	RecordID    id.RecordID `json:"recordId"`
	UserID      id.UserID   `json:"userId"`
	Declaration Patch       `json:"declaration"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Assignment is derived from the most recent ASSIGN/UNASSIGN action.
type Assignment struct {
	AssignedTo id.UserID `json:"assignedTo"`
	AssignedAt time.Time `json:"assignedAt"`
}

// EventState is the authoritative snapshot computed by the projector:
// the fold of the ordered action log plus an optional draft overlay.
type EventState struct {
	RecordID          id.RecordID           `json:"recordId"`
	Event             id.EventType          `json:"event"`
	TrackingID        string                `json:"trackingId"`
	Status            Status                `json:"status"`
	Declaration       map[string]FieldValue `json:"declaration"`
	Assignment        *Assignment           `json:"assignment,omitempty"`
	Duplicates        []DuplicateCandidate  `json:"duplicates,omitempty"`
	NotDuplicates     map[id.RecordID]bool  `json:"-"`
	CreatedAt         time.Time             `json:"createdAt"`
	CreatedAtLocation id.OfficeID           `json:"createdAtLocation"`
	UpdatedAt         time.Time             `json:"updatedAt"`

	// DraftApplied marks that a not-yet-submitted draft overlay is
	// included in Declaration. Draft content never affects Status and is
	// excluded from duplicate detection.
	DraftApplied bool `json:"draftApplied,omitempty"`
}

// AssignedTo returns the current assignee, or false when unassigned.
func (s *EventState) AssignedTo() (id.UserID, bool) {
	if s.Assignment == nil {
		return id.UserID{}, false
	}
	return s.Assignment.AssignedTo, true
}
