package audit

import (
	"time"

	id "registrar/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance. Civil
	// registration actions change a person's legal status and require
	// tamper-proof storage with long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to access monitoring.
	// Examples: scope violations, rejected transitions, assignment takeovers.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and
	// operational visibility. These can be sampled with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category   EventCategory
	Timestamp  time.Time
	RecordID   id.RecordID
	UserID     id.UserID
	OfficeID   id.OfficeID
	Action     string
	TrackingID string
	Status     string
	Reason     string
	RequestID  string
}

type AuditEvent string

const (
	// Lifecycle events
	EventRecordCreated       AuditEvent = "record_created"
	EventActionAccepted      AuditEvent = "action_accepted"
	EventRecordRegistered    AuditEvent = "record_registered"
	EventRecordCertified     AuditEvent = "record_certified"
	EventRecordArchived      AuditEvent = "record_archived"
	EventCorrectionRequested AuditEvent = "correction_requested"
	EventCorrectionResolved  AuditEvent = "correction_resolved"

	// Access events
	EventTransitionRejected AuditEvent = "transition_rejected"
	EventScopeDenied        AuditEvent = "scope_denied"
	EventAssignmentTaken    AuditEvent = "assignment_taken"

	// Operational events
	EventRecordAssigned    AuditEvent = "record_assigned"
	EventRecordUnassigned  AuditEvent = "record_unassigned"
	EventDuplicatesFlagged AuditEvent = "duplicates_flagged"
	EventRecordReindexed   AuditEvent = "record_reindexed"
	EventDraftSaved        AuditEvent = "draft_saved"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventRecordCreated:       CategoryCompliance,
	EventActionAccepted:      CategoryCompliance,
	EventRecordRegistered:    CategoryCompliance,
	EventRecordCertified:     CategoryCompliance,
	EventRecordArchived:      CategoryCompliance,
	EventCorrectionRequested: CategoryCompliance,
	EventCorrectionResolved:  CategoryCompliance,

	EventTransitionRejected: CategorySecurity,
	EventScopeDenied:        CategorySecurity,
	EventAssignmentTaken:    CategorySecurity,

	EventRecordAssigned:    CategoryOperations,
	EventRecordUnassigned:  CategoryOperations,
	EventDuplicatesFlagged: CategoryOperations,
	EventRecordReindexed:   CategoryOperations,
	EventDraftSaved:        CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
