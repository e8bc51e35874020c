// Package projection derives a record's current state from its action
// log. Project is a pure function of (ordered action list, optional
// draft): replaying the same log always yields the same state, which is
// what lets history views and the reindexing pipeline share it.
package projection

import (
	id "registrar/pkg/domain"

	"registrar/internal/record/models"
)

// Project folds the ordered action log (oldest first) into one
// EventState, then overlays the draft, if any. Draft content is merged
// last and never contributes to the authoritative status.
func Project(record models.Record, draft *models.Draft) models.EventState {
	state := models.EventState{
		RecordID:          record.ID,
		Event:             record.Event,
		TrackingID:        record.TrackingID,
		Status:            models.StatusInProgress,
		Declaration:       make(map[string]models.FieldValue),
		NotDuplicates:     make(map[id.RecordID]bool),
		CreatedAt:         record.CreatedAt,
		CreatedAtLocation: record.CreatedAtLocation,
	}

	// beforeArchive / beforeCorrection remember the forward status at the
	// moment a side branch opened, so REINSTATE and REJECT_CORRECTION can
	// restore it. Nested branches are not legal transitions so a single
	// slot per branch type suffices.
	beforeArchive := state.Status
	beforeCorrection := state.Status

	for _, action := range record.Actions {
		state.UpdatedAt = action.CreatedAt

		action.Declaration.Apply(state.Declaration)

		switch action.Type {
		case models.ActionAssign:
			if action.AssignedTo != nil {
				state.Assignment = &models.Assignment{
					AssignedTo: *action.AssignedTo,
					AssignedAt: action.CreatedAt,
				}
			}
		case models.ActionUnassign:
			state.Assignment = nil
		case models.ActionMarkNotDuplicate:
			if action.NotDuplicateOf != nil {
				state.NotDuplicates[*action.NotDuplicateOf] = true
			}
		case models.ActionReinstate:
			state.Status = beforeArchive
		case models.ActionRejectCorrection:
			state.Status = beforeCorrection
		case models.ActionEdit:
			// EDIT re-opens a rejected declaration; elsewhere it only
			// carries field updates.
			if state.Status == models.StatusRejected {
				state.Status = models.StatusDeclared
			}
		default:
			if next, ok := models.StatusFor(action.Type); ok {
				switch action.Type {
				case models.ActionArchive:
					// A repeated archive must not clobber the status the
					// branch opened from.
					if state.Status != models.StatusArchived {
						beforeArchive = state.Status
					}
				case models.ActionCorrect:
					beforeCorrection = state.Status
				}
				state.Status = next
			}
		}

		if len(action.Duplicates) > 0 {
			state.Duplicates = append([]models.DuplicateCandidate(nil), action.Duplicates...)
		}
	}

	if draft != nil && len(draft.Declaration) > 0 {
		draft.Declaration.Apply(state.Declaration)
		state.DraftApplied = true
	}

	return state
}

// Prospective computes the state as if the pending action were already
// appended. The deduplication engine runs against this, so the verdict
// attached to the action reflects the post-action declaration.
func Prospective(record models.Record, pending models.Action) models.EventState {
	next := record
	next.Actions = make([]models.Action, 0, len(record.Actions)+1)
	next.Actions = append(next.Actions, record.Actions...)
	next.Actions = append(next.Actions, pending)
	return Project(next, nil)
}

// Status is a convenience for callers that only need the derived status.
func Status(record models.Record) models.Status {
	return Project(record, nil).Status
}
