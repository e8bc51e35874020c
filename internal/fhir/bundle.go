// Package fhir translates the internal record representation to and
// from the external persistence store's bundle-shaped documents. The
// synchronizer is the sole writer of that store; nothing else in the
// engine speaks its format.
package fhir

import (
	"fmt"

	"registrar/internal/record/models"
	id "registrar/pkg/domain"
)

// Resource is one entry payload. TempID marks resources created in this
// transaction; the store responds with the authoritative id, which the
// synchronizer merges back into the record.
type Resource struct {
	ResourceType string         `json:"resourceType"`
	ID           string         `json:"id,omitempty"`
	TempID       string         `json:"-"`
	Body         map[string]any `json:"-"`
}

// Entry wraps a resource with its bundle-local URL.
type Entry struct {
	FullURL  string   `json:"fullUrl"`
	Resource Resource `json:"resource"`
}

// Bundle is a transaction-shaped document: all entries commit or none.
type Bundle struct {
	Type    string  `json:"type"`
	Entries []Entry `json:"entry"`
}

var resourceTypeByEvent = map[id.EventType]string{
	id.EventBirth:    "BirthRegistration",
	id.EventDeath:    "DeathRegistration",
	id.EventMarriage: "MarriageRegistration",
}

// BundleFor builds the transaction bundle for one accepted action: the
// composition head (created once, then referenced by id), a task entry
// describing the transition, and the declaration content changed by the
// action.
func BundleFor(record models.Record, action models.Action, state models.EventState) Bundle {
	composition := Resource{
		ResourceType: "Composition",
		Body: map[string]any{
			"identifier": map[string]any{"value": record.TrackingID},
			"event":      string(record.Event),
			"subject":    resourceTypeByEvent[record.Event],
		},
	}
	if existing, ok := record.ResourceIDs["Composition"]; ok {
		composition.ID = existing
	} else {
		composition.TempID = "urn:temp:composition"
	}

	task := Resource{
		ResourceType: "Task",
		TempID:       fmt.Sprintf("urn:temp:task:%s", action.ID),
		Body: map[string]any{
			"status":       string(state.Status),
			"action":       string(action.Type),
			"lastModified": action.CreatedAt,
			"requester":    action.CreatedBy.String(),
			"office":       action.CreatedAtLocation.String(),
			"comment":      action.Comment,
			"reason":       action.Reason,
		},
	}
	if len(action.Duplicates) > 0 {
		duplicates := make([]string, len(action.Duplicates))
		for i, candidate := range action.Duplicates {
			duplicates[i] = candidate.ID.String()
		}
		task.Body["duplicates"] = duplicates
	}

	entries := []Entry{
		entryFor(composition),
		entryFor(task),
	}

	if len(action.Declaration) > 0 {
		declaration := make(map[string]any, len(action.Declaration))
		for key, value := range action.Declaration {
			declaration[key] = value.Value()
		}
		entries = append(entries, entryFor(Resource{
			ResourceType: "QuestionnaireResponse",
			TempID:       fmt.Sprintf("urn:temp:declaration:%s", action.ID),
			Body:         map[string]any{"fields": declaration},
		}))
	}

	return Bundle{Type: "transaction", Entries: entries}
}

func entryFor(resource Resource) Entry {
	fullURL := resource.TempID
	if resource.ID != "" {
		fullURL = fmt.Sprintf("%s/%s", resource.ResourceType, resource.ID)
	}
	return Entry{FullURL: fullURL, Resource: resource}
}
