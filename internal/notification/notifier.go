package notification

import (
	"context"

	id "registrar/pkg/domain"
	"registrar/internal/record/models"
)

// Message describes a notification owed to an informant after a
// lifecycle transition.
type Message struct {
	RecordID   id.RecordID
	Event      id.EventType
	TrackingID string
	Kind       Kind
}

type Kind string

const (
	KindDeclared   Kind = "declared"
	KindRegistered Kind = "registered"
	KindRejected   Kind = "rejected"
	KindCertified  Kind = "certified"
)

// kindByTransition maps the action types that owe an informant a
// message. Transitions not listed stay silent.
var kindByTransition = map[models.ActionType]Kind{
	models.ActionDeclare:             KindDeclared,
	models.ActionConfirmRegistration: KindRegistered,
	models.ActionReject:              KindRejected,
	models.ActionCertify:             KindCertified,
}

// KindFor reports the message kind owed for the action type, if any.
func KindFor(at models.ActionType) (Kind, bool) {
	kind, ok := kindByTransition[at]
	return kind, ok
}

// Notifier delivers informant messages. Implementations must be safe
// for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// NopNotifier drops every message. Used when no gateway is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Message) error { return nil }
