// Package validationqueue publishes registration review requests to the
// external validation system. A record that enters review stays in
// WAITING_VALIDATION until the validator calls back with a confirmation
// or a rejection.
package validationqueue

import (
	"context"
	"encoding/json"
	"time"

	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/internal/record/models"
)

// Topic is the Kafka topic review requests are published to.
const Topic = "registrar.validation-requests"

// ReviewRequest is the message body the external validator consumes.
type ReviewRequest struct {
	RecordID    id.RecordID                  `json:"recordId"`
	ActionID    id.ActionID                  `json:"actionId"`
	Event       id.EventType                 `json:"event"`
	TrackingID  string                       `json:"trackingId"`
	Declaration map[string]models.FieldValue `json:"declaration"`
	RequestedAt time.Time                    `json:"requestedAt"`
}

// Reviewer is what the lifecycle service depends on.
type Reviewer interface {
	RequestReview(ctx context.Context, req ReviewRequest) error
}

// Producer is the slice of the Kafka producer the queue needs.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// Queue publishes review requests keyed by record id so requests for
// the same record stay ordered.
type Queue struct {
	producer Producer
}

func New(producer Producer) *Queue {
	return &Queue{producer: producer}
}

func (q *Queue) RequestReview(ctx context.Context, req ReviewRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "marshal review request")
	}
	if err := q.producer.Produce(ctx, Topic, []byte(req.RecordID.String()), body); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "publish review request")
	}
	return nil
}

// NopQueue drops review requests. Used when no validator is wired, in
// which case confirmation arrives through the HTTP callback alone.
type NopQueue struct{}

func (NopQueue) RequestReview(context.Context, ReviewRequest) error { return nil }
