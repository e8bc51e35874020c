package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	id "registrar/pkg/domain"
	"registrar/internal/record/models"
)

// Subscription registers an external endpoint for lifecycle events.
// Empty ActionTypes means every action type for the event.
type Subscription struct {
	ID          string              `json:"id"`
	URL         string              `json:"url"`
	Event       id.EventType        `json:"event"`
	ActionTypes []models.ActionType `json:"actionTypes,omitempty"`
}

// Payload is the body posted to subscribers.
type Payload struct {
	RecordID   id.RecordID       `json:"recordId"`
	Event      id.EventType      `json:"event"`
	ActionType models.ActionType `json:"actionType"`
	Status     models.Status     `json:"status"`
	TrackingID string            `json:"trackingId"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// Dispatcher posts lifecycle payloads to matching subscriptions.
// Delivery is fire and forget: failures are logged, never propagated.
type Dispatcher struct {
	mu     sync.RWMutex
	subs   []Subscription
	client *http.Client
	logger *slog.Logger
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (d *Dispatcher) Subscribe(sub Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, sub)
}

func (d *Dispatcher) Unsubscribe(subID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.subs[:0]
	for _, sub := range d.subs {
		if sub.ID != subID {
			kept = append(kept, sub)
		}
	}
	d.subs = kept
}

// Dispatch delivers the payload to every matching subscription.
func (d *Dispatcher) Dispatch(ctx context.Context, payload Payload) {
	d.mu.RLock()
	matches := make([]Subscription, 0, len(d.subs))
	for _, sub := range d.subs {
		if sub.Event != payload.Event {
			continue
		}
		if len(sub.ActionTypes) > 0 && !containsAction(sub.ActionTypes, payload.ActionType) {
			continue
		}
		matches = append(matches, sub)
	}
	d.mu.RUnlock()

	if len(matches) == 0 {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.ErrorContext(ctx, "marshal webhook payload", "error", err)
		return
	}

	for _, sub := range matches {
		d.deliver(ctx, sub, body)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sub Subscription, body []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		d.logger.ErrorContext(ctx, "build webhook request", "subscription_id", sub.ID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.WarnContext(ctx, "webhook delivery failed", "subscription_id", sub.ID, "url", sub.URL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		d.logger.WarnContext(ctx, "webhook delivery rejected", "subscription_id", sub.ID, "url", sub.URL, "status", resp.StatusCode)
	}
}

func containsAction(types []models.ActionType, at models.ActionType) bool {
	for _, t := range types {
		if t == at {
			return true
		}
	}
	return false
}
