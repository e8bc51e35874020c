package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrar/internal/record/models"
	id "registrar/pkg/domain"
)

type capture struct {
	mu       sync.Mutex
	payloads []Payload
}

func (c *capture) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var payload Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		c.mu.Lock()
		c.payloads = append(c.payloads, payload)
		c.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func newPayload(event id.EventType, actionType models.ActionType) Payload {
	return Payload{
		RecordID:   id.RecordID(uuid.New()),
		Event:      event,
		ActionType: actionType,
		Status:     models.StatusDeclared,
		TrackingID: "B7F3K2Q1X",
		OccurredAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatchMatchesEvent(t *testing.T) {
	received := &capture{}
	server := httptest.NewServer(received.handler(t))
	defer server.Close()

	d := NewDispatcher(discardLogger())
	d.Subscribe(Subscription{ID: "births", URL: server.URL, Event: id.EventBirth})

	d.Dispatch(context.Background(), newPayload(id.EventBirth, models.ActionDeclare))
	d.Dispatch(context.Background(), newPayload(id.EventDeath, models.ActionDeclare))

	require.Equal(t, 1, received.count())
	assert.Equal(t, id.EventBirth, received.payloads[0].Event)
	assert.Equal(t, models.ActionDeclare, received.payloads[0].ActionType)
}

func TestDispatchFiltersActionTypes(t *testing.T) {
	received := &capture{}
	server := httptest.NewServer(received.handler(t))
	defer server.Close()

	d := NewDispatcher(discardLogger())
	d.Subscribe(Subscription{
		ID:          "registrations",
		URL:         server.URL,
		Event:       id.EventBirth,
		ActionTypes: []models.ActionType{models.ActionConfirmRegistration},
	})

	d.Dispatch(context.Background(), newPayload(id.EventBirth, models.ActionDeclare))
	assert.Equal(t, 0, received.count())

	d.Dispatch(context.Background(), newPayload(id.EventBirth, models.ActionConfirmRegistration))
	assert.Equal(t, 1, received.count())
}

func TestDispatchFanOut(t *testing.T) {
	first := &capture{}
	second := &capture{}
	serverA := httptest.NewServer(first.handler(t))
	defer serverA.Close()
	serverB := httptest.NewServer(second.handler(t))
	defer serverB.Close()

	d := NewDispatcher(discardLogger())
	d.Subscribe(Subscription{ID: "a", URL: serverA.URL, Event: id.EventBirth})
	d.Subscribe(Subscription{ID: "b", URL: serverB.URL, Event: id.EventBirth})

	d.Dispatch(context.Background(), newPayload(id.EventBirth, models.ActionDeclare))

	assert.Equal(t, 1, first.count())
	assert.Equal(t, 1, second.count())
}

func TestDispatchSwallowsDeliveryFailure(t *testing.T) {
	received := &capture{}
	server := httptest.NewServer(received.handler(t))
	defer server.Close()

	d := NewDispatcher(discardLogger())
	d.Subscribe(Subscription{ID: "dead", URL: "http://127.0.0.1:1/hooks", Event: id.EventBirth})
	d.Subscribe(Subscription{ID: "live", URL: server.URL, Event: id.EventBirth})

	d.Dispatch(context.Background(), newPayload(id.EventBirth, models.ActionDeclare))

	// The dead endpoint must not block delivery to the live one.
	assert.Equal(t, 1, received.count())
}

func TestUnsubscribe(t *testing.T) {
	received := &capture{}
	server := httptest.NewServer(received.handler(t))
	defer server.Close()

	d := NewDispatcher(discardLogger())
	d.Subscribe(Subscription{ID: "births", URL: server.URL, Event: id.EventBirth})
	d.Unsubscribe("births")

	d.Dispatch(context.Background(), newPayload(id.EventBirth, models.ActionDeclare))
	assert.Equal(t, 0, received.count())
}
