//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "registrar/pkg/domain"
	"registrar/pkg/testutil/containers"

	"registrar/internal/platform/kafka"
	"registrar/internal/platform/kafka/consumer"
	"registrar/internal/platform/kafka/producer"
	"registrar/internal/validationqueue"
)

type collectingHandler struct {
	mu       sync.Mutex
	messages []*consumer.Message
}

func (h *collectingHandler) Handle(_ context.Context, msg *consumer.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
	return nil
}

func (h *collectingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

func TestProduceConsumeRoundtrip(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	require.NoError(t, kafka.EnsureTopics(ctx, rp.Brokers, validationqueue.Topic))
	// Creating an existing topic again must be a no-op.
	require.NoError(t, kafka.EnsureTopics(ctx, rp.Brokers, validationqueue.Topic))

	prod, err := producer.New(producer.Config{Brokers: rp.Brokers, ClientID: "registrar-test"}, logger)
	require.NoError(t, err)
	defer prod.Close()

	queue := validationqueue.New(prod)
	recordID := id.RecordID(uuid.New())
	req := validationqueue.ReviewRequest{
		RecordID:    recordID,
		ActionID:    id.ActionID(uuid.New()),
		Event:       id.EventBirth,
		TrackingID:  "B7F3K2Q1X",
		RequestedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, queue.RequestReview(ctx, req))

	handler := &collectingHandler{}
	cons, err := consumer.New(consumer.Config{
		Brokers: rp.Brokers,
		Group:   "registrar-test-group",
		Topics:  []string{validationqueue.Topic},
	}, handler, logger)
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = cons.Run(runCtx)
	}()

	require.Eventually(t, func() bool { return handler.count() >= 1 }, 30*time.Second, 200*time.Millisecond)
	cancel()
	<-done

	msg := handler.messages[0]
	assert.Equal(t, validationqueue.Topic, msg.Topic)
	assert.Equal(t, recordID.String(), string(msg.Key))

	var decoded validationqueue.ReviewRequest
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, req.RecordID, decoded.RecordID)
	assert.Equal(t, req.TrackingID, decoded.TrackingID)
	assert.Equal(t, req.Event, decoded.Event)
}
