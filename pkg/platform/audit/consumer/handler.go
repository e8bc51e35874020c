// Package consumer materializes relayed audit events into the
// queryable audit_events table.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"registrar/internal/platform/kafka/consumer"
	id "registrar/pkg/domain"
	audit "registrar/pkg/platform/audit"
	auditpg "registrar/pkg/platform/audit/store/postgres"
)

// wireEvent mirrors the outbox payload shape.
type wireEvent struct {
	ID         string `json:"ID"`
	Category   string `json:"Category"`
	Timestamp  string `json:"Timestamp"`
	RecordID   string `json:"RecordID"`
	UserID     string `json:"UserID"`
	OfficeID   string `json:"OfficeID"`
	Action     string `json:"Action"`
	TrackingID string `json:"TrackingID"`
	Status     string `json:"Status"`
	Reason     string `json:"Reason"`
	RequestID  string `json:"RequestID"`
}

// Handler persists consumed audit events. Malformed messages are
// logged and committed so they do not wedge the partition.
type Handler struct {
	store  *auditpg.Store
	logger *slog.Logger
}

func NewHandler(store *auditpg.Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	var wire wireEvent
	if err := json.Unmarshal(msg.Value, &wire); err != nil {
		h.logger.WarnContext(ctx, "malformed audit message, skipping",
			"topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}

	eventID, err := uuid.Parse(wire.ID)
	if err != nil {
		h.logger.WarnContext(ctx, "audit message without valid id, skipping",
			"topic", msg.Topic, "offset", msg.Offset)
		return nil
	}

	event := audit.Event{
		Category:   audit.EventCategory(wire.Category),
		Action:     wire.Action,
		TrackingID: wire.TrackingID,
		Status:     wire.Status,
		Reason:     wire.Reason,
		RequestID:  wire.RequestID,
	}
	if ts, err := time.Parse(time.RFC3339Nano, wire.Timestamp); err == nil {
		event.Timestamp = ts
	}
	if u, err := uuid.Parse(wire.RecordID); err == nil {
		event.RecordID = id.RecordID(u)
	}
	if u, err := uuid.Parse(wire.UserID); err == nil {
		event.UserID = id.UserID(u)
	}
	if u, err := uuid.Parse(wire.OfficeID); err == nil {
		event.OfficeID = id.OfficeID(u)
	}

	if err := h.store.AppendWithID(ctx, eventID, event); err != nil {
		return fmt.Errorf("materialize audit event: %w", err)
	}
	return nil
}
