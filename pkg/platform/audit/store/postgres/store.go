package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "registrar/pkg/domain"
	audit "registrar/pkg/platform/audit"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table and published to Kafka by the
// relay worker. The audit_events table is the queryable materialization.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the outbox and audit_events tables.
func (s *Store) Migrate(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS outbox (
			id UUID PRIMARY KEY,
			aggregate_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			published_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS outbox_unpublished_idx
			ON outbox (created_at) WHERE published_at IS NULL;

		CREATE TABLE IF NOT EXISTS audit_events (
			id UUID PRIMARY KEY,
			category TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			record_id UUID,
			user_id UUID,
			office_id UUID,
			action TEXT NOT NULL,
			tracking_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			request_id TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS audit_events_record_idx
			ON audit_events (record_id, timestamp DESC);
	`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
}

// outboxPayload is the JSON structure published to Kafka. Field names
// match audit.Event so the consumer can materialize events directly.
type outboxPayload struct {
	ID         string `json:"ID"`
	Category   string `json:"Category"`
	Timestamp  string `json:"Timestamp"`
	RecordID   string `json:"RecordID,omitempty"`
	UserID     string `json:"UserID,omitempty"`
	OfficeID   string `json:"OfficeID,omitempty"`
	Action     string `json:"Action"`
	TrackingID string `json:"TrackingID,omitempty"`
	Status     string `json:"Status,omitempty"`
	Reason     string `json:"Reason,omitempty"`
	RequestID  string `json:"RequestID,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}

	payload := outboxPayload{
		ID:         eventID.String(),
		Category:   string(category),
		Timestamp:  event.Timestamp.Format(time.RFC3339Nano),
		Action:     event.Action,
		TrackingID: event.TrackingID,
		Status:     event.Status,
		Reason:     event.Reason,
		RequestID:  event.RequestID,
	}
	if !event.RecordID.IsNil() {
		payload.RecordID = event.RecordID.String()
	}
	if !event.UserID.IsNil() {
		payload.UserID = event.UserID.String()
	}
	if !event.OfficeID.IsNil() {
		payload.OfficeID = event.OfficeID.String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType := "audit"
	aggregateID := eventID.String()
	if !event.RecordID.IsNil() {
		aggregateType = "record"
		aggregateID = event.RecordID.String()
	}

	const query = `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.New(),
		aggregateType,
		aggregateID,
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// AppendWithID materializes an audit event into the audit_events table.
// Used by the Kafka consumer. Idempotent via ON CONFLICT DO NOTHING.
func (s *Store) AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error {
	const query = `
		INSERT INTO audit_events (
			id, category, timestamp, record_id, user_id, office_id,
			action, tracking_id, status, reason, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		eventID,
		string(event.Category),
		event.Timestamp,
		nullableUUID(uuid.UUID(event.RecordID)),
		nullableUUID(uuid.UUID(event.UserID)),
		nullableUUID(uuid.UUID(event.OfficeID)),
		event.Action,
		event.TrackingID,
		event.Status,
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByRecord returns events for a specific record, newest first.
func (s *Store) ListByRecord(ctx context.Context, recordID id.RecordID) ([]audit.Event, error) {
	const query = `
		SELECT category, timestamp, record_id, user_id, office_id,
			   action, tracking_id, status, reason, request_id
		FROM audit_events
		WHERE record_id = $1
		ORDER BY timestamp DESC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(recordID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	const query = `
		SELECT category, timestamp, record_id, user_id, office_id,
			   action, tracking_id, status, reason, request_id
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			category string
			recordID sql.Null[uuid.UUID]
			userID   sql.Null[uuid.UUID]
			officeID sql.Null[uuid.UUID]
		)
		err := rows.Scan(
			&category, &event.Timestamp, &recordID, &userID, &officeID,
			&event.Action, &event.TrackingID, &event.Status, &event.Reason, &event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		if recordID.Valid {
			event.RecordID = id.RecordID(recordID.V)
		}
		if userID.Valid {
			event.UserID = id.UserID(userID.V)
		}
		if officeID.Valid {
			event.OfficeID = id.OfficeID(officeID.V)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func nullableUUID(u uuid.UUID) any {
	if u == uuid.Nil {
		return nil
	}
	return u
}
