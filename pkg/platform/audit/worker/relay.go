// Package worker relays audit events from the Postgres outbox to Kafka.
package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "registrar/pkg/platform/audit"
)

// TopicFor maps an event category to its Kafka topic. Separate topics
// let compliance and security consumers apply different retention.
func TopicFor(category audit.EventCategory) string {
	return fmt.Sprintf("registrar.audit.%s", category)
}

// Producer is the slice of the Kafka producer the relay needs.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// Relay polls the outbox table and publishes unsent entries to Kafka.
// Entries are marked published only after the broker ack, so delivery
// is at-least-once.
type Relay struct {
	db       *sql.DB
	producer Producer
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func NewRelay(db *sql.DB, producer Producer, logger *slog.Logger) *Relay {
	return &Relay{
		db:       db,
		producer: producer,
		logger:   logger,
		interval: time.Second,
		batch:    100,
	}
}

// Run polls until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.RelayOnce(ctx); err != nil {
				r.logger.ErrorContext(ctx, "relay outbox batch", "error", err)
			}
		}
	}
}

type outboxEntry struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
}

// RelayOnce publishes one batch of unsent outbox entries.
func (r *Relay) RelayOnce(ctx context.Context) error {
	const query = `
		SELECT id, aggregate_id, event_type, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, r.batch)
	if err != nil {
		return fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []outboxEntry
	for rows.Next() {
		var e outboxEntry
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload); err != nil {
			return fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, entry := range entries {
		topic := TopicFor(audit.AuditEvent(entry.EventType).Category())
		if err := r.producer.Produce(ctx, topic, []byte(entry.AggregateID), entry.Payload); err != nil {
			return fmt.Errorf("publish outbox entry %s: %w", entry.ID, err)
		}
		_, err := r.db.ExecContext(ctx,
			`UPDATE outbox SET published_at = $1 WHERE id = $2`,
			time.Now(), entry.ID,
		)
		if err != nil {
			return fmt.Errorf("mark outbox entry %s published: %w", entry.ID, err)
		}
	}
	return nil
}
