// Package postgres implements the action log store over PostgreSQL via
// the pgx stdlib driver. The conditional append runs in one transaction
// holding a row lock on the record head, so the status check and the
// insert are atomic; a lost race surfaces as sentinel.ErrConflict.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"registrar/internal/record/models"
	"registrar/internal/record/projection"
	"registrar/internal/record/store"
	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the schema. Actions carry a per-record sequence number
// assigned under the same row lock as the append, which fixes the log
// order independently of clock skew.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS records (
	id UUID PRIMARY KEY,
	event TEXT NOT NULL,
	tracking_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	created_at_location UUID NOT NULL,
	resource_ids JSONB NOT NULL DEFAULT '{}'::jsonb
);
CREATE TABLE IF NOT EXISTS record_actions (
	id UUID PRIMARY KEY,
	record_id UUID NOT NULL REFERENCES records(id),
	seq BIGINT NOT NULL,
	type TEXT NOT NULL,
	declaration JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_by UUID NOT NULL,
	created_at_location UUID NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	comment TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL DEFAULT '',
	duplicates JSONB,
	assigned_to UUID,
	not_duplicate_of UUID,
	UNIQUE (record_id, seq)
);
CREATE INDEX IF NOT EXISTS record_actions_record_idx ON record_actions (record_id, seq);`
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("migrate record store: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, record models.Record, first models.Action) (models.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Record{}, fmt.Errorf("begin create: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO records (id, event, tracking_id, created_at, created_at_location)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(record.ID), string(record.Event), record.TrackingID,
		record.CreatedAt, uuid.UUID(record.CreatedAtLocation))
	if err != nil {
		if isUniqueViolation(err) {
			return models.Record{}, sentinel.ErrConflict
		}
		return models.Record{}, fmt.Errorf("insert record: %w", err)
	}

	if err := insertAction(ctx, tx, first, 1); err != nil {
		return models.Record{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Record{}, fmt.Errorf("commit create: %w", err)
	}

	record.Actions = []models.Action{first}
	return record, nil
}

func (s *PostgresStore) Append(ctx context.Context, recordID id.RecordID, action models.Action, allowedFrom []models.Status) (models.Action, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Action{}, fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Row lock on the record head serializes appends per record.
	record, err := loadRecord(ctx, tx, recordID, true)
	if err != nil {
		return models.Action{}, err
	}

	current := projection.Status(record)
	if len(allowedFrom) > 0 && !store.StatusAllowed(current, allowedFrom) {
		return models.Action{}, sentinel.ErrConflict
	}

	if err := insertAction(ctx, tx, action, int64(len(record.Actions))+1); err != nil {
		return models.Action{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Action{}, fmt.Errorf("commit append: %w", err)
	}
	return action, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, recordID id.RecordID, mode store.ReadMode) (models.Record, error) {
	record, err := loadRecordDB(ctx, s.db, recordID)
	if err != nil {
		return models.Record{}, err
	}
	if mode == store.ReadMinimal {
		record.Actions = store.MinimalActions(record.Actions)
	}
	return record, nil
}

func (s *PostgresStore) SetResourceIDs(ctx context.Context, recordID id.RecordID, resourceIDs map[string]string) error {
	payload, err := json.Marshal(resourceIDs)
	if err != nil {
		return fmt.Errorf("marshal resource ids: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE records SET resource_ids = resource_ids || $2::jsonb WHERE id = $1`,
		uuid.UUID(recordID), payload)
	if err != nil {
		return fmt.Errorf("update resource ids: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update resource ids: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListIDs(ctx context.Context) ([]id.RecordID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM records ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list record ids: %w", err)
	}
	defer rows.Close()

	var out []id.RecordID
	for rows.Next() {
		var raw uuid.UUID
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan record id: %w", err)
		}
		out = append(out, id.RecordID(raw))
	}
	return out, rows.Err()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadRecordDB(ctx context.Context, q querier, recordID id.RecordID) (models.Record, error) {
	return loadRecordFrom(ctx, q,
		`SELECT id, event, tracking_id, created_at, created_at_location, resource_ids
		 FROM records WHERE id = $1`, recordID)
}

func loadRecord(ctx context.Context, tx *sql.Tx, recordID id.RecordID, forUpdate bool) (models.Record, error) {
	query := `SELECT id, event, tracking_id, created_at, created_at_location, resource_ids
		 FROM records WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return loadRecordFrom(ctx, tx, query, recordID)
}

func loadRecordFrom(ctx context.Context, q querier, query string, recordID id.RecordID) (models.Record, error) {
	var (
		record      models.Record
		rawID       uuid.UUID
		rawEvent    string
		rawLocation uuid.UUID
		rawIDs      []byte
	)
	err := q.QueryRowContext(ctx, query, uuid.UUID(recordID)).Scan(
		&rawID, &rawEvent, &record.TrackingID, &record.CreatedAt, &rawLocation, &rawIDs)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Record{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Record{}, fmt.Errorf("load record: %w", err)
	}
	record.ID = id.RecordID(rawID)
	record.Event = id.EventType(rawEvent)
	record.CreatedAtLocation = id.OfficeID(rawLocation)
	if len(rawIDs) > 0 {
		if err := json.Unmarshal(rawIDs, &record.ResourceIDs); err != nil {
			return models.Record{}, fmt.Errorf("decode resource ids: %w", err)
		}
	}

	actions, err := loadActions(ctx, q, recordID)
	if err != nil {
		return models.Record{}, err
	}
	record.Actions = actions
	return record, nil
}

func loadActions(ctx context.Context, q querier, recordID id.RecordID) ([]models.Action, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, type, declaration, created_by, created_at_location, created_at,
		        comment, reason, duplicates, assigned_to, not_duplicate_of
		 FROM record_actions WHERE record_id = $1 ORDER BY seq`,
		uuid.UUID(recordID))
	if err != nil {
		return nil, fmt.Errorf("load actions: %w", err)
	}
	defer rows.Close()

	var actions []models.Action
	for rows.Next() {
		var (
			action         models.Action
			rawID          uuid.UUID
			rawType        string
			rawDeclaration []byte
			rawCreatedBy   uuid.UUID
			rawLocation    uuid.UUID
			rawDuplicates  []byte
			rawAssignedTo  *uuid.UUID
			rawNotDup      *uuid.UUID
			createdAt      time.Time
		)
		err := rows.Scan(&rawID, &rawType, &rawDeclaration, &rawCreatedBy, &rawLocation,
			&createdAt, &action.Comment, &action.Reason, &rawDuplicates, &rawAssignedTo, &rawNotDup)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		action.ID = id.ActionID(rawID)
		action.RecordID = recordID
		action.Type = models.ActionType(rawType)
		action.CreatedBy = id.UserID(rawCreatedBy)
		action.CreatedAtLocation = id.OfficeID(rawLocation)
		action.CreatedAt = createdAt
		if len(rawDeclaration) > 0 {
			if err := json.Unmarshal(rawDeclaration, &action.Declaration); err != nil {
				return nil, fmt.Errorf("decode declaration: %w", err)
			}
		}
		if len(rawDuplicates) > 0 {
			if err := json.Unmarshal(rawDuplicates, &action.Duplicates); err != nil {
				return nil, fmt.Errorf("decode duplicates: %w", err)
			}
		}
		if rawAssignedTo != nil {
			assignee := id.UserID(*rawAssignedTo)
			action.AssignedTo = &assignee
		}
		if rawNotDup != nil {
			notDup := id.RecordID(*rawNotDup)
			action.NotDuplicateOf = &notDup
		}
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

func insertAction(ctx context.Context, tx *sql.Tx, action models.Action, seq int64) error {
	declaration, err := json.Marshal(action.Declaration)
	if err != nil {
		return fmt.Errorf("marshal declaration: %w", err)
	}
	var duplicates []byte
	if action.Duplicates != nil {
		duplicates, err = json.Marshal(action.Duplicates)
		if err != nil {
			return fmt.Errorf("marshal duplicates: %w", err)
		}
	}
	var assignedTo, notDuplicateOf *uuid.UUID
	if action.AssignedTo != nil {
		raw := uuid.UUID(*action.AssignedTo)
		assignedTo = &raw
	}
	if action.NotDuplicateOf != nil {
		raw := uuid.UUID(*action.NotDuplicateOf)
		notDuplicateOf = &raw
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO record_actions
		 (id, record_id, seq, type, declaration, created_by, created_at_location,
		  created_at, comment, reason, duplicates, assigned_to, not_duplicate_of)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.UUID(action.ID), uuid.UUID(action.RecordID), seq, string(action.Type),
		declaration, uuid.UUID(action.CreatedBy), uuid.UUID(action.CreatedAtLocation),
		action.CreatedAt, action.Comment, action.Reason, duplicates, assignedTo, notDuplicateOf)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// isUniqueViolation detects Postgres error 23505 via the pgx driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
