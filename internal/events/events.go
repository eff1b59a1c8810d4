package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lherron/hmp/internal/domain"
)

// Resource types and event types recorded by the migration engine.
const (
	ResourceMigration = "migration"

	EventExported = "migration.exported"
	EventImported = "migration.imported"
	EventFailed   = "migration.failed"
)

// executor is satisfied by *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Writer handles writing events to the event log
type Writer struct {
	db *sql.DB
}

// NewWriter creates a new event writer
func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// LogEvent writes an event to the event log. If tx is nil the event is
// written outside any transaction.
func (w *Writer) LogEvent(ctx context.Context, tx *sql.Tx, event *domain.Event) error {
	query := `
		INSERT INTO event_log (organization_id, actor_user_id, resource_type, event_type, payload)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := w.getExecutor(tx).ExecContext(ctx, query,
		event.OrganizationID, event.ActorUserID, event.ResourceType, event.EventType, event.Payload)
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// LogMigrationRun records the outcome of an import or export. The payload
// is marshalled as JSON.
func (w *Writer) LogMigrationRun(ctx context.Context, organizationID, actorUserID, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	payloadStr := string(data)
	event := &domain.Event{
		OrganizationID: organizationID,
		ResourceType:   ResourceMigration,
		EventType:      eventType,
		Payload:        &payloadStr,
	}
	if actorUserID != "" {
		event.ActorUserID = &actorUserID
	}

	return w.LogEvent(ctx, nil, event)
}

// Recent returns the newest events of the organization, newest first.
func (w *Writer) Recent(ctx context.Context, organizationID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := w.getExecutor(nil).QueryContext(ctx, `
		SELECT id, timestamp, organization_id, actor_user_id, resource_type, event_type, payload
		FROM event_log
		WHERE organization_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, organizationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		var ts string
		var actor, payload sql.NullString
		if err := rows.Scan(&e.ID, &ts, &e.OrganizationID, &actor, &e.ResourceType, &e.EventType, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Timestamp, _ = domain.ParseTime(ts)
		if actor.Valid {
			e.ActorUserID = &actor.String
		}
		if payload.Valid {
			e.Payload = &payload.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// getExecutor returns the appropriate executor (tx or db)
func (w *Writer) getExecutor(tx *sql.Tx) executor {
	if tx != nil {
		return tx
	}
	return w.db
}
