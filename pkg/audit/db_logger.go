package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// DBLogger implements Log on a sqlite database
type DBLogger struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the audit database at path
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	// sqlite writes serialize on a single connection
	db.SetMaxOpenConns(1)
	return db, nil
}

// NewDBLogger creates a database-backed audit log and ensures its schema
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	l := &DBLogger{db: db}
	if err := l.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_events table: %w", err)
	}
	return l, nil
}

func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		status TEXT NOT NULL,
		actor_id INTEGER NOT NULL,
		target_user_id INTEGER NOT NULL,
		tenant_id INTEGER NOT NULL,
		added TEXT,
		removed TEXT,
		detail TEXT,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_events_target ON audit_events(target_user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_events_tenant ON audit_events(tenant_id, created_at DESC);
	`
	_, err := l.db.Exec(query)
	return err
}

// Record inserts one audit event. Missing id/timestamp are filled in.
func (l *DBLogger) Record(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	added, err := json.Marshal(event.Added)
	if err != nil {
		return fmt.Errorf("failed to marshal added ids: %w", err)
	}
	removed, err := json.Marshal(event.Removed)
	if err != nil {
		return fmt.Errorf("failed to marshal removed ids: %w", err)
	}

	query := `
		INSERT INTO audit_events (id, event_type, status, actor_id, target_user_id, tenant_id, added, removed, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = l.db.ExecContext(ctx, query,
		event.ID, string(event.Type), string(event.Status),
		event.ActorID, event.TargetUserID, event.TenantID,
		string(added), string(removed), event.Detail, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Search returns events matching the filter, newest first
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	query := `
		SELECT id, event_type, status, actor_id, target_user_id, tenant_id, added, removed, detail, created_at
		FROM audit_events
		WHERE 1=1
	`
	var args []interface{}
	if filter.TargetUserID != nil {
		query += " AND target_user_id = ?"
		args = append(args, *filter.TargetUserID)
	}
	if filter.TenantID != nil {
		query += " AND tenant_id = ?"
		args = append(args, *filter.TenantID)
	}
	if filter.Since != nil {
		query += " AND created_at >= ?"
		args = append(args, *filter.Since)
	}
	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			e              Event
			eventType      string
			status         string
			added, removed string
		)
		if err := rows.Scan(&e.ID, &eventType, &status, &e.ActorID, &e.TargetUserID, &e.TenantID, &added, &removed, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.Type = EventType(eventType)
		e.Status = EventStatus(status)
		if err := json.Unmarshal([]byte(added), &e.Added); err != nil {
			return nil, fmt.Errorf("failed to unmarshal added ids: %w", err)
		}
		if err := json.Unmarshal([]byte(removed), &e.Removed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal removed ids: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
