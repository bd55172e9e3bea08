package event

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Repository defines persistence for the event log.
//
// The history recorder appends every bus event here; the API serves the
// recent-events view from it and the purger trims it alongside entity
// history.
type Repository interface {
	// Insert appends an event to the log.
	Insert(ctx context.Context, ev Event) error

	// ListRecent returns the newest events, most recent first.
	ListRecent(ctx context.Context, limit int) ([]Event, error)

	// ListRecentByEntity returns the newest events for one entity key.
	ListRecentByEntity(ctx context.Context, entityID string, limit int) ([]Event, error)

	// PurgeBefore deletes events older than cutoff and returns the
	// number of rows removed.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// defaultListLimit caps ListRecent when the caller passes a non-positive limit.
const defaultListLimit = 100

// SQLiteRepository implements Repository backed by SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository using the provided database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Insert appends an event to the log.
func (r *SQLiteRepository) Insert(ctx context.Context, ev Event) error {
	dataJSON, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("marshaling event data: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO events (id, type, entity_id, data, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`,
		ev.ID,
		string(ev.Type),
		nullString(ev.EntityID),
		string(dataJSON),
		ev.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// ListRecent returns the newest events, most recent first.
func (r *SQLiteRepository) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, entity_id, data, timestamp
		FROM events
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecentByEntity returns the newest events for one entity key.
func (r *SQLiteRepository) ListRecentByEntity(ctx context.Context, entityID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, entity_id, data, timestamp
		FROM events
		WHERE entity_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying events by entity: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// PurgeBefore deletes events older than cutoff.
func (r *SQLiteRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM events WHERE timestamp < ?",
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("purging events: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged events: %w", err)
	}
	return n, nil
}

// scanEvents reads event rows into a slice.
func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var (
			ev       Event
			typ      string
			entityID sql.NullString
			dataJSON string
			ts       string
		)
		if err := rows.Scan(&ev.ID, &typ, &entityID, &dataJSON, &ts); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}

		ev.Type = Type(typ)
		if entityID.Valid {
			ev.EntityID = entityID.String
		}

		if dataJSON != "" && dataJSON != "null" {
			if err := json.Unmarshal([]byte(dataJSON), &ev.Data); err != nil {
				return nil, fmt.Errorf("unmarshaling event data: %w", err)
			}
		}

		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing event timestamp: %w", err)
		}
		ev.Timestamp = parsed

		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event rows: %w", err)
	}
	return events, nil
}

// nullString converts an empty string to a SQL NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ensure interface compliance at compile time.
var _ Repository = (*SQLiteRepository)(nil)
