package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Repository defines the interface for history persistence.
type Repository interface {
	// Insert appends one snapshot row.
	Insert(ctx context.Context, h EntityHistory) error

	// ListByEntity returns snapshots for one entity inside [since, until),
	// oldest first. A zero until means "no upper bound". Limit caps the
	// row count; non-positive means the default.
	ListByEntity(ctx context.Context, entityID string, since, until time.Time, limit int) ([]EntityHistory, error)

	// PurgeBefore deletes snapshots older than cutoff and returns the
	// number of rows removed.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// defaultListLimit caps ListByEntity when the caller passes a
// non-positive limit.
const defaultListLimit = 500

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed history repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Insert appends one snapshot row.
func (r *SQLiteRepository) Insert(ctx context.Context, h EntityHistory) error {
	attrs := "{}"
	if h.Attributes != nil {
		data, err := json.Marshal(h.Attributes)
		if err != nil {
			return fmt.Errorf("encoding attributes: %w", err)
		}
		attrs = string(data)
	}

	const query = `INSERT INTO entity_history (id, entity_id, state, attributes, recorded_at)
		VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		h.ID, h.EntityID, h.State, attrs, h.RecordedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting history for %s: %w", h.EntityID, err)
	}
	return nil
}

// ListByEntity returns snapshots for one entity, oldest first.
func (r *SQLiteRepository) ListByEntity(ctx context.Context, entityID string, since, until time.Time, limit int) ([]EntityHistory, error) {
	if !until.IsZero() && until.Before(since) {
		return nil, fmt.Errorf("%w: until %s before since %s", ErrInvalidRange, until, since)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if until.IsZero() {
		until = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	const query = `SELECT id, entity_id, state, attributes, recorded_at
		FROM entity_history
		WHERE entity_id = ? AND recorded_at >= ? AND recorded_at < ?
		ORDER BY recorded_at
		LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, entityID,
		since.UTC().Format(time.RFC3339Nano), until.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []EntityHistory
	for rows.Next() {
		var h EntityHistory
		var attrs, recordedAt string
		if err := rows.Scan(&h.ID, &h.EntityID, &h.State, &attrs, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		if attrs != "" && attrs != "null" {
			if err := json.Unmarshal([]byte(attrs), &h.Attributes); err != nil {
				return nil, fmt.Errorf("decoding attributes for %s: %w", h.EntityID, err)
			}
		}
		h.RecordedAt = parseTime(recordedAt)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history rows: %w", err)
	}
	return out, nil
}

// PurgeBefore deletes snapshots older than cutoff.
func (r *SQLiteRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM entity_history WHERE recorded_at < ?",
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("purging history: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	return n, nil
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

var _ Repository = (*SQLiteRepository)(nil)
