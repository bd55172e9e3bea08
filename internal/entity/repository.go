package entity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for entity persistence operations.
type Repository interface {
	Create(ctx context.Context, entity *Entity) error
	GetByID(ctx context.Context, id string) (*Entity, error)

	// GetByEntityID looks an entity up by its textual key ("light.kitchen").
	GetByEntityID(ctx context.Context, entityID string) (*Entity, error)

	List(ctx context.Context) ([]Entity, error)
	ListByDevice(ctx context.Context, deviceID string) ([]Entity, error)

	// FindByDeviceIDs returns all entities owned by any of the given
	// devices in a single query.
	FindByDeviceIDs(ctx context.Context, deviceIDs []string) ([]Entity, error)

	Update(ctx context.Context, entity *Entity) error
	Delete(ctx context.Context, entityID string) error
}

// SQLiteRepository implements Repository using SQLite.
// Attributes are stored as a JSON column.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed entity repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const entityColumns = `id, device_id, entity_id, friendly_name, state, attributes,
	last_changed, last_updated, created_at, updated_at`

// Create inserts a new entity into the database.
func (r *SQLiteRepository) Create(ctx context.Context, entity *Entity) error {
	attrs, err := marshalAttributes(entity.Attributes)
	if err != nil {
		return err
	}

	const query = `INSERT INTO entities (id, device_id, entity_id, friendly_name, state, attributes, last_changed, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		entity.ID, entity.DeviceID, entity.EntityID, entity.FriendlyName,
		string(entity.State), attrs,
		formatTime(entity.LastChanged), formatTime(entity.LastUpdated))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrEntityExists, entity.EntityID)
		}
		return fmt.Errorf("inserting entity %s: %w", entity.EntityID, err)
	}
	return nil
}

// GetByID returns a single entity by row ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE id = ?`
	return scanEntity(r.db.QueryRowContext(ctx, query, id))
}

// GetByEntityID returns a single entity by its textual key.
func (r *SQLiteRepository) GetByEntityID(ctx context.Context, entityID string) (*Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE entity_id = ?`
	return scanEntity(r.db.QueryRowContext(ctx, query, entityID))
}

// List returns all entities ordered by key.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities ORDER BY entity_id`
	return r.queryEntities(ctx, query)
}

// ListByDevice returns entities owned by a specific device.
func (r *SQLiteRepository) ListByDevice(ctx context.Context, deviceID string) ([]Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE device_id = ? ORDER BY entity_id`
	return r.queryEntities(ctx, query, deviceID)
}

// FindByDeviceIDs returns entities owned by any of the given devices.
func (r *SQLiteRepository) FindByDeviceIDs(ctx context.Context, deviceIDs []string) ([]Entity, error) {
	if len(deviceIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(deviceIDs))
	placeholders = placeholders[:len(placeholders)-1]
	query := `SELECT ` + entityColumns + ` FROM entities WHERE device_id IN (` + placeholders + `) ORDER BY entity_id`

	args := make([]any, len(deviceIDs))
	for i, id := range deviceIDs {
		args[i] = id
	}
	return r.queryEntities(ctx, query, args...)
}

// Update persists all mutable fields of an existing entity.
func (r *SQLiteRepository) Update(ctx context.Context, entity *Entity) error {
	attrs, err := marshalAttributes(entity.Attributes)
	if err != nil {
		return err
	}

	const query = `UPDATE entities SET device_id = ?, friendly_name = ?, state = ?,
		attributes = ?, last_changed = ?, last_updated = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE entity_id = ?`
	result, err := r.db.ExecContext(ctx, query,
		entity.DeviceID, entity.FriendlyName, string(entity.State), attrs,
		formatTime(entity.LastChanged), formatTime(entity.LastUpdated),
		entity.EntityID)
	if err != nil {
		return fmt.Errorf("updating entity %s: %w", entity.EntityID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrEntityNotFound
	}
	return nil
}

// Delete removes a single entity by its textual key.
func (r *SQLiteRepository) Delete(ctx context.Context, entityID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM entities WHERE entity_id = ?", entityID)
	if err != nil {
		return fmt.Errorf("deleting entity %s: %w", entityID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrEntityNotFound
	}
	return nil
}

// queryEntities executes a query and returns a slice of Entity.
func (r *SQLiteRepository) queryEntities(ctx context.Context, query string, args ...any) ([]Entity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		e, err := scanEntityRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity row: %w", err)
		}
		entities = append(entities, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entity rows: %w", err)
	}
	return entities, nil
}

// scanEntity scans a single row into an Entity (for QueryRow).
func scanEntity(row *sql.Row) (*Entity, error) {
	var e Entity
	var state, attrs string
	var lastChanged, lastUpdated, createdAt, updatedAt string

	err := row.Scan(&e.ID, &e.DeviceID, &e.EntityID, &e.FriendlyName, &state, &attrs,
		&lastChanged, &lastUpdated, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrEntityNotFound
		}
		return nil, fmt.Errorf("scanning entity: %w", err)
	}
	return finishEntity(&e, state, attrs, lastChanged, lastUpdated, createdAt, updatedAt)
}

// scanEntityRow scans an entity from a Rows cursor.
func scanEntityRow(rows *sql.Rows) (*Entity, error) {
	var e Entity
	var state, attrs string
	var lastChanged, lastUpdated, createdAt, updatedAt string

	err := rows.Scan(&e.ID, &e.DeviceID, &e.EntityID, &e.FriendlyName, &state, &attrs,
		&lastChanged, &lastUpdated, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("scanning entity row: %w", err)
	}
	return finishEntity(&e, state, attrs, lastChanged, lastUpdated, createdAt, updatedAt)
}

// finishEntity decodes the serialized columns shared by both scan paths.
func finishEntity(e *Entity, state, attrs, lastChanged, lastUpdated, createdAt, updatedAt string) (*Entity, error) {
	e.State = State(state)
	if attrs != "" && attrs != "null" {
		if err := json.Unmarshal([]byte(attrs), &e.Attributes); err != nil {
			return nil, fmt.Errorf("decoding attributes for %s: %w", e.EntityID, err)
		}
	}
	e.LastChanged = parseTime(lastChanged)
	e.LastUpdated = parseTime(lastUpdated)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

// marshalAttributes serializes the attributes map to a JSON column value.
func marshalAttributes(attrs map[string]any) (string, error) {
	if attrs == nil {
		return "{}", nil
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("encoding attributes: %w", err)
	}
	return string(data), nil
}

// formatTime serializes a timestamp for storage; zero times store as the
// Unix epoch so the column stays NOT NULL.
func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Unix(0, 0).UTC()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05Z", s)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}

var _ Repository = (*SQLiteRepository)(nil)
