package device

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
type Repository interface {
	Create(ctx context.Context, device *Device) error
	GetByID(ctx context.Context, id string) (*Device, error)

	// GetByIntegrationID looks a device up by its discovery dedup key.
	// Returns ErrDeviceNotFound when no device matches.
	GetByIntegrationID(ctx context.Context, integration, uniqueID string) (*Device, error)

	List(ctx context.Context) ([]Device, error)
	ListByArea(ctx context.Context, areaID string) ([]Device, error)
	Update(ctx context.Context, device *Device) error
	Delete(ctx context.Context, id string) error
	CountByArea(ctx context.Context, areaID string) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed device repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new device into the database.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	const query = `INSERT INTO devices (id, name, manufacturer, model, area_id, integration, unique_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		device.ID, device.Name, device.Manufacturer, device.Model,
		nullStr(device.AreaID), device.Integration, device.UniqueID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrDeviceExists, device.ID)
		}
		return fmt.Errorf("inserting device %s: %w", device.ID, err)
	}
	return nil
}

// GetByID returns a single device by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	const query = `SELECT id, name, manufacturer, model, area_id, integration, unique_id, created_at, updated_at
		FROM devices WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	return scanDevice(row)
}

// GetByIntegrationID looks a device up by (integration, unique_id).
func (r *SQLiteRepository) GetByIntegrationID(ctx context.Context, integration, uniqueID string) (*Device, error) {
	const query = `SELECT id, name, manufacturer, model, area_id, integration, unique_id, created_at, updated_at
		FROM devices WHERE integration = ? AND unique_id = ?`
	row := r.db.QueryRowContext(ctx, query, integration, uniqueID)
	return scanDevice(row)
}

// List returns all devices ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	const query = `SELECT id, name, manufacturer, model, area_id, integration, unique_id, created_at, updated_at
		FROM devices ORDER BY name`
	return r.queryDevices(ctx, query)
}

// ListByArea returns devices assigned to a specific area.
func (r *SQLiteRepository) ListByArea(ctx context.Context, areaID string) ([]Device, error) {
	const query = `SELECT id, name, manufacturer, model, area_id, integration, unique_id, created_at, updated_at
		FROM devices WHERE area_id = ? ORDER BY name`
	return r.queryDevices(ctx, query, areaID)
}

// Update updates an existing device record.
func (r *SQLiteRepository) Update(ctx context.Context, device *Device) error {
	const query = `UPDATE devices SET name = ?, manufacturer = ?, model = ?,
		area_id = ?, integration = ?, unique_id = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		device.Name, device.Manufacturer, device.Model,
		nullStr(device.AreaID), device.Integration, device.UniqueID, device.ID)
	if err != nil {
		return fmt.Errorf("updating device %s: %w", device.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Delete removes a single device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// CountByArea returns the number of devices assigned to an area.
func (r *SQLiteRepository) CountByArea(ctx context.Context, areaID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM devices WHERE area_id = ?", areaID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting devices for area %s: %w", areaID, err)
	}
	return count, nil
}

// queryDevices executes a query and returns a slice of Device.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDeviceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device rows: %w", err)
	}
	return devices, nil
}

// scanDevice scans a single row into a Device (for QueryRow).
func scanDevice(row *sql.Row) (*Device, error) {
	var d Device
	var areaID sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&d.ID, &d.Name, &d.Manufacturer, &d.Model, &areaID,
		&d.Integration, &d.UniqueID, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("scanning device: %w", err)
	}

	if areaID.Valid {
		d.AreaID = &areaID.String
	}
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return &d, nil
}

// scanDeviceRow scans a device from a Rows cursor.
func scanDeviceRow(rows *sql.Rows) (*Device, error) {
	var d Device
	var areaID sql.NullString
	var createdAt, updatedAt string

	err := rows.Scan(&d.ID, &d.Name, &d.Manufacturer, &d.Model, &areaID,
		&d.Integration, &d.UniqueID, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("scanning device row: %w", err)
	}

	if areaID.Valid {
		d.AreaID = &areaID.String
	}
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return &d, nil
}

// nullStr converts a *string to a sql.NullString for nullable columns.
func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// SQLite default format without timezone.
		t, err = time.Parse("2006-01-02T15:04:05Z", s)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}

var _ Repository = (*SQLiteRepository)(nil)
