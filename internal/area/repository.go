package area

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for area persistence operations.
type Repository interface {
	Create(ctx context.Context, area *Area) error
	GetByID(ctx context.Context, id string) (*Area, error)
	List(ctx context.Context) ([]Area, error)
	ListChildren(ctx context.Context, parentID string) ([]Area, error)
	Update(ctx context.Context, area *Area) error
	Delete(ctx context.Context, id string) error
	CountChildren(ctx context.Context, parentID string) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed area repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new area into the database.
func (r *SQLiteRepository) Create(ctx context.Context, area *Area) error {
	const query = `INSERT INTO areas (id, name, parent_id, sort_order)
		VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		area.ID, area.Name, nullStr(area.ParentID), area.SortOrder)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrAreaExists, area.ID)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return fmt.Errorf("%w: %v", ErrParentNotFound, area.ParentID)
		}
		return fmt.Errorf("inserting area %s: %w", area.ID, err)
	}
	return nil
}

// GetByID returns a single area by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Area, error) {
	const query = `SELECT id, name, parent_id, sort_order, created_at, updated_at
		FROM areas WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	return scanArea(row)
}

// List returns all areas ordered by sort order then name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Area, error) {
	const query = `SELECT id, name, parent_id, sort_order, created_at, updated_at
		FROM areas ORDER BY sort_order, name`
	return r.queryAreas(ctx, query)
}

// ListChildren returns the direct children of an area.
func (r *SQLiteRepository) ListChildren(ctx context.Context, parentID string) ([]Area, error) {
	const query = `SELECT id, name, parent_id, sort_order, created_at, updated_at
		FROM areas WHERE parent_id = ? ORDER BY sort_order, name`
	return r.queryAreas(ctx, query, parentID)
}

// Update updates an existing area record.
func (r *SQLiteRepository) Update(ctx context.Context, area *Area) error {
	const query = `UPDATE areas SET name = ?, parent_id = ?, sort_order = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		area.Name, nullStr(area.ParentID), area.SortOrder, area.ID)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return fmt.Errorf("%w: %v", ErrParentNotFound, area.ParentID)
		}
		return fmt.Errorf("updating area %s: %w", area.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrAreaNotFound
	}
	return nil
}

// Delete removes a single area by ID. Areas with children cannot be
// deleted; callers also check for assigned devices before deleting.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	children, err := r.CountChildren(ctx, id)
	if err != nil {
		return err
	}
	if children > 0 {
		return fmt.Errorf("%w: %d child areas", ErrAreaInUse, children)
	}

	result, err := r.db.ExecContext(ctx, "DELETE FROM areas WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting area %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrAreaNotFound
	}
	return nil
}

// CountChildren returns the number of direct children of an area.
func (r *SQLiteRepository) CountChildren(ctx context.Context, parentID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM areas WHERE parent_id = ?", parentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting children of area %s: %w", parentID, err)
	}
	return count, nil
}

// queryAreas executes a query and returns a slice of Area.
func (r *SQLiteRepository) queryAreas(ctx context.Context, query string, args ...any) ([]Area, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying areas: %w", err)
	}
	defer rows.Close()

	var areas []Area
	for rows.Next() {
		a, err := scanAreaRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning area row: %w", err)
		}
		areas = append(areas, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating area rows: %w", err)
	}
	return areas, nil
}

// scanArea scans a single row into an Area (for QueryRow).
func scanArea(row *sql.Row) (*Area, error) {
	var a Area
	var parentID sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&a.ID, &a.Name, &parentID, &a.SortOrder, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAreaNotFound
		}
		return nil, fmt.Errorf("scanning area: %w", err)
	}

	if parentID.Valid {
		a.ParentID = &parentID.String
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

// scanAreaRow scans an area from a Rows cursor.
func scanAreaRow(rows *sql.Rows) (*Area, error) {
	var a Area
	var parentID sql.NullString
	var createdAt, updatedAt string

	err := rows.Scan(&a.ID, &a.Name, &parentID, &a.SortOrder, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("scanning area row: %w", err)
	}

	if parentID.Valid {
		a.ParentID = &parentID.String
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
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
		t, err = time.Parse("2006-01-02T15:04:05Z", s)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}

var _ Repository = (*SQLiteRepository)(nil)
