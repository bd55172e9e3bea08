package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for automation persistence.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	Create(ctx context.Context, a *Automation) error
	GetByID(ctx context.Context, id string) (*Automation, error)
	List(ctx context.Context) ([]Automation, error)

	// ListEnabled returns only automations the engine should evaluate.
	ListEnabled(ctx context.Context) ([]Automation, error)

	Update(ctx context.Context, a *Automation) error
	Delete(ctx context.Context, id string) error
	SetEnabled(ctx context.Context, id string, enabled bool) error

	// SetLastTriggered records a successful run. This is the only field
	// the engine writes.
	SetLastTriggered(ctx context.Context, id string, at time.Time) error
}

// automationColumns is the SELECT column list for automation queries.
// TRIGGER is a SQLite keyword, so the column is quoted.
const automationColumns = `id, name, description, enabled, "trigger", conditions, actions,
	last_triggered, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
// Trigger, conditions, and actions are stored as JSON columns.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed automation repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new automation.
func (r *SQLiteRepository) Create(ctx context.Context, a *Automation) error {
	trigger, conditions, actions, err := marshalRule(a)
	if err != nil {
		return err
	}

	const query = `INSERT INTO automations (id, name, description, enabled, "trigger", conditions, actions, last_triggered)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		a.ID, a.Name, nullStr(a.Description), a.Enabled,
		trigger, conditions, actions, nullTime(a.LastTriggered))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrAutomationExists, a.ID)
		}
		return fmt.Errorf("inserting automation %s: %w", a.ID, err)
	}
	return nil
}

// GetByID retrieves an automation by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE id = ?`
	a, err := scanAutomation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAutomationNotFound
		}
		return nil, fmt.Errorf("querying automation by id: %w", err)
	}
	return a, nil
}

// List retrieves all automations ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations ORDER BY name`
	return r.queryAutomations(ctx, query)
}

// ListEnabled retrieves enabled automations ordered by name.
func (r *SQLiteRepository) ListEnabled(ctx context.Context) ([]Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE enabled = 1 ORDER BY name`
	return r.queryAutomations(ctx, query)
}

// Update replaces all user-editable fields of an automation.
func (r *SQLiteRepository) Update(ctx context.Context, a *Automation) error {
	trigger, conditions, actions, err := marshalRule(a)
	if err != nil {
		return err
	}

	const query = `UPDATE automations SET name = ?, description = ?, enabled = ?,
		"trigger" = ?, conditions = ?, actions = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		a.Name, nullStr(a.Description), a.Enabled,
		trigger, conditions, actions, a.ID)
	if err != nil {
		return fmt.Errorf("updating automation %s: %w", a.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrAutomationNotFound
	}
	return nil
}

// Delete removes an automation by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM automations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting automation %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrAutomationNotFound
	}
	return nil
}

// SetEnabled flips the enabled flag without touching the rule body.
func (r *SQLiteRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	const query = `UPDATE automations SET enabled = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, enabled, id)
	if err != nil {
		return fmt.Errorf("setting enabled for automation %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrAutomationNotFound
	}
	return nil
}

// SetLastTriggered records the timestamp of a successful run.
func (r *SQLiteRepository) SetLastTriggered(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE automations SET last_triggered = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, at.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("setting last_triggered for automation %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrAutomationNotFound
	}
	return nil
}

// queryAutomations executes a query and returns a slice of Automation.
func (r *SQLiteRepository) queryAutomations(ctx context.Context, query string, args ...any) ([]Automation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying automations: %w", err)
	}
	defer rows.Close()

	var automations []Automation
	for rows.Next() {
		a, err := scanAutomationRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning automation row: %w", err)
		}
		automations = append(automations, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating automation rows: %w", err)
	}
	return automations, nil
}

// scanner abstracts sql.Row and sql.Rows for the shared scan path.
type scanner interface {
	Scan(dest ...any) error
}

func scanAutomation(row *sql.Row) (*Automation, error) { return scanRule(row) }

func scanAutomationRow(rows *sql.Rows) (*Automation, error) { return scanRule(rows) }

// scanRule decodes one automation row, including the JSON rule columns.
func scanRule(s scanner) (*Automation, error) {
	var a Automation
	var description sql.NullString
	var trigger, conditions, actions string
	var lastTriggered sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&a.ID, &a.Name, &description, &a.Enabled,
		&trigger, &conditions, &actions, &lastTriggered, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		a.Description = &description.String
	}
	if err := json.Unmarshal([]byte(trigger), &a.Trigger); err != nil {
		return nil, fmt.Errorf("decoding trigger for %s: %w", a.ID, err)
	}
	if conditions != "" && conditions != "null" {
		if err := json.Unmarshal([]byte(conditions), &a.Conditions); err != nil {
			return nil, fmt.Errorf("decoding conditions for %s: %w", a.ID, err)
		}
	}
	if err := json.Unmarshal([]byte(actions), &a.Actions); err != nil {
		return nil, fmt.Errorf("decoding actions for %s: %w", a.ID, err)
	}
	if lastTriggered.Valid {
		t := parseTime(lastTriggered.String)
		a.LastTriggered = &t
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

// marshalRule serializes the JSON rule columns.
func marshalRule(a *Automation) (trigger, conditions, actions string, err error) {
	t, err := json.Marshal(a.Trigger)
	if err != nil {
		return "", "", "", fmt.Errorf("encoding trigger: %w", err)
	}
	c, err := json.Marshal(a.Conditions)
	if err != nil {
		return "", "", "", fmt.Errorf("encoding conditions: %w", err)
	}
	ac, err := json.Marshal(a.Actions)
	if err != nil {
		return "", "", "", fmt.Errorf("encoding actions: %w", err)
	}
	return string(t), string(c), string(ac), nil
}

// nullStr converts a *string to a sql.NullString for nullable columns.
func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullTime converts a *time.Time to a nullable column value.
func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
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
