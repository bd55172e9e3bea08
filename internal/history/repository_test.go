package history

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the
// entity_history table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE entity_history (
			id TEXT PRIMARY KEY,
			entity_id TEXT NOT NULL,
			state TEXT NOT NULL,
			attributes TEXT NOT NULL DEFAULT '{}',
			recorded_at TEXT NOT NULL
		) STRICT;
		CREATE INDEX idx_entity_history_entity_recorded
			ON entity_history(entity_id, recorded_at);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func insertRow(t *testing.T, repo *SQLiteRepository, entityID, state string, at time.Time) {
	t.Helper()
	err := repo.Insert(context.Background(), EntityHistory{
		ID:         GenerateID(),
		EntityID:   entityID,
		State:      state,
		Attributes: map[string]any{"brightness": float64(100)},
		RecordedAt: at,
	})
	if err != nil {
		t.Fatalf("Insert(%s @ %s) error = %v", entityID, at, err)
	}
}

func TestSQLiteRepository_InsertAndList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	insertRow(t, repo, "light.kitchen", "off", base)
	insertRow(t, repo, "light.kitchen", "on", base.Add(time.Hour))
	insertRow(t, repo, "switch.fan", "on", base.Add(time.Minute))

	rows, err := repo.ListByEntity(ctx, "light.kitchen", base.Add(-time.Hour), time.Time{}, 0)
	if err != nil {
		t.Fatalf("ListByEntity() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("ListByEntity() returned %d rows, want 2", len(rows))
	}
	if rows[0].State != "off" || rows[1].State != "on" {
		t.Errorf("rows not ordered oldest first: %+v", rows)
	}
	if rows[0].Attributes["brightness"] != float64(100) {
		t.Errorf("attributes did not round-trip: %v", rows[0].Attributes)
	}
	if !rows[0].RecordedAt.Equal(base) {
		t.Errorf("RecordedAt = %v, want %v", rows[0].RecordedAt, base)
	}
}

func TestSQLiteRepository_ListByEntity_Window(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		insertRow(t, repo, "light.kitchen", "on", base.Add(time.Duration(i)*time.Hour))
	}

	rows, err := repo.ListByEntity(ctx, "light.kitchen", base.Add(time.Hour), base.Add(3*time.Hour), 0)
	if err != nil {
		t.Fatalf("ListByEntity() error = %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("window [1h, 3h) returned %d rows, want 2", len(rows))
	}

	limited, err := repo.ListByEntity(ctx, "light.kitchen", base, time.Time{}, 3)
	if err != nil {
		t.Fatalf("ListByEntity() error = %v", err)
	}
	if len(limited) != 3 {
		t.Errorf("limit 3 returned %d rows", len(limited))
	}

	_, err = repo.ListByEntity(ctx, "light.kitchen", base.Add(time.Hour), base, 0)
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("inverted window error = %v, want ErrInvalidRange", err)
	}
}

func TestSQLiteRepository_PurgeBefore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	insertRow(t, repo, "light.kitchen", "on", now.Add(-40*24*time.Hour))
	insertRow(t, repo, "light.kitchen", "off", now.Add(-10*24*time.Hour))

	n, err := repo.PurgeBefore(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeBefore() error = %v", err)
	}
	if n != 1 {
		t.Errorf("PurgeBefore() removed %d rows, want 1", n)
	}

	rows, err := repo.ListByEntity(ctx, "light.kitchen", time.Time{}, time.Time{}, 0)
	if err != nil {
		t.Fatalf("ListByEntity() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("%d rows after purge, want 1", len(rows))
	}
	if !rows[0].RecordedAt.Equal(now.Add(-10 * 24 * time.Hour)) {
		t.Errorf("wrong row survived: %+v", rows[0])
	}
}
