package entity

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the entities table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE entities (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			entity_id TEXT NOT NULL UNIQUE,
			friendly_name TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT 'unknown',
			attributes TEXT NOT NULL DEFAULT '{}',
			last_changed TEXT NOT NULL,
			last_updated TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE INDEX idx_entities_device_id ON entities(device_id);
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

// testEntity creates an entity for testing.
func testEntity(key, deviceID string) *Entity {
	now := time.Now().UTC().Truncate(time.Second)
	return &Entity{
		ID:           GenerateID(),
		DeviceID:     deviceID,
		EntityID:     key,
		FriendlyName: "Test Entity",
		State:        StateOff,
		Attributes:   map[string]any{"brightness": float64(128)},
		LastChanged:  now,
		LastUpdated:  now,
	}
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	ent := testEntity("light.kitchen", "dev-001")
	if err := repo.Create(ctx, ent); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByEntityID(ctx, "light.kitchen")
	if err != nil {
		t.Fatalf("GetByEntityID() error = %v", err)
	}
	if got.State != StateOff {
		t.Errorf("State = %q, want off", got.State)
	}
	if got.Attributes["brightness"] != float64(128) {
		t.Errorf("Attributes = %v, want brightness 128", got.Attributes)
	}
	if !got.LastChanged.Equal(ent.LastChanged) {
		t.Errorf("LastChanged = %v, want %v", got.LastChanged, ent.LastChanged)
	}

	byID, err := repo.GetByID(ctx, ent.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if byID.EntityID != "light.kitchen" {
		t.Errorf("GetByID() EntityID = %q", byID.EntityID)
	}
}

func TestSQLiteRepository_Create_DuplicateKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testEntity("light.kitchen", "dev-001")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	err := repo.Create(ctx, testEntity("light.kitchen", "dev-002"))
	if !errors.Is(err, ErrEntityExists) {
		t.Errorf("Create() duplicate key error = %v, want ErrEntityExists", err)
	}
}

func TestSQLiteRepository_GetByEntityID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	_, err := repo.GetByEntityID(context.Background(), "light.missing")
	if !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("GetByEntityID() error = %v, want ErrEntityNotFound", err)
	}
}

func TestSQLiteRepository_ListAndFindByDeviceIDs(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	for _, pair := range []struct{ key, dev string }{
		{"light.kitchen", "dev-001"},
		{"sensor.kitchen_temp", "dev-001"},
		{"switch.fan", "dev-002"},
		{"light.hall", "dev-003"},
	} {
		if err := repo.Create(ctx, testEntity(pair.key, pair.dev)); err != nil {
			t.Fatalf("Create(%s) error = %v", pair.key, err)
		}
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("List() returned %d entities, want 4", len(all))
	}
	if all[0].EntityID != "light.hall" {
		t.Errorf("List() not ordered by key: first = %q", all[0].EntityID)
	}

	byDevice, err := repo.ListByDevice(ctx, "dev-001")
	if err != nil {
		t.Fatalf("ListByDevice() error = %v", err)
	}
	if len(byDevice) != 2 {
		t.Errorf("ListByDevice() returned %d entities, want 2", len(byDevice))
	}

	batch, err := repo.FindByDeviceIDs(ctx, []string{"dev-001", "dev-002"})
	if err != nil {
		t.Fatalf("FindByDeviceIDs() error = %v", err)
	}
	if len(batch) != 3 {
		t.Errorf("FindByDeviceIDs() returned %d entities, want 3", len(batch))
	}

	empty, err := repo.FindByDeviceIDs(ctx, nil)
	if err != nil {
		t.Fatalf("FindByDeviceIDs(nil) error = %v", err)
	}
	if empty != nil {
		t.Errorf("FindByDeviceIDs(nil) = %v, want nil", empty)
	}
}

func TestSQLiteRepository_Update(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	ent := testEntity("light.kitchen", "dev-001")
	if err := repo.Create(ctx, ent); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	ent.State = StateOn
	ent.FriendlyName = "Kitchen Ceiling"
	ent.Attributes["brightness"] = float64(255)
	ent.LastChanged = time.Now().UTC().Truncate(time.Second)
	ent.LastUpdated = ent.LastChanged
	if err := repo.Update(ctx, ent); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByEntityID(ctx, "light.kitchen")
	if err != nil {
		t.Fatalf("GetByEntityID() error = %v", err)
	}
	if got.State != StateOn || got.FriendlyName != "Kitchen Ceiling" {
		t.Errorf("Update() not persisted: %+v", got)
	}
	if got.Attributes["brightness"] != float64(255) {
		t.Errorf("Attributes = %v after update", got.Attributes)
	}

	missing := testEntity("light.missing", "dev-001")
	if err := repo.Update(ctx, missing); !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("Update() missing error = %v, want ErrEntityNotFound", err)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testEntity("light.kitchen", "dev-001")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Delete(ctx, "light.kitchen"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "light.kitchen"); !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("Delete() missing error = %v, want ErrEntityNotFound", err)
	}
}

func TestValidateEntityID(t *testing.T) {
	tests := []struct {
		entityID string
		valid    bool
	}{
		{"light.kitchen", true},
		{"sensor.outdoor_temp_2", true},
		{"switch.fan", true},
		{"", false},
		{"kitchen", false},
		{"Light.Kitchen", false},
		{"light.kitchen.extra", false},
		{"light.", false},
		{".kitchen", false},
		{"light.kitchen ceiling", false},
	}

	for _, tt := range tests {
		t.Run(tt.entityID, func(t *testing.T) {
			err := ValidateEntityID(tt.entityID)
			if tt.valid && err != nil {
				t.Errorf("ValidateEntityID(%q) error = %v, want nil", tt.entityID, err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidEntityID) {
				t.Errorf("ValidateEntityID(%q) error = %v, want ErrInvalidEntityID", tt.entityID, err)
			}
		})
	}
}

func TestState_Toggled(t *testing.T) {
	tests := []struct {
		in, want State
	}{
		{StateOn, StateOff},
		{StateOff, StateOn},
		{StateUnknown, StateOn},
		{StateUnavailable, StateOn},
	}
	for _, tt := range tests {
		if got := tt.in.Toggled(); got != tt.want {
			t.Errorf("Toggled(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestEntity_DeepCopy(t *testing.T) {
	ent := testEntity("light.kitchen", "dev-001")
	ent.Attributes["nested"] = map[string]any{"inner": "value"}

	cpy := ent.DeepCopy()
	cpy.Attributes["brightness"] = float64(1)
	cpy.Attributes["nested"].(map[string]any)["inner"] = "changed"

	if ent.Attributes["brightness"] != float64(128) {
		t.Error("DeepCopy did not isolate top-level attributes")
	}
	if ent.Attributes["nested"].(map[string]any)["inner"] != "value" {
		t.Error("DeepCopy did not isolate nested maps")
	}
}
