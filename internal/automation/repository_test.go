package automation

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the automations table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE automations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			enabled INTEGER NOT NULL DEFAULT 1,
			"trigger" TEXT NOT NULL,
			conditions TEXT NOT NULL DEFAULT '[]',
			actions TEXT NOT NULL,
			last_triggered TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
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

// testAutomation creates a valid automation for testing.
func testAutomation(id, name string) *Automation {
	return &Automation{
		ID:      id,
		Name:    name,
		Enabled: true,
		Trigger: Trigger{
			Type:     TriggerStateChanged,
			EntityID: "light.kitchen",
			To:       "on",
		},
		Conditions: []Condition{
			{Type: ConditionStateIs, EntityID: "switch.fan", State: "off"},
		},
		Actions: []Action{
			{Type: ActionCallService, EntityID: "switch.fan", Service: "turn_on"},
		},
	}
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	a := testAutomation("auto-001", "Fan follows light")
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "auto-001")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Fan follows light" || !got.Enabled {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Trigger.Type != TriggerStateChanged || got.Trigger.To != "on" {
		t.Errorf("trigger = %+v", got.Trigger)
	}
	if len(got.Conditions) != 1 || got.Conditions[0].EntityID != "switch.fan" {
		t.Errorf("conditions = %+v", got.Conditions)
	}
	if len(got.Actions) != 1 || got.Actions[0].Service != "turn_on" {
		t.Errorf("actions = %+v", got.Actions)
	}
	if got.LastTriggered != nil {
		t.Errorf("LastTriggered = %v, want nil", got.LastTriggered)
	}

	err = repo.Create(ctx, testAutomation("auto-001", "Duplicate"))
	if !errors.Is(err, ErrAutomationExists) {
		t.Errorf("Create() duplicate error = %v, want ErrAutomationExists", err)
	}
}

func TestSQLiteRepository_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrAutomationNotFound) {
		t.Errorf("GetByID() error = %v, want ErrAutomationNotFound", err)
	}
}

func TestSQLiteRepository_ListEnabled(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	on := testAutomation("auto-on", "Enabled rule")
	off := testAutomation("auto-off", "Disabled rule")
	off.Enabled = false
	for _, a := range []*Automation{on, off} {
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("Create(%s) error = %v", a.ID, err)
		}
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List() returned %d, want 2", len(all))
	}

	enabled, err := repo.ListEnabled(ctx)
	if err != nil {
		t.Fatalf("ListEnabled() error = %v", err)
	}
	if len(enabled) != 1 || enabled[0].ID != "auto-on" {
		t.Errorf("ListEnabled() = %+v, want only auto-on", enabled)
	}
}

func TestSQLiteRepository_Update(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	a := testAutomation("auto-001", "Fan follows light")
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	desc := "Turn the fan on with the light"
	a.Name = "Fan sync"
	a.Description = &desc
	a.Actions = append(a.Actions, Action{Type: ActionDelay, DurationMS: 500})
	if err := repo.Update(ctx, a); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "auto-001")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Fan sync" || got.Description == nil || *got.Description != desc {
		t.Errorf("Update() not persisted: %+v", got)
	}
	if len(got.Actions) != 2 || got.Actions[1].Type != ActionDelay {
		t.Errorf("actions = %+v after update", got.Actions)
	}

	missing := testAutomation("missing", "Ghost")
	if err := repo.Update(ctx, missing); !errors.Is(err, ErrAutomationNotFound) {
		t.Errorf("Update() missing error = %v, want ErrAutomationNotFound", err)
	}
}

func TestSQLiteRepository_SetEnabled(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testAutomation("auto-001", "Rule")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.SetEnabled(ctx, "auto-001", false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	got, _ := repo.GetByID(ctx, "auto-001")
	if got.Enabled {
		t.Error("SetEnabled(false) did not persist")
	}

	if err := repo.SetEnabled(ctx, "missing", true); !errors.Is(err, ErrAutomationNotFound) {
		t.Errorf("SetEnabled() missing error = %v, want ErrAutomationNotFound", err)
	}
}

func TestSQLiteRepository_SetLastTriggered(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testAutomation("auto-001", "Rule")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	at := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	if err := repo.SetLastTriggered(ctx, "auto-001", at); err != nil {
		t.Fatalf("SetLastTriggered() error = %v", err)
	}

	got, _ := repo.GetByID(ctx, "auto-001")
	if got.LastTriggered == nil || !got.LastTriggered.Equal(at) {
		t.Errorf("LastTriggered = %v, want %v", got.LastTriggered, at)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testAutomation("auto-001", "Rule")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Delete(ctx, "auto-001"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "auto-001"); !errors.Is(err, ErrAutomationNotFound) {
		t.Errorf("Delete() missing error = %v, want ErrAutomationNotFound", err)
	}
}

func TestAutomation_DeepCopy(t *testing.T) {
	a := testAutomation("auto-001", "Rule")
	a.Actions[0].Data = map[string]any{"speed": "high"}
	now := time.Now().UTC()
	a.LastTriggered = &now

	cpy := a.DeepCopy()
	cpy.Actions[0].Data["speed"] = "low"
	cpy.Conditions[0].State = "on"
	*cpy.LastTriggered = now.Add(time.Hour)

	if a.Actions[0].Data["speed"] != "high" {
		t.Error("DeepCopy did not isolate action data")
	}
	if a.Conditions[0].State != "off" {
		t.Error("DeepCopy did not isolate conditions")
	}
	if !a.LastTriggered.Equal(now) {
		t.Error("DeepCopy did not isolate LastTriggered")
	}
}
