package device

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the devices table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE devices (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			manufacturer TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			area_id TEXT,
			integration TEXT NOT NULL,
			unique_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE UNIQUE INDEX idx_devices_integration_unique_id
			ON devices(integration, unique_id) WHERE unique_id != '';
		CREATE INDEX idx_devices_area_id ON devices(area_id);
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

// testDevice creates a device for testing.
func testDevice(id, name string) *Device {
	return &Device{
		ID:           id,
		Name:         name,
		Manufacturer: "Acme",
		Model:        "Bulb 9000",
		Integration:  "virtual",
		UniqueID:     "unique-" + id,
	}
}

func TestSQLiteRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	t.Run("creates device successfully", func(t *testing.T) {
		dev := testDevice("dev-001", "Kitchen Light")

		if err := repo.Create(ctx, dev); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		got, err := repo.GetByID(ctx, "dev-001")
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if got.Name != "Kitchen Light" {
			t.Errorf("Name = %q, want %q", got.Name, "Kitchen Light")
		}
		if got.Integration != "virtual" {
			t.Errorf("Integration = %q, want %q", got.Integration, "virtual")
		}
		if got.CreatedAt.IsZero() {
			t.Error("CreatedAt should be set by the schema default")
		}
	})

	t.Run("returns error for duplicate ID", func(t *testing.T) {
		dev := testDevice("dev-duplicate", "First Device")
		if err := repo.Create(ctx, dev); err != nil {
			t.Fatalf("first Create() error = %v", err)
		}

		dev2 := testDevice("dev-duplicate2", "Second Device")
		dev2.ID = "dev-duplicate"
		dev2.UniqueID = "other-unique"
		err := repo.Create(ctx, dev2)
		if !errors.Is(err, ErrDeviceExists) {
			t.Errorf("Create() duplicate error = %v, want ErrDeviceExists", err)
		}
	})
}

func TestSQLiteRepository_GetByIntegrationID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	dev := testDevice("dev-001", "Kitchen Light")
	if err := repo.Create(ctx, dev); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByIntegrationID(ctx, "virtual", "unique-dev-001")
	if err != nil {
		t.Fatalf("GetByIntegrationID() error = %v", err)
	}
	if got.ID != "dev-001" {
		t.Errorf("ID = %q, want dev-001", got.ID)
	}

	_, err = repo.GetByIntegrationID(ctx, "virtual", "nope")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByIntegrationID() error = %v, want ErrDeviceNotFound", err)
	}

	_, err = repo.GetByIntegrationID(ctx, "mqtt", "unique-dev-001")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByIntegrationID() with wrong integration error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	for _, name := range []string{"Zeta", "Alpha"} {
		dev := testDevice("dev-"+name, name)
		if err := repo.Create(ctx, dev); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("List() returned %d devices, want 2", len(devices))
	}
	if devices[0].Name != "Alpha" {
		t.Errorf("List() not ordered by name: first = %q", devices[0].Name)
	}
}

func TestSQLiteRepository_ListByArea(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	areaID := "area-kitchen"
	inArea := testDevice("dev-001", "Kitchen Light")
	inArea.AreaID = &areaID
	noArea := testDevice("dev-002", "Hall Light")

	for _, dev := range []*Device{inArea, noArea} {
		if err := repo.Create(ctx, dev); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	devices, err := repo.ListByArea(ctx, areaID)
	if err != nil {
		t.Fatalf("ListByArea() error = %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "dev-001" {
		t.Errorf("ListByArea() = %v, want only dev-001", devices)
	}

	count, err := repo.CountByArea(ctx, areaID)
	if err != nil {
		t.Fatalf("CountByArea() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountByArea() = %d, want 1", count)
	}
}

func TestSQLiteRepository_Update(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	dev := testDevice("dev-001", "Kitchen Light")
	if err := repo.Create(ctx, dev); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	areaID := "area-kitchen"
	dev.Name = "Kitchen Ceiling Light"
	dev.AreaID = &areaID
	if err := repo.Update(ctx, dev); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "dev-001")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Kitchen Ceiling Light" {
		t.Errorf("Name = %q after update", got.Name)
	}
	if got.AreaID == nil || *got.AreaID != areaID {
		t.Errorf("AreaID = %v after update, want %q", got.AreaID, areaID)
	}

	missing := testDevice("dev-missing", "Ghost")
	if err := repo.Update(ctx, missing); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Update() missing error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	dev := testDevice("dev-001", "Kitchen Light")
	if err := repo.Create(ctx, dev); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Delete(ctx, "dev-001"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, err := repo.GetByID(ctx, "dev-001")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrDeviceNotFound", err)
	}

	if err := repo.Delete(ctx, "dev-001"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Delete() missing error = %v, want ErrDeviceNotFound", err)
	}
}

func TestDevice_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Device)
		wantErr error
	}{
		{
			name:    "valid device",
			mutate:  func(*Device) {},
			wantErr: nil,
		},
		{
			name:    "missing id",
			mutate:  func(d *Device) { d.ID = "" },
			wantErr: ErrInvalidDevice,
		},
		{
			name:    "missing name",
			mutate:  func(d *Device) { d.Name = "" },
			wantErr: ErrInvalidName,
		},
		{
			name: "name too long",
			mutate: func(d *Device) {
				for len(d.Name) <= maxNameLength {
					d.Name += "x"
				}
			},
			wantErr: ErrInvalidName,
		},
		{
			name:    "missing integration",
			mutate:  func(d *Device) { d.Integration = "" },
			wantErr: ErrInvalidIntegration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := testDevice("dev-001", "Kitchen Light")
			tt.mutate(dev)
			err := dev.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDevice_DeepCopy(t *testing.T) {
	areaID := "area-1"
	dev := testDevice("dev-001", "Kitchen Light")
	dev.AreaID = &areaID

	cpy := dev.DeepCopy()
	*cpy.AreaID = "area-2"
	cpy.Name = "Other"

	if *dev.AreaID != "area-1" {
		t.Error("DeepCopy did not isolate AreaID pointer")
	}
	if dev.Name != "Kitchen Light" {
		t.Error("DeepCopy did not isolate value fields")
	}

	var nilDev *Device
	if nilDev.DeepCopy() != nil {
		t.Error("DeepCopy of nil should be nil")
	}
}
