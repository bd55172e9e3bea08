package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/minihub-dev/minihub-core/internal/area"
	"github.com/minihub-dev/minihub-core/internal/automation"
	"github.com/minihub-dev/minihub-core/internal/device"
	"github.com/minihub-dev/minihub-core/internal/entity"
	"github.com/minihub-dev/minihub-core/internal/event"
	"github.com/minihub-dev/minihub-core/internal/history"
	"github.com/minihub-dev/minihub-core/internal/infrastructure/config"
	"github.com/minihub-dev/minihub-core/internal/infrastructure/logging"
)

// testEnv wires a server over in-memory stores, the way main does but
// against :memory: SQLite.
type testEnv struct {
	ts       *httptest.Server
	server   *Server
	bus      *event.Bus
	entities *entity.Authority
	devices  device.Repository
	areas    area.Repository
	autos    automation.Repository
	events   event.Repository
	history  history.Repository
	db       *sql.DB
}

const testSchema = `
	CREATE TABLE areas (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		parent_id TEXT REFERENCES areas(id),
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	) STRICT;

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

	CREATE TABLE events (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		entity_id TEXT,
		data TEXT NOT NULL DEFAULT '{}',
		timestamp TEXT NOT NULL
	) STRICT;

	CREATE TABLE entity_history (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL,
		state TEXT NOT NULL,
		attributes TEXT NOT NULL DEFAULT '{}',
		recorded_at TEXT NOT NULL
	) STRICT;
`

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// One connection: :memory: databases are per-connection, and requests
	// arrive on server goroutines.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(testSchema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	bus := event.NewBus(64)
	devices := device.NewSQLiteRepository(db)
	areas := area.NewSQLiteRepository(db)
	entities := entity.NewSQLiteRepository(db)
	autos := automation.NewSQLiteRepository(db)
	events := event.NewSQLiteRepository(db)
	historyRepo := history.NewSQLiteRepository(db)

	authority := entity.NewAuthority(entities, devices, bus)
	engine := automation.NewEngine(autos, authority, authority, bus)

	srv, err := New(Deps{
		Config:      config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS:          config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10, SendBuffer: 8},
		Logger:      logging.Default(),
		Entities:    authority,
		Devices:     devices,
		Areas:       areas,
		Automations: autos,
		Engine:      engine,
		Events:      events,
		History:     historyRepo,
		Bus:         bus,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv.hub = NewHub(srv.wsCfg, srv.logger)
	go srv.hub.Run(ctx)
	go srv.relayEvents(ctx)

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		bus.Close()
		db.Close()
	})

	return &testEnv{
		ts:       ts,
		server:   srv,
		bus:      bus,
		entities: authority,
		devices:  devices,
		areas:    areas,
		autos:    autos,
		events:   events,
		history:  historyRepo,
		db:       db,
	}
}

// doJSON issues a request with an optional JSON body and decodes the
// JSON response into out (when non-nil).
func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
	return resp
}

// seedLamp pushes a discovered lamp through the authority.
func seedLamp(t *testing.T, env *testEnv) *device.Device {
	t.Helper()
	dev := &device.Device{Name: "Lamp", Integration: "virtual", UniqueID: "lamp-1"}
	stored, _, err := env.entities.UpsertDiscovered(context.Background(), dev, []entity.Entity{
		{EntityID: "light.lamp", FriendlyName: "Lamp", State: entity.StateOff},
	})
	if err != nil {
		t.Fatalf("seeding lamp: %v", err)
	}
	return stored
}

func TestHealth(t *testing.T) {
	env := setupTestEnv(t)

	var got map[string]any
	resp := doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/health", nil, &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got["status"] != "ok" || got["version"] != "test" {
		t.Errorf("health = %v", got)
	}
}

func TestEntities_GetAndList(t *testing.T) {
	env := setupTestEnv(t)
	seedLamp(t, env)

	var list map[string]any
	resp := doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/entities", nil, &list)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	if list["count"] != float64(1) {
		t.Errorf("count = %v, want 1", list["count"])
	}

	var ent entity.Entity
	resp = doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/entities/light.lamp", nil, &ent)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	if ent.EntityID != "light.lamp" || ent.State != entity.StateOff {
		t.Errorf("entity = %+v", ent)
	}

	resp = doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/entities/light.nope", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing entity status = %d, want 404", resp.StatusCode)
	}
}

func TestEntities_SetState(t *testing.T) {
	env := setupTestEnv(t)
	seedLamp(t, env)

	var ent entity.Entity
	resp := doJSON(t, http.MethodPut, env.ts.URL+"/api/v1/entities/light.lamp/state",
		map[string]string{"state": "on"}, &ent)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ent.State != entity.StateOn {
		t.Errorf("state = %q, want on", ent.State)
	}

	resp = doJSON(t, http.MethodPut, env.ts.URL+"/api/v1/entities/light.lamp/state",
		map[string]string{"state": "sideways"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid state status = %d, want 400", resp.StatusCode)
	}
}

func TestEntities_PatchAttributes(t *testing.T) {
	env := setupTestEnv(t)
	seedLamp(t, env)

	var ent entity.Entity
	resp := doJSON(t, http.MethodPatch, env.ts.URL+"/api/v1/entities/light.lamp/attributes",
		map[string]any{"attributes": map[string]any{"brightness": 128}}, &ent)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ent.Attributes["brightness"] != float64(128) {
		t.Errorf("attributes = %+v", ent.Attributes)
	}

	resp = doJSON(t, http.MethodPatch, env.ts.URL+"/api/v1/entities/light.lamp/attributes",
		map[string]any{}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty patch status = %d, want 400", resp.StatusCode)
	}
}

func TestEntities_CallService(t *testing.T) {
	env := setupTestEnv(t)
	seedLamp(t, env)

	resp := doJSON(t, http.MethodPost, env.ts.URL+"/api/v1/entities/light.lamp/services/turn_on", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	got, err := env.entities.Get(context.Background(), "light.lamp")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != entity.StateOn {
		t.Errorf("state = %q after turn_on", got.State)
	}
}

func TestDevices_ListWithEntities(t *testing.T) {
	env := setupTestEnv(t)
	dev := seedLamp(t, env)

	var plain map[string]any
	resp := doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/devices", nil, &plain)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	devices, _ := plain["devices"].([]any)
	if len(devices) != 1 {
		t.Fatalf("devices = %d, want 1", len(devices))
	}
	if _, ok := devices[0].(map[string]any)["entities"]; ok {
		t.Error("plain listing should not carry entities")
	}

	var expanded map[string]any
	resp = doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/devices?include=entities", nil, &expanded)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expanded list status = %d", resp.StatusCode)
	}
	devices, _ = expanded["devices"].([]any)
	if len(devices) != 1 {
		t.Fatalf("expanded devices = %d, want 1", len(devices))
	}
	row, _ := devices[0].(map[string]any)
	if row["id"] != dev.ID {
		t.Errorf("device id = %v, want %s", row["id"], dev.ID)
	}
	entities, _ := row["entities"].([]any)
	if len(entities) != 1 {
		t.Fatalf("entities = %d, want 1", len(entities))
	}
	if ent, _ := entities[0].(map[string]any); ent["entity_id"] != "light.lamp" {
		t.Errorf("entity = %v, want light.lamp", entities[0])
	}
}

func TestDevices_UpdateAndDelete(t *testing.T) {
	env := setupTestEnv(t)
	dev := seedLamp(t, env)

	a := &area.Area{ID: area.GenerateID(), Name: "Kitchen"}
	if err := env.areas.Create(context.Background(), a); err != nil {
		t.Fatalf("creating area: %v", err)
	}

	var updated device.Device
	resp := doJSON(t, http.MethodPatch, env.ts.URL+"/api/v1/devices/"+dev.ID,
		map[string]any{"name": "Kitchen Lamp", "area_id": a.ID}, &updated)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d", resp.StatusCode)
	}
	if updated.Name != "Kitchen Lamp" || updated.AreaID == nil || *updated.AreaID != a.ID {
		t.Errorf("device = %+v", updated)
	}

	// Clearing the area with an explicit null.
	req, _ := http.NewRequest(http.MethodPatch, env.ts.URL+"/api/v1/devices/"+dev.ID,
		strings.NewReader(`{"area_id": null}`))
	req.Header.Set("Content-Type", "application/json")
	rawResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("null patch: %v", err)
	}
	rawResp.Body.Close()
	if rawResp.StatusCode != http.StatusOK {
		t.Fatalf("null patch status = %d", rawResp.StatusCode)
	}
	cleared, _ := env.devices.GetByID(context.Background(), dev.ID)
	if cleared.AreaID != nil {
		t.Errorf("AreaID = %v after null patch, want nil", cleared.AreaID)
	}

	// Deleting the device removes its entities too.
	resp = doJSON(t, http.MethodDelete, env.ts.URL+"/api/v1/devices/"+dev.ID, nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if _, err := env.entities.Get(context.Background(), "light.lamp"); err == nil {
		t.Error("entity survived device deletion")
	}
}

func TestAreas_CRUDAndCycleGuard(t *testing.T) {
	env := setupTestEnv(t)

	var house area.Area
	resp := doJSON(t, http.MethodPost, env.ts.URL+"/api/v1/areas",
		map[string]any{"name": "House"}, &house)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}

	var kitchen area.Area
	resp = doJSON(t, http.MethodPost, env.ts.URL+"/api/v1/areas",
		map[string]any{"name": "Kitchen", "parent_id": house.ID}, &kitchen)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create child status = %d", resp.StatusCode)
	}

	// Re-parenting the root under its own child must be refused.
	resp = doJSON(t, http.MethodPatch, env.ts.URL+"/api/v1/areas/"+house.ID,
		map[string]any{"name": "House", "parent_id": kitchen.ID}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("cycle patch status = %d, want 400", resp.StatusCode)
	}

	// Deleting an area that still has children must be refused.
	resp = doJSON(t, http.MethodDelete, env.ts.URL+"/api/v1/areas/"+house.ID, nil, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("delete-with-children status = %d, want 409", resp.StatusCode)
	}

	var tree map[string]any
	resp = doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/areas/tree", nil, &tree)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tree status = %d", resp.StatusCode)
	}
	roots, ok := tree["tree"].([]any)
	if !ok || len(roots) != 1 {
		t.Errorf("tree = %v, want one root", tree)
	}
}

func TestAutomations_CRUDAndTrigger(t *testing.T) {
	env := setupTestEnv(t)
	seedLamp(t, env)

	body := map[string]any{
		"name":    "Evening light",
		"trigger": map[string]any{"type": "manual"},
		"actions": []map[string]any{
			{"type": "call_service", "entity_id": "light.lamp", "service": "turn_on"},
		},
	}

	var created automation.Automation
	resp := doJSON(t, http.MethodPost, env.ts.URL+"/api/v1/automations", body, &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	if !created.Enabled {
		t.Error("new automation should default to enabled")
	}

	// Manual trigger runs the actions synchronously.
	resp = doJSON(t, http.MethodPost, env.ts.URL+"/api/v1/automations/"+created.ID+"/trigger", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("trigger status = %d", resp.StatusCode)
	}
	got, _ := env.entities.Get(context.Background(), "light.lamp")
	if got.State != entity.StateOn {
		t.Errorf("state = %q after trigger, want on", got.State)
	}

	// Disabled automations refuse manual triggers.
	resp = doJSON(t, http.MethodPost, env.ts.URL+"/api/v1/automations/"+created.ID+"/disable", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("disable status = %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodPost, env.ts.URL+"/api/v1/automations/"+created.ID+"/trigger", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("trigger disabled status = %d, want 400", resp.StatusCode)
	}

	// Rejects an automation with no trigger.
	resp = doJSON(t, http.MethodPost, env.ts.URL+"/api/v1/automations",
		map[string]any{"name": "broken"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("create without trigger status = %d, want 400", resp.StatusCode)
	}
}

func TestEvents_ListRecent(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ev := event.New(event.TypeStateChanged, "light.lamp", map[string]any{"from": "off", "to": "on"})
		ev.Timestamp = time.Now().UTC().Add(time.Duration(i) * time.Second)
		if err := env.events.Insert(ctx, ev); err != nil {
			t.Fatalf("inserting event: %v", err)
		}
	}

	var got map[string][]event.Event
	resp := doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/events?limit=2", nil, &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(got["events"]) != 2 {
		t.Errorf("events = %d, want 2", len(got["events"]))
	}
}

func TestEntityHistory_Endpoint(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, state := range []string{"off", "on", "off"} {
		h := history.EntityHistory{
			ID:         history.GenerateID(),
			EntityID:   "light.lamp",
			State:      state,
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := env.history.Insert(ctx, h); err != nil {
			t.Fatalf("inserting history: %v", err)
		}
	}

	var got map[string]any
	url := fmt.Sprintf("%s/api/v1/entities/light.lamp/history?since=%s",
		env.ts.URL, base.Add(30*time.Second).Format(time.RFC3339))
	resp := doJSON(t, http.MethodGet, url, nil, &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got["count"] != float64(2) {
		t.Errorf("count = %v, want 2 rows after since", got["count"])
	}

	resp = doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/entities/light.lamp/history?since=yesterday", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad since status = %d, want 400", resp.StatusCode)
	}
}
