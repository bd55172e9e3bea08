// Minihub Core - Local Home Automation Hub
//
// This is the main entry point for the Minihub Core application.
// Minihub is a local-first home automation hub designed for:
//   - Offline operation (no cloud dependency)
//   - A single authoritative entity state store
//   - Event-driven automations over an in-process bus
//   - Protocol integrations with per-integration failure isolation
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/minihub-dev/minihub-core/migrations"

	"github.com/minihub-dev/minihub-core/internal/api"
	"github.com/minihub-dev/minihub-core/internal/area"
	"github.com/minihub-dev/minihub-core/internal/automation"
	"github.com/minihub-dev/minihub-core/internal/device"
	"github.com/minihub-dev/minihub-core/internal/entity"
	"github.com/minihub-dev/minihub-core/internal/event"
	"github.com/minihub-dev/minihub-core/internal/history"
	"github.com/minihub-dev/minihub-core/internal/infrastructure/config"
	"github.com/minihub-dev/minihub-core/internal/infrastructure/database"
	"github.com/minihub-dev/minihub-core/internal/infrastructure/logging"
	"github.com/minihub-dev/minihub-core/internal/infrastructure/mqtt"
	"github.com/minihub-dev/minihub-core/internal/infrastructure/tsdb"
	"github.com/minihub-dev/minihub-core/internal/integration"
	"github.com/minihub-dev/minihub-core/internal/integration/mqttbridge"
	"github.com/minihub-dev/minihub-core/internal/integration/virtual"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Minihub Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Event bus: every state transition, discovery, and automation firing
	// flows through here.
	bus := event.NewBus(cfg.Bus.Capacity)
	defer bus.Close()

	// Repositories
	deviceRepo := device.NewSQLiteRepository(db.DB)
	areaRepo := area.NewSQLiteRepository(db.DB)
	entityRepo := entity.NewSQLiteRepository(db.DB)
	automationRepo := automation.NewSQLiteRepository(db.DB)
	eventRepo := event.NewSQLiteRepository(db.DB)
	historyRepo := history.NewSQLiteRepository(db.DB)

	// Entity authority: the single writer for entity state
	authority := entity.NewAuthority(entityRepo, deviceRepo, bus)
	authority.SetLogger(log)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB for numeric telemetry (optional)
	var tsdbClient *tsdb.Client
	if cfg.InfluxDB.Enabled {
		tsdbClient, err = tsdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := tsdbClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		tsdbClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Integrations: a fixed set, enabled by config
	var integrations []integration.Integration
	if cfg.Integrations.Virtual.Enabled {
		integrations = append(integrations,
			virtual.New(time.Duration(cfg.Integrations.Virtual.SensorInterval)*time.Second))
	}
	if cfg.Integrations.MQTT.Enabled && mqttClient != nil {
		bridge := mqttbridge.New(mqttClient, byte(cfg.MQTT.QoS))
		bridge.SetLogger(log)
		integrations = append(integrations, bridge)
	}

	manager := integration.NewManager(authority, deviceRepo, bus, integrations...)
	manager.SetLogger(log)
	if err := manager.SetupAll(ctx); err != nil {
		return fmt.Errorf("starting integrations: %w", err)
	}
	defer func() {
		log.Info("stopping integrations")
		teardownCtx, teardownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer teardownCancel()
		manager.TeardownAll(teardownCtx)
	}()
	log.Info("integrations started", "active", manager.ActiveNames())

	// Automation engine: service calls route through the manager so
	// automations drive real devices, not just stored state.
	engine := automation.NewEngine(automationRepo, manager, authority, bus)
	engine.SetLogger(log)
	go engine.Run(ctx)
	log.Info("automation engine started")

	// History recorder and retention purger
	var metrics history.MetricWriter
	if tsdbClient != nil {
		metrics = tsdbClient
	}
	recorder := history.NewRecorder(bus, eventRepo, historyRepo, &entitySnapshotAdapter{authority}, metrics)
	recorder.SetLogger(log)
	go recorder.Run(ctx)

	purger := history.NewPurger(historyRepo, eventRepo, cfg.GetRetention(), cfg.GetPurgeInterval())
	purger.SetLogger(log)
	go purger.Run(ctx)
	log.Info("history recorder started",
		"retention_days", cfg.History.RetentionDays,
		"purge_interval_min", cfg.History.PurgeInterval,
	)

	// API server
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log,
		Entities:    authority,
		Devices:     deviceRepo,
		Areas:       areaRepo,
		Automations: automationRepo,
		Engine:      engine,
		Services:    manager,
		Events:      eventRepo,
		History:     historyRepo,
		Bus:         bus,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Verify infrastructure is healthy
	if err := healthCheck(ctx, db, mqttClient, tsdbClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Integrations
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)
	// 5. Event bus
	// 6. Database

	log.Info("Minihub Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses MINIHUB_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("MINIHUB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and tsdbClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, tsdbClient *tsdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if tsdbClient != nil {
		if err := tsdbClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// entitySnapshotAdapter adapts the entity authority to the history
// recorder's reader interface, which wants a flat state+attributes view.
type entitySnapshotAdapter struct {
	authority *entity.Authority
}

// Snapshot implements history.EntityReader.
func (a *entitySnapshotAdapter) Snapshot(ctx context.Context, entityID string) (history.EntitySnapshot, error) {
	ent, err := a.authority.Get(ctx, entityID)
	if err != nil {
		return history.EntitySnapshot{}, err
	}
	return history.EntitySnapshot{
		State:      string(ent.State),
		Attributes: ent.Attributes,
	}, nil
}
