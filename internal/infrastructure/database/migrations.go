package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// Schema migrations are plain SQL files compiled into the binary:
// "YYYYMMDD_HHMMSS_description.up.sql" applies a step and the matching
// ".down.sql" reverts it. The runner records applied versions in a
// schema_migrations table and is idempotent, so minihubd runs it
// unconditionally at every boot and a fresh database converges on the
// full hub schema (areas, devices, entities, automations, events,
// entity_history).

// MigrationsFS holds the embedded migration files. The migrations
// package sets it from an init function so importing that package for
// side effects is all the composition root needs:
//
//	import _ "github.com/minihub-dev/minihub-core/migrations"
var MigrationsFS embed.FS

// MigrationsDir is the path of the migration files inside MigrationsFS.
var MigrationsDir = "migrations"

// Migration is one schema step loaded from the embedded filesystem.
type Migration struct {
	// Version orders migrations and keys the applied-versions table.
	// It is the YYYYMMDD_HHMMSS prefix of the filename.
	Version string

	// Name is the description part of the filename, for log lines and
	// status output.
	Name string

	UpSQL   string
	DownSQL string
}

// MigrationRecord is one applied-migration row.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

// Migrate applies every pending migration in version order.
//
// Each step runs in its own transaction: a failing step is rolled back
// and stops the run, but steps already applied stay applied, and a
// re-run after fixing the broken file resumes from the failure. That
// matches SQLite's single-writer model and keeps a half-upgraded hub
// diagnosable — the schema_migrations table says exactly how far the
// schema got.
func (db *DB) Migrate(ctx context.Context) error {
	if err := db.ensureVersionTable(ctx); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	steps, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	done, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range steps {
		if _, ok := done[m.Version]; ok {
			continue
		}
		if err := db.applyStep(ctx, m); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrateDown reverts the most recently applied migration. Development
// tooling only; minihubd never rolls the schema back on its own.
func (db *DB) MigrateDown(ctx context.Context) error {
	applied, err := db.listApplied(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}
	latest := applied[len(applied)-1]

	steps, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	var target *Migration
	for i := range steps {
		if steps[i].Version == latest.Version {
			target = &steps[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("migration %s not found in embedded files", latest.Version)
	}
	if target.DownSQL == "" {
		return fmt.Errorf("migration %s has no down step", latest.Version)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, target.DownSQL); err != nil {
		return fmt.Errorf("reverting %s: %w", target.Version, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schema_migrations WHERE version = ?`, target.Version,
	); err != nil {
		return fmt.Errorf("clearing version record: %w", err)
	}
	return tx.Commit()
}

// GetMigrationStatus reports which migrations have been applied and
// which are still pending, for diagnostics.
func (db *DB) GetMigrationStatus(ctx context.Context) (applied []MigrationRecord, pending []Migration, err error) {
	applied, err = db.listApplied(ctx)
	if err != nil {
		return nil, nil, err
	}
	steps, err := loadMigrations()
	if err != nil {
		return nil, nil, err
	}

	done := make(map[string]struct{}, len(applied))
	for _, r := range applied {
		done[r.Version] = struct{}{}
	}
	for _, m := range steps {
		if _, ok := done[m.Version]; !ok {
			pending = append(pending, m)
		}
	}
	return applied, pending, nil
}

func (db *DB) ensureVersionTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

// appliedVersions returns the applied version set.
func (db *DB) appliedVersions(ctx context.Context) (map[string]struct{}, error) {
	applied, err := db.listApplied(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[string]struct{}, len(applied))
	for _, r := range applied {
		done[r.Version] = struct{}{}
	}
	return done, nil
}

func (db *DB) listApplied(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := db.DB.QueryContext(ctx,
		`SELECT version, applied_at FROM schema_migrations ORDER BY version`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying schema_migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var r MigrationRecord
		var appliedAt string
		if err := rows.Scan(&r.Version, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning schema_migrations row: %w", err)
		}
		r.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt) //nolint:errcheck // written by applyStep
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schema_migrations: %w", err)
	}
	return records, nil
}

// applyStep runs one up migration and records its version, atomically.
func (db *DB) applyStep(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
		return fmt.Errorf("executing up SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
		m.Version, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording version: %w", err)
	}
	return tx.Commit()
}

// loadMigrations reads the embedded directory and pairs up/down files
// by version, sorted oldest first. An unset MigrationsFS or missing
// directory means no migrations, not an error: tests that build their
// own schema never import the migrations package.
func loadMigrations() ([]Migration, error) {
	var unset embed.FS
	if MigrationsFS == unset {
		return nil, nil
	}
	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	if err != nil {
		return nil, nil
	}

	byVersion := make(map[string]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, up, ok := splitMigrationName(entry.Name())
		if !ok {
			continue
		}

		sql, err := fs.ReadFile(MigrationsFS, path.Join(MigrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if up {
			m.UpSQL = string(sql)
		} else {
			m.DownSQL = string(sql)
		}
	}

	steps := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" {
			// A lone down file reverts nothing the runner would apply.
			continue
		}
		steps = append(steps, *m)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Version < steps[j].Version })
	return steps, nil
}

// splitMigrationName parses "20260301_100000_create_areas.up.sql" into
// version "20260301_100000", name "create_areas", and direction.
// Anything not matching that shape is skipped by the loader.
func splitMigrationName(filename string) (version, name string, up bool, ok bool) {
	stem, found := strings.CutSuffix(filename, ".sql")
	if !found {
		return "", "", false, false
	}
	switch {
	case strings.HasSuffix(stem, ".up"):
		up = true
		stem = strings.TrimSuffix(stem, ".up")
	case strings.HasSuffix(stem, ".down"):
		stem = strings.TrimSuffix(stem, ".down")
	default:
		return "", "", false, false
	}

	date, rest, found := strings.Cut(stem, "_")
	if !found {
		return "", "", false, false
	}
	clock, name, found := strings.Cut(rest, "_")
	if !found {
		// Versioned but undescribed; use the version as the name.
		name = date + "_" + clock
	}
	return date + "_" + clock, name, up, true
}
