package database

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"
)

// MigrationsFS holds the embedded SQL files, one subdirectory per dialect:
//
//	sqlite/20260301_090000_initial_schema.up.sql
//	postgres/20260301_090000_initial_schema.up.sql
//
// It is assigned by the migrations package at init.
var MigrationsFS fs.FS

// MigrationsDir is the root inside MigrationsFS holding the dialect directories.
var MigrationsDir = "."

const (
	suffixUp   = ".up.sql"
	suffixDown = ".down.sql"

	// Filenames are <date>_<time>_<name>; the first two fields form the version.
	filenameFields = 3
)

// Migration is one versioned schema change for the active dialect.
type Migration struct {
	Version string // e.g. 20260301_090000
	Name    string
	UpSQL   string
	DownSQL string
}

// MigrationRecord is a row of schema_migrations.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

// Migrate applies every pending migration, oldest first. Each migration has
// its own transaction; a failure leaves earlier ones committed and stops.
func (db *DB) Migrate(ctx context.Context) error {
	if err := db.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	_, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return err
	}

	for _, m := range pending {
		if err := db.inTx(ctx, m.UpSQL,
			"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			m.Version, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrateDown reverts the latest applied migration. It is a no-op when the
// history is empty.
func (db *DB) MigrateDown(ctx context.Context) error {
	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}
	latest := applied[len(applied)-1].Version

	available, err := loadMigrations(db.driver)
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	i := slices.IndexFunc(available, func(m Migration) bool { return m.Version == latest })
	switch {
	case i < 0:
		return fmt.Errorf("migration %s not found in filesystem", latest)
	case available[i].DownSQL == "":
		return fmt.Errorf("migration %s has no down SQL", latest)
	}

	if err := db.inTx(ctx, available[i].DownSQL,
		"DELETE FROM schema_migrations WHERE version = ?", latest,
	); err != nil {
		return fmt.Errorf("reverting migration %s: %w", latest, err)
	}
	return nil
}

// GetMigrationStatus splits the known migrations into applied and pending.
func (db *DB) GetMigrationStatus(ctx context.Context) (applied []MigrationRecord, pending []Migration, err error) {
	if applied, err = db.appliedMigrations(ctx); err != nil {
		return nil, nil, err
	}
	available, err := loadMigrations(db.driver)
	if err != nil {
		return nil, nil, fmt.Errorf("loading migrations: %w", err)
	}

	done := make(map[string]struct{}, len(applied))
	for _, r := range applied {
		done[r.Version] = struct{}{}
	}
	for _, m := range available {
		if _, ok := done[m.Version]; !ok {
			pending = append(pending, m)
		}
	}
	return applied, pending, nil
}

func (db *DB) createMigrationsTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TEXT NOT NULL)`)
	return err
}

func (db *DB) appliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := db.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("querying schema_migrations: %w", err)
	}
	defer rows.Close()

	var out []MigrationRecord
	for rows.Next() {
		var (
			rec MigrationRecord
			ts  string
		)
		if err := rows.Scan(&rec.Version, &ts); err != nil {
			return nil, fmt.Errorf("scanning schema_migrations: %w", err)
		}
		rec.AppliedAt, _ = time.Parse(time.RFC3339, ts) //nolint:errcheck // written by Migrate
		out = append(out, rec)
	}
	return out, rows.Err()
}

// inTx runs a schema statement and its bookkeeping statement atomically.
func (db *DB) inTx(ctx context.Context, schemaSQL, bookkeeping string, args ...any) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, args...); err != nil {
		return fmt.Errorf("updating schema_migrations: %w", err)
	}
	return tx.Commit()
}

// loadMigrations reads the driver's directory from MigrationsFS, sorted by
// version. A missing filesystem or directory yields no migrations.
func loadMigrations(driver string) ([]Migration, error) {
	if MigrationsFS == nil {
		return nil, nil
	}

	sub := "sqlite"
	if driver == DriverPostgres {
		sub = "postgres"
	}
	dir := path.Join(MigrationsDir, sub)

	entries, err := fs.ReadDir(MigrationsFS, dir)
	if err != nil {
		return nil, nil //nolint:nilerr // absent dialect directory
	}

	byVersion := make(map[string]*Migration)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		version, up, ok := parseMigrationFilename(e.Name())
		if !ok {
			continue
		}
		body, err := fs.ReadFile(MigrationsFS, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version}
			byVersion[version] = m
		}
		if up {
			m.Name = extractMigrationName(e.Name())
			m.UpSQL = string(body)
		} else {
			m.DownSQL = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" {
			continue // orphan down file
		}
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b Migration) int { return strings.Compare(a.Version, b.Version) })
	return out, nil
}

// parseMigrationFilename returns the version and direction of a file named
// <date>_<time>_<name>.up.sql or .down.sql.
func parseMigrationFilename(name string) (version string, up bool, ok bool) {
	var base string
	switch {
	case strings.HasSuffix(name, suffixUp):
		base, up = strings.TrimSuffix(name, suffixUp), true
	case strings.HasSuffix(name, suffixDown):
		base = strings.TrimSuffix(name, suffixDown)
	default:
		return "", false, false
	}

	fields := strings.SplitN(base, "_", filenameFields)
	if len(fields) < 2 {
		return "", false, false
	}
	return fields[0] + "_" + fields[1], up, true
}

// extractMigrationName returns the <name> part, e.g. "initial_schema".
func extractMigrationName(filename string) string {
	base := strings.TrimSuffix(strings.TrimSuffix(filename, suffixUp), suffixDown)
	fields := strings.SplitN(base, "_", filenameFields)
	if len(fields) == filenameFields {
		return fields[2]
	}
	return base
}
