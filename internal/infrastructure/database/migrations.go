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

const upSuffix = ".up.sql"

// Migration is one forward schema change, read from a file named
// YYYYMMDD_HHMMSS_name.up.sql.
type Migration struct {
	Version string
	Name    string
	UpSQL   string
}

// MigrationRecord is a row of schema_migrations.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

const schemaMigrationsDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	applied_at TEXT NOT NULL
)`

// Migrate applies the migrations in dir of fsys that have not run yet,
// oldest first, each in its own transaction. A failure leaves the earlier
// ones committed; the next call resumes at the failed one.
func (db *DB) Migrate(ctx context.Context, fsys fs.FS, dir string) error {
	if _, err := db.ExecContext(ctx, schemaMigrationsDDL); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	all, err := LoadMigrations(fsys, dir)
	if err != nil {
		return err
	}
	done, err := db.AppliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, m := range pending(all, done) {
		if err := db.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %s_%s: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func pending(all []Migration, done []MigrationRecord) []Migration {
	seen := make(map[string]struct{}, len(done))
	for _, r := range done {
		seen[r.Version] = struct{}{}
	}
	var out []Migration
	for _, m := range all {
		if _, ok := seen[m.Version]; !ok {
			out = append(out, m)
		}
	}
	return out
}

// AppliedMigrations lists schema_migrations by version.
func (db *DB) AppliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := db.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("listing applied migrations: %w", err)
	}
	defer rows.Close()

	var out []MigrationRecord
	for rows.Next() {
		var (
			r  MigrationRecord
			at string
		)
		if err := rows.Scan(&r.Version, &at); err != nil {
			return nil, fmt.Errorf("listing applied migrations: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, at); err == nil {
			r.AppliedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *DB) apply(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // No-op after Commit

	if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
		return err
	}
	stamp := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", m.Version, stamp); err != nil {
		return fmt.Errorf("recording version: %w", err)
	}
	return tx.Commit()
}

// LoadMigrations reads the up migrations in dir, ordered by version.
// Other files are ignored. A nil fsys has no migrations.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	if fsys == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}

	var out []Migration
	for _, e := range entries {
		version, name, ok := parseMigrationFilename(e.Name())
		if e.IsDir() || !ok {
			continue
		}
		body, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", e.Name(), err)
		}
		out = append(out, Migration{Version: version, Name: name, UpSQL: string(body)})
	}

	slices.SortFunc(out, func(a, b Migration) int { return strings.Compare(a.Version, b.Version) })
	return out, nil
}

// parseMigrationFilename splits "20260301_090000_devices.up.sql" into
// "20260301_090000" and "devices".
func parseMigrationFilename(filename string) (version, name string, ok bool) {
	base, isUp := strings.CutSuffix(filename, upSuffix)
	if !isUp {
		return "", "", false
	}
	date, rest, found := strings.Cut(base, "_")
	if !found {
		return "", "", false
	}
	clock, label, _ := strings.Cut(rest, "_")
	if label == "" {
		label = base
	}
	return date + "_" + clock, label, true
}
