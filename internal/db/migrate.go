package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// seedPrefix names seed files holding the JSON Schema of one field type's
// constraint object, e.g. seed/constraint_number.json.
const seedPrefix = "constraint_"

// Migrate applies migrations and seed files found in the repository.
// It creates a `schema_migrations` table to track applied migrations and applies
// any SQL files in `db/migrations/` that have not yet been recorded. Constraint
// schema seeds are upserted on every run so edits to the seed files take effect.
func Migrate(ctx context.Context, d *DB, migrationFS embed.FS, seedFS embed.FS) error {
	if _, err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	migDir := "migrations"

	files, err := listFiles(migrationFS, migDir, ".sql")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for _, fname := range files {
		version := strings.TrimSuffix(fname, path.Ext(fname))

		var count int
		row := d.QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, version)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("scan migration applied count: %w", err)
		}
		if count > 0 {
			continue
		}

		b, err := fs.ReadFile(migrationFS, path.Join(migDir, fname))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", fname, err)
		}
		if _, err := d.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec migration %s: %w", fname, err)
		}

		if _, err := d.Exec(ctx, `INSERT INTO schema_migrations (version, applied) VALUES (?, strftime('%s','now'))`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", fname, err)
		}
		d.logger.Info("db: migration applied", "version", version)
	}

	seeds, err := listFiles(seedFS, "seed", ".json")
	if err != nil {
		// seeds are optional
		return nil
	}
	for _, fname := range seeds {
		if !strings.HasPrefix(fname, seedPrefix) {
			continue
		}
		fieldType := strings.TrimSuffix(strings.TrimPrefix(fname, seedPrefix), path.Ext(fname))
		b, err := fs.ReadFile(seedFS, path.Join("seed", fname))
		if err != nil {
			return fmt.Errorf("read seed %s: %w", fname, err)
		}
		if _, err := d.Exec(ctx, `INSERT INTO constraint_schemas (field_type, schema_json, updated) VALUES (?, ?, strftime('%s','now')) ON CONFLICT(field_type) DO UPDATE SET schema_json=excluded.schema_json, updated=excluded.updated`, fieldType, string(b)); err != nil {
			return fmt.Errorf("seed constraint schema %s: %w", fieldType, err)
		}
	}

	return nil
}

func listFiles(fsys embed.FS, dir, ext string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
