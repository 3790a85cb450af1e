// pkg/db/migrate.go
package db

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

// ApplyMigrations runs every *.sql file under dir in fsys, in name order, skipping
// files already recorded in schema_migrations. Each file runs in its own transaction.
func ApplyMigrations(ctx context.Context, conn *sqlx.DB, fsys fs.FS, dir string) ([]string, error) {
	_, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations in %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	var applied []string
	for _, name := range files {
		var exists bool
		if err := conn.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, name); err != nil {
			return applied, fmt.Errorf("failed to check migration %s: %w", name, err)
		}
		if exists {
			continue
		}

		body, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return applied, fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(body)) == "" {
			return applied, fmt.Errorf("empty migration: %s", name)
		}

		if err := applyOne(ctx, conn, name, string(body)); err != nil {
			return applied, err
		}
		applied = append(applied, name)
	}
	return applied, nil
}

func applyOne(ctx context.Context, conn *sqlx.DB, name, body string) error {
	tx, err := BeginTx(ctx, conn)
	if err != nil {
		return fmt.Errorf("migration %s: failed to begin transaction: %w", name, err)
	}
	defer RollbackTx(tx)

	sqlTx := tx.(*sqlx.Tx)
	if _, err := sqlTx.ExecContext(ctx, body); err != nil {
		return fmt.Errorf("migration %s failed: %w", name, err)
	}
	if _, err := sqlTx.ExecContext(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
		return fmt.Errorf("migration %s: failed to record: %w", name, err)
	}
	if err := CommitTx(tx); err != nil {
		return fmt.Errorf("migration %s: failed to commit: %w", name, err)
	}
	return nil
}
