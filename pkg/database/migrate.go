package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies embedded migrations that have not run yet. Each file is
// keyed by name in the _migrations table and applied at most once, inside
// a transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("creating migration table: %w", err)
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading embedded migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	applied := 0
	for _, name := range names {
		key := strings.TrimSuffix(name, ".sql")

		var exists bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM _migrations WHERE name = $1)`, key).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking migration %s: %w", key, err)
		}
		if exists {
			continue
		}

		content, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", key, err)
		}

		if err := applyMigration(ctx, db, key, string(content)); err != nil {
			return err
		}
		applied++
	}

	if applied > 0 {
		slog.Info("applied migrations", "count", applied)
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, key, content string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting migration %s: %w", key, err)
	}
	defer tx.Rollback()

	for _, stmt := range strings.Split(content, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %s: %w", key, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO _migrations (name) VALUES ($1)`, key); err != nil {
		return fmt.Errorf("recording migration %s: %w", key, err)
	}
	return tx.Commit()
}
