// Package migrations applies the embedded schema files against Postgres.
// Files run in lexical order and each applied version is recorded in
// schema_migrations so restarts are idempotent.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

//go:embed *.sql
var files embed.FS

// Run applies every pending migration in a single pass. It is safe to call
// on every boot; already-applied versions are skipped.
func Run(ctx context.Context, db *sqlx.DB, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := files.ReadDir(".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	applied := map[string]bool{}
	var versions []string
	if err := db.SelectContext(ctx, &versions, `SELECT version FROM schema_migrations`); err != nil {
		return fmt.Errorf("load applied migrations: %w", err)
	}
	for _, v := range versions {
		applied[v] = true
	}

	for _, name := range names {
		if applied[name] {
			continue
		}
		sqlBytes, err := files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
		log.Info("migration applied", zap.String("version", name))
	}
	return nil
}
