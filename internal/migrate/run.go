// Package migrate applies the embedded schema for the Postgres-backed session store.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const versionsTable = "console_schema_migrations"

// Migration is a single embedded schema step.
type Migration struct {
	Version string
	File    string
}

// List returns the embedded migrations in application order.
func List() ([]Migration, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var out []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		out = append(out, Migration{Version: strings.TrimSuffix(e.Name(), ".sql"), File: e.Name()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Run applies every embedded migration that has not been recorded yet. It is safe to call multiple times.
func Run(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if db == nil {
		return errors.New("migrate: db is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "migrations")

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+versionsTable+` (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("create %s table: %w", versionsTable, err)
	}

	migrations, err := List()
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if applyErr := apply(ctx, db, logger, m); applyErr != nil {
			return applyErr
		}
	}
	return nil
}

func applied(ctx context.Context, db *sql.DB, m Migration) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM ` + versionsTable + ` WHERE version = $1)`
	if err := db.QueryRowContext(ctx, query, m.Version).Scan(&exists); err != nil {
		return false, fmt.Errorf("check migration %s: %w", m.File, err)
	}
	return exists, nil
}

func apply(ctx context.Context, db *sql.DB, logger *slog.Logger, m Migration) error {
	done, err := applied(ctx, db, m)
	if err != nil || done {
		return err
	}

	body, err := migrationsFS.ReadFile("migrations/" + m.File)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", m.File, err)
	}

	logger.InfoContext(ctx, "applying migration", "version", m.Version)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			logger.ErrorContext(ctx, "failed to rollback migration", "err", rollbackErr, "migration_file", m.File)
		}
	}()

	if _, execErr := tx.ExecContext(ctx, string(body)); execErr != nil {
		return fmt.Errorf("exec migration %s: %w", m.File, execErr)
	}
	if _, insErr := tx.ExecContext(ctx, `INSERT INTO `+versionsTable+` (version) VALUES ($1)`, m.Version); insErr != nil {
		return fmt.Errorf("record migration %s: %w", m.File, insErr)
	}
	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("commit migration %s: %w", m.File, commitErr)
	}
	return nil
}
