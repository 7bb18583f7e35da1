package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"webhookworker/internal/models"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// History records every completed run in a SQLite database.
type History struct {
	db *sql.DB
}

// OpenHistory opens the database at path and applies pending migrations.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// sqlite serializes writers; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, _, err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &History{db: db}, nil
}

// runMigrations applies all pending migrations and returns version info.
func runMigrations(db *sql.DB) (uint, bool, error) {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return 0, false, fmt.Errorf("failed to create sqlite migration driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return 0, false, fmt.Errorf("failed to create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, false, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}

	return version, dirty, nil
}

// Record stores a run summary.
func (h *History) Record(ctx context.Context, s models.RunSummary) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, environment, source, total, processed, saved, output, sha256, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.Environment, s.Source, s.Total, s.Processed, s.Saved, s.Output, s.SHA256, s.DurationMs,
		s.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", s.RunID, err)
	}

	return nil
}

// Recent returns up to limit runs, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]models.RunSummary, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT run_id, environment, source, total, processed, saved, output, sha256, duration_ms, started_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunSummary

	for rows.Next() {
		var (
			s         models.RunSummary
			startedAt string
		)

		if err := rows.Scan(&s.RunID, &s.Environment, &s.Source, &s.Total, &s.Processed, &s.Saved,
			&s.Output, &s.SHA256, &s.DurationMs, &startedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		s.Timestamp, err = time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse run timestamp %q: %w", startedAt, err)
		}

		runs = append(runs, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}
