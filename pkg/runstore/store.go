// Package runstore keeps a history of solver runs in a sqlite database
package runstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Run is one recorded solve or score
type Run struct {
	ID        string
	Mode      string
	CreatedAt time.Time
	PatchSize int

	// Truth and Estimate are parameter lines "x y h a1 .. a9", empty if unknown
	Truth    string
	Estimate string

	HasLocation bool
	HasHeight   bool
	HasAlbedo   bool

	// Errors against the truth, NULL when no truth was given
	LocationError  sql.NullFloat64
	HeightError    sql.NullFloat64
	MaxAlbedoError sql.NullFloat64
	Score          sql.NullFloat64

	Duration time.Duration
}

// Store wraps the run database
type Store struct {
	*sql.DB
}

// Open opens (or creates) the database at path and applies migrations
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run database: %w", err)
	}
	s := &Store{db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// MigrateUp runs all pending migrations up to the latest version
func (s *Store) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: closing it would close the shared connection

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the current schema version, 0 if none is applied
func (s *Store) MigrateVersion() (uint, bool, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// Record stores a run, assigning an ID and timestamp when missing
func (s *Store) Record(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := s.Exec(`
		INSERT INTO runs (
			run_id, mode, created_at, patch_size, truth, estimate,
			has_location, has_height, has_albedo,
			location_error, height_error, max_albedo_error, score, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Mode, run.CreatedAt, run.PatchSize, run.Truth, run.Estimate,
		run.HasLocation, run.HasHeight, run.HasAlbedo,
		run.LocationError, run.HeightError, run.MaxAlbedoError, run.Score,
		run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}

// List returns up to limit runs, newest first
func (s *Store) List(limit int) ([]Run, error) {
	return s.query(`ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
}

// Get returns a single run by ID
func (s *Store) Get(id string) (Run, error) {
	runs, err := s.query(`WHERE run_id = ?`, id)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, fmt.Errorf("run %s: %w", id, sql.ErrNoRows)
	}
	return runs[0], nil
}

func (s *Store) query(clause string, args ...interface{}) ([]Run, error) {
	rows, err := s.Query(`
		SELECT run_id, mode, created_at, patch_size, truth, estimate,
			has_location, has_height, has_albedo,
			location_error, height_error, max_albedo_error, score, duration_ms
		FROM runs `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var durationMs int64
		if err := rows.Scan(
			&r.ID, &r.Mode, &r.CreatedAt, &r.PatchSize, &r.Truth, &r.Estimate,
			&r.HasLocation, &r.HasHeight, &r.HasAlbedo,
			&r.LocationError, &r.HeightError, &r.MaxAlbedoError, &r.Score,
			&durationMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
