// Package sqlite implements pipeline.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/meikuraledutech/pipeline"
	_ "modernc.org/sqlite"
)

// Store implements pipeline.Store using SQLite via database/sql.
type Store struct {
	db *sql.DB
}

var _ pipeline.Store = (*Store)(nil)

// New wraps an already opened database. The schema is not touched.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (and creates if needed) the SQLite database at path and
// ensures the pipeline tables exist.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Foreign keys are a per-connection setting.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	s := New(db)
	if err := s.CreateSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSchema creates tables and indexes if missing.
func (s *Store) CreateSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pipelines (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  name        TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  is_active   INTEGER NOT NULL DEFAULT 0,
  fingerprint TEXT NOT NULL DEFAULT '',
  created_by  TEXT NOT NULL DEFAULT '',
  created_at  TEXT NOT NULL,
  updated_by  TEXT NOT NULL DEFAULT '',
  updated_at  TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS pipeline_steps (
  id             TEXT PRIMARY KEY,
  pipeline_id    INTEGER NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
  position_index INTEGER NOT NULL,
  name           TEXT NOT NULL,
  data           JSON NOT NULL DEFAULT '{}',
  UNIQUE (pipeline_id, name)
);`,
		`CREATE TABLE IF NOT EXISTS pipeline_step_deps (
  pipeline_id        INTEGER NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
  step_id            TEXT NOT NULL REFERENCES pipeline_steps(id) ON DELETE CASCADE,
  depends_on_step_id TEXT NOT NULL REFERENCES pipeline_steps(id) ON DELETE CASCADE,
  PRIMARY KEY (step_id, depends_on_step_id)
);`,
		`CREATE INDEX IF NOT EXISTS pipeline_steps_pipeline_id_idx ON pipeline_steps(pipeline_id);`,
		`CREATE INDEX IF NOT EXISTS pipeline_step_deps_pipeline_id_idx ON pipeline_step_deps(pipeline_id);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}

// DropSchema drops the pipeline tables.
func (s *Store) DropSchema(ctx context.Context) error {
	for _, table := range []string{"pipeline_step_deps", "pipeline_steps", "pipelines"} {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+";"); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}
