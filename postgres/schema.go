package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pipelines (
    id          BIGSERIAL PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    is_active   BOOLEAN NOT NULL DEFAULT FALSE,
    fingerprint TEXT NOT NULL DEFAULT '',
    created_by  TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_by  TEXT NOT NULL DEFAULT '',
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS pipeline_steps (
    id             TEXT PRIMARY KEY,
    pipeline_id    BIGINT NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
    position_index INTEGER NOT NULL,
    name           TEXT NOT NULL,
    data           JSONB NOT NULL DEFAULT '{}',
    UNIQUE (pipeline_id, name)
);

CREATE TABLE IF NOT EXISTS pipeline_step_deps (
    pipeline_id        BIGINT NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
    step_id            TEXT NOT NULL REFERENCES pipeline_steps(id) ON DELETE CASCADE,
    depends_on_step_id TEXT NOT NULL REFERENCES pipeline_steps(id) ON DELETE CASCADE,
    PRIMARY KEY (step_id, depends_on_step_id)
);

CREATE INDEX IF NOT EXISTS idx_pipeline_steps_pipeline_id     ON pipeline_steps(pipeline_id);
CREATE INDEX IF NOT EXISTS idx_pipeline_step_deps_pipeline_id ON pipeline_step_deps(pipeline_id);
`

// CreateSchema creates the pipeline tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the pipeline tables.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS pipeline_step_deps, pipeline_steps, pipelines CASCADE;`)
	return err
}
