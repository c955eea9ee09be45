package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/pipeline"
)

// CreatePipeline saves a pipeline and all of its steps in one transaction.
// Dependencies are resolved by trimmed step name to generated step IDs.
// On success p.ID and p.Fingerprint are filled in.
func (s *PGStore) CreatePipeline(ctx context.Context, p *pipeline.Pipeline) (int64, error) {
	if err := pipeline.ValidateDefinition(p); err != nil {
		return 0, err
	}
	fp, err := pipeline.Fingerprint(p)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("pipeline: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO pipelines (name, description, is_active, fingerprint, created_by, updated_by)
		 VALUES ($1, $2, $3, $4, $5, $5) RETURNING id`,
		strings.TrimSpace(p.Name), p.Description, p.IsActive, fp, p.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("pipeline: insert pipeline: %w", err)
	}

	if err := insertSteps(ctx, tx, id, p.Steps); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("pipeline: commit: %w", err)
	}

	p.ID = id
	p.Fingerprint = fp
	return id, nil
}

// GetPipeline retrieves a pipeline with its steps.
// Returns nil, nil if the pipeline doesn't exist.
func (s *PGStore) GetPipeline(ctx context.Context, id int64) (*pipeline.Pipeline, error) {
	p := &pipeline.Pipeline{}
	err := s.db.QueryRow(ctx,
		`SELECT id, name, description, is_active, fingerprint, created_by, created_at, updated_by, updated_at
		 FROM pipelines WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.IsActive, &p.Fingerprint,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedBy, &p.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("pipeline: get pipeline: %w", err)
	}

	p.Steps, err = loadSteps(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdatePipeline replaces the definition of an existing pipeline. Steps are
// rewritten as a whole. Returns ErrPipelineNotFound if id doesn't exist.
func (s *PGStore) UpdatePipeline(ctx context.Context, id int64, p *pipeline.Pipeline) error {
	if err := pipeline.ValidateDefinition(p); err != nil {
		return err
	}
	fp, err := pipeline.Fingerprint(p)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx,
		`UPDATE pipelines
		 SET name = $1, description = $2, is_active = $3, fingerprint = $4, updated_by = $5, updated_at = NOW()
		 WHERE id = $6`,
		strings.TrimSpace(p.Name), p.Description, p.IsActive, fp, p.UpdatedBy, id,
	)
	if err != nil {
		return fmt.Errorf("pipeline: update pipeline: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pipeline.ErrPipelineNotFound
	}

	// Replace semantics: deps cascade with their steps.
	if _, err := tx.Exec(ctx, `DELETE FROM pipeline_steps WHERE pipeline_id = $1`, id); err != nil {
		return fmt.Errorf("pipeline: delete steps: %w", err)
	}
	if err := insertSteps(ctx, tx, id, p.Steps); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pipeline: commit: %w", err)
	}

	p.ID = id
	p.Fingerprint = fp
	return nil
}

// DeletePipeline removes a pipeline. Steps and dependencies are
// cascade-deleted by the DB. No error if the pipeline doesn't exist.
func (s *PGStore) DeletePipeline(ctx context.Context, id int64) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM pipelines WHERE id = $1`, id); err != nil {
		return fmt.Errorf("pipeline: delete pipeline: %w", err)
	}
	return nil
}

// ListPipelines returns all pipelines with their steps, ordered by id.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListPipelines(ctx context.Context) ([]pipeline.Pipeline, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, description, is_active, fingerprint, created_by, created_at, updated_by, updated_at
		 FROM pipelines ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("pipeline: query pipelines: %w", err)
	}

	list := []pipeline.Pipeline{}
	for rows.Next() {
		var p pipeline.Pipeline
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.IsActive, &p.Fingerprint,
			&p.CreatedBy, &p.CreatedAt, &p.UpdatedBy, &p.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("pipeline: scan pipeline: %w", err)
		}
		list = append(list, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: rows pipelines: %w", err)
	}

	for i := range list {
		list[i].Steps, err = loadSteps(ctx, s.db, list[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return list, nil
}

// insertSteps writes steps and their dependency rows. Step names are mapped
// to fresh UUIDs first so dependencies can reference steps in any order.
func insertSteps(ctx context.Context, tx pgx.Tx, pipelineID int64, steps []pipeline.Step) error {
	refMap := make(map[string]string, len(steps))
	for _, st := range steps {
		refMap[strings.TrimSpace(st.Name)] = uuid.NewString()
	}

	for i, st := range steps {
		name := strings.TrimSpace(st.Name)
		data, err := pipeline.EncodeStepData(st)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO pipeline_steps (id, pipeline_id, position_index, name, data) VALUES ($1, $2, $3, $4, $5)`,
			refMap[name], pipelineID, i, name, data,
		); err != nil {
			return fmt.Errorf("pipeline: insert step %q: %w", name, err)
		}
	}

	for _, st := range steps {
		name := strings.TrimSpace(st.Name)
		for _, dep := range st.DependsOnStepNames {
			depID, ok := refMap[strings.TrimSpace(dep)]
			if !ok {
				return fmt.Errorf("%w: %q depends on %q", pipeline.ErrUnknownDependency, name, dep)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO pipeline_step_deps (pipeline_id, step_id, depends_on_step_id)
				 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
				pipelineID, refMap[name], depID,
			); err != nil {
				return fmt.Errorf("pipeline: insert dependency %q -> %q: %w", dep, name, err)
			}
		}
	}
	return nil
}

// loadSteps reads the steps of one pipeline in their saved order and
// rebuilds DependsOnStepNames from the dependency rows.
func loadSteps(ctx context.Context, q querier, pipelineID int64) ([]pipeline.Step, error) {
	rows, err := q.Query(ctx,
		`SELECT name, data FROM pipeline_steps WHERE pipeline_id = $1 ORDER BY position_index`, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: query steps: %w", err)
	}
	defer rows.Close()

	steps := []pipeline.Step{}
	index := make(map[string]int)
	for rows.Next() {
		var (
			name string
			data []byte
		)
		if err := rows.Scan(&name, &data); err != nil {
			return nil, fmt.Errorf("pipeline: scan step: %w", err)
		}
		st, err := pipeline.DecodeStepData(name, data)
		if err != nil {
			return nil, err
		}
		index[name] = len(steps)
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: rows steps: %w", err)
	}

	deps, err := q.Query(ctx,
		`SELECT s.name, d.name
		 FROM pipeline_step_deps x
		 JOIN pipeline_steps s ON s.id = x.step_id
		 JOIN pipeline_steps d ON d.id = x.depends_on_step_id
		 WHERE x.pipeline_id = $1
		 ORDER BY s.position_index, d.name`, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: query dependencies: %w", err)
	}
	defer deps.Close()

	for deps.Next() {
		var step, dependsOn string
		if err := deps.Scan(&step, &dependsOn); err != nil {
			return nil, fmt.Errorf("pipeline: scan dependency: %w", err)
		}
		if i, ok := index[step]; ok {
			steps[i].DependsOnStepNames = append(steps[i].DependsOnStepNames, dependsOn)
		}
	}
	if err := deps.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: rows dependencies: %w", err)
	}

	return steps, nil
}
