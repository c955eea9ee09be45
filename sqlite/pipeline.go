package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meikuraledutech/pipeline"
)

const selectPipeline = `SELECT id, name, description, is_active, fingerprint, created_by, created_at, updated_by, updated_at FROM pipelines`

// CreatePipeline saves a pipeline and all of its steps in one transaction.
// On success p.ID and p.Fingerprint are filled in.
func (s *Store) CreatePipeline(ctx context.Context, p *pipeline.Pipeline) (int64, error) {
	if err := pipeline.ValidateDefinition(p); err != nil {
		return 0, err
	}
	fp, err := pipeline.Fingerprint(p)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("pipeline: begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO pipelines (name, description, is_active, fingerprint, created_by, created_at, updated_by, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(p.Name), p.Description, p.IsActive, fp, p.CreatedBy, now, p.CreatedBy, now,
	)
	if err != nil {
		return 0, fmt.Errorf("pipeline: insert pipeline: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("pipeline: insert pipeline: %w", err)
	}

	if err := insertSteps(ctx, tx, id, p.Steps); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("pipeline: commit: %w", err)
	}

	p.ID = id
	p.Fingerprint = fp
	return id, nil
}

// GetPipeline retrieves a pipeline with its steps.
// Returns nil, nil if the pipeline doesn't exist.
func (s *Store) GetPipeline(ctx context.Context, id int64) (*pipeline.Pipeline, error) {
	p, err := scanPipeline(s.db.QueryRowContext(ctx, selectPipeline+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("pipeline: get pipeline: %w", err)
	}

	p.Steps, err = s.loadSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdatePipeline replaces the definition of an existing pipeline.
// Returns ErrPipelineNotFound if id doesn't exist.
func (s *Store) UpdatePipeline(ctx context.Context, id int64, p *pipeline.Pipeline) error {
	if err := pipeline.ValidateDefinition(p); err != nil {
		return err
	}
	fp, err := pipeline.Fingerprint(p)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pipeline: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE pipelines
		 SET name = ?, description = ?, is_active = ?, fingerprint = ?, updated_by = ?, updated_at = ?
		 WHERE id = ?`,
		strings.TrimSpace(p.Name), p.Description, p.IsActive, fp, p.UpdatedBy,
		time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("pipeline: update pipeline: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("pipeline: update pipeline: %w", err)
	} else if n == 0 {
		return pipeline.ErrPipelineNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pipeline_steps WHERE pipeline_id = ?`, id); err != nil {
		return fmt.Errorf("pipeline: delete steps: %w", err)
	}
	if err := insertSteps(ctx, tx, id, p.Steps); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pipeline: commit: %w", err)
	}

	p.ID = id
	p.Fingerprint = fp
	return nil
}

// DeletePipeline removes a pipeline with its steps.
// No error if the pipeline doesn't exist.
func (s *Store) DeletePipeline(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pipelines WHERE id = ?`, id); err != nil {
		return fmt.Errorf("pipeline: delete pipeline: %w", err)
	}
	return nil
}

// ListPipelines returns all pipelines with their steps, ordered by id.
func (s *Store) ListPipelines(ctx context.Context) ([]pipeline.Pipeline, error) {
	rows, err := s.db.QueryContext(ctx, selectPipeline+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("pipeline: query pipelines: %w", err)
	}

	list := []pipeline.Pipeline{}
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("pipeline: scan pipeline: %w", err)
		}
		list = append(list, *p)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("pipeline: rows pipelines: %w", err)
	}
	_ = rows.Close()

	for i := range list {
		list[i].Steps, err = s.loadSteps(ctx, list[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return list, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPipeline(row rowScanner) (*pipeline.Pipeline, error) {
	var (
		p                    pipeline.Pipeline
		createdAt, updatedAt string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.IsActive, &p.Fingerprint,
		&p.CreatedBy, &createdAt, &p.UpdatedBy, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &p, nil
}

func insertSteps(ctx context.Context, tx *sql.Tx, pipelineID int64, steps []pipeline.Step) error {
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
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pipeline_steps (id, pipeline_id, position_index, name, data) VALUES (?, ?, ?, ?, ?)`,
			refMap[name], pipelineID, i, name, string(data),
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
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO pipeline_step_deps (pipeline_id, step_id, depends_on_step_id) VALUES (?, ?, ?)`,
				pipelineID, refMap[name], depID,
			); err != nil {
				return fmt.Errorf("pipeline: insert dependency %q -> %q: %w", dep, name, err)
			}
		}
	}
	return nil
}

// loadSteps reads one pipeline's steps in saved order. Each result set is
// drained before the next query since the pool holds a single connection.
func (s *Store) loadSteps(ctx context.Context, pipelineID int64) ([]pipeline.Step, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, data FROM pipeline_steps WHERE pipeline_id = ? ORDER BY position_index`, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: query steps: %w", err)
	}

	steps := []pipeline.Step{}
	index := make(map[string]int)
	for rows.Next() {
		var name, data string
		if err := rows.Scan(&name, &data); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("pipeline: scan step: %w", err)
		}
		st, err := pipeline.DecodeStepData(name, []byte(data))
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		index[name] = len(steps)
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("pipeline: rows steps: %w", err)
	}
	_ = rows.Close()

	deps, err := s.db.QueryContext(ctx,
		`SELECT s.name, d.name
		 FROM pipeline_step_deps x
		 JOIN pipeline_steps s ON s.id = x.step_id
		 JOIN pipeline_steps d ON d.id = x.depends_on_step_id
		 WHERE x.pipeline_id = ?
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
