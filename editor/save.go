package editor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/meikuraledutech/pipeline"
)

var (
	// ErrInvalidPersistedID is returned when a graph claims to be persisted
	// under an id no backend could have issued.
	ErrInvalidPersistedID = errors.New("editor: invalid persisted pipeline id")

	// ErrSaveInProgress is returned by Session.Save while another save runs.
	ErrSaveInProgress = errors.New("editor: save already in progress")

	// ErrReadOnly is returned by Session.Save on a read-only session.
	ErrReadOnly = errors.New("editor: session is read-only")
)

// ValidationFailedError aborts a save whose graph did not pass Validate.
type ValidationFailedError struct {
	Errors []ValidationError
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("editor: validation failed with %d error(s)", len(e.Errors))
}

// Backend persists pipeline definitions. pipeline.Store implementations
// satisfy it.
type Backend interface {
	CreatePipeline(ctx context.Context, p *pipeline.Pipeline) (int64, error)
	UpdatePipeline(ctx context.Context, id int64, p *pipeline.Pipeline) error
}

// Saver validates a graph, reconciles it into the persisted representation
// and writes it through a Backend.
type Saver struct {
	Backend Backend
	// Logger defaults to the logger carried by the context.
	Logger *log.Logger
}

// NewSaver returns a Saver writing to b.
func NewSaver(b Backend) *Saver {
	return &Saver{Backend: b}
}

// Save persists g and returns the saved state: PersistedID set on first
// save, Dirty cleared and validation errors reset.
//
// When validation fails, the returned graph carries the errors and the
// error is a *ValidationFailedError; the backend is not called. When the
// backend fails, g is returned untouched so the user can retry.
func (s *Saver) Save(ctx context.Context, g Graph) (Graph, error) {
	done, err := s.save(ctx, g)
	var vErr *ValidationFailedError
	switch {
	case errors.As(err, &vErr):
		return Reduce(g, SetValidationErrors{Errors: vErr.Errors}), err
	case err != nil:
		return g, err
	}
	g = Reduce(g, SetValidationErrors{})
	return Reduce(g, done), nil
}

// save runs the protocol and returns the MarkSaved action to apply.
func (s *Saver) save(ctx context.Context, g Graph) (MarkSaved, error) {
	logger := s.Logger
	if logger == nil {
		logger = log.FromContext(ctx)
	}

	if g.PersistedID != nil && *g.PersistedID <= 0 {
		return MarkSaved{}, fmt.Errorf("%w: %d", ErrInvalidPersistedID, *g.PersistedID)
	}

	if errs := Validate(g); len(errs) > 0 {
		logger.Debug("pipeline validation failed", "errors", len(errs))
		return MarkSaved{}, &ValidationFailedError{Errors: errs}
	}

	p, err := ToPipeline(g)
	if err != nil {
		return MarkSaved{}, err
	}

	if g.PersistedID == nil {
		id, err := s.Backend.CreatePipeline(ctx, p)
		if err != nil {
			logger.Error("create pipeline failed", "name", p.Name, "err", err)
			return MarkSaved{}, fmt.Errorf("editor: create pipeline: %w", err)
		}
		if id <= 0 {
			return MarkSaved{}, fmt.Errorf("%w: backend returned %d", ErrInvalidPersistedID, id)
		}
		logger.Debug("pipeline created", "id", id, "steps", len(p.Steps))
		return MarkSaved{PersistedID: &id}, nil
	}

	id := *g.PersistedID
	if err := s.Backend.UpdatePipeline(ctx, id, p); err != nil {
		logger.Error("update pipeline failed", "id", id, "err", err)
		return MarkSaved{}, fmt.Errorf("editor: update pipeline %d: %w", id, err)
	}
	logger.Debug("pipeline updated", "id", id, "steps", len(p.Steps))
	return MarkSaved{}, nil
}

// ToPipeline reconciles g into the persisted representation. Each step's
// DependsOn ClientIDs are resolved to trimmed step names; this is the only
// place where session-local identity is translated into the backend's
// name-keyed form. Names are sorted for a stable payload.
func ToPipeline(g Graph) (*pipeline.Pipeline, error) {
	names := make(map[ClientID]string, len(g.Steps))
	for _, s := range g.Steps {
		names[s.ClientID] = strings.TrimSpace(s.Name)
	}

	p := &pipeline.Pipeline{
		Name:        strings.TrimSpace(g.Name),
		Description: g.Description,
		IsActive:    g.IsActive,
		Steps:       make([]pipeline.Step, 0, len(g.Steps)),
	}
	if g.PersistedID != nil {
		p.ID = *g.PersistedID
	}

	for _, s := range g.Steps {
		deps := make([]string, 0, len(s.DependsOn))
		for _, id := range s.DependsOn {
			name, ok := names[id]
			if !ok {
				return nil, fmt.Errorf("editor: step %q depends on unknown client id %q", names[s.ClientID], id)
			}
			deps = append(deps, name)
		}
		slices.Sort(deps)

		inputs := slices.Clone(s.InputDatasetIDs)
		if inputs == nil {
			inputs = []int64{}
		}

		p.Steps = append(p.Steps, pipeline.Step{
			Name:               names[s.ClientID],
			Description:        s.Description,
			ScriptType:         s.ScriptType,
			ScriptContent:      s.ScriptContent,
			OutputDatasetID:    cloneInt64(s.OutputDatasetID),
			InputDatasetIDs:    inputs,
			DependsOnStepNames: deps,
			LoadStrategy:       s.LoadStrategy,
			APIConfig:          cloneAPIConfig(s.APIConfig),
			APIConnectionID:    cloneInt64(s.APIConnectionID),
			Position:           &pipeline.Position{X: s.Position.X, Y: s.Position.Y},
		})
	}

	return p, nil
}
