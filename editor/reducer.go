package editor

import (
	"slices"

	"github.com/meikuraledutech/pipeline"
)

// Action is one edit of a Graph. The set of actions is closed: every
// implementation lives in this file and is handled by Reduce.
type Action interface {
	action()
}

// SetMeta merges pipeline metadata. Nil fields are left unchanged.
type SetMeta struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// AddStep creates an empty step at Position and selects it.
type AddStep struct {
	Position Position
}

// AddStepAfter creates a step that depends on SourceID, placed one rank
// after it.
type AddStepAfter struct {
	SourceID ClientID
}

// InsertStepBetween splices a new step into the existing edge
// SourceID -> TargetID.
type InsertStepBetween struct {
	SourceID ClientID
	TargetID ClientID
}

// RemoveStep deletes a step and every edge touching it. Predecessors and
// successors of the removed step are not reconnected.
type RemoveStep struct {
	StepID ClientID
}

// UpdateStep shallow-merges Changes into a step.
type UpdateStep struct {
	StepID  ClientID
	Changes StepChanges
}

// StepChanges lists the editable step fields. Nil fields are left unchanged.
// The Clear* flags reset optional references to nil.
type StepChanges struct {
	Name            *string
	Description     *string
	ScriptType      *pipeline.ScriptType
	ScriptContent   *string
	OutputDatasetID *int64
	InputDatasetIDs []int64
	LoadStrategy    *pipeline.LoadStrategy
	APIConfig       *pipeline.APIConfig
	APIConnectionID *int64

	ClearOutputDataset bool
	ClearInputDatasets bool
	ClearAPIConfig     bool
	ClearAPIConnection bool
}

// UpdateNodePosition moves a step on the canvas.
type UpdateNodePosition struct {
	StepID   ClientID
	Position Position
}

// AddEdge makes TargetID depend on SourceID.
type AddEdge struct {
	SourceID ClientID
	TargetID ClientID
}

// RemoveEdge drops the dependency of TargetID on SourceID.
type RemoveEdge struct {
	SourceID ClientID
	TargetID ClientID
}

// SelectStep moves UI focus. An empty StepID clears the selection.
type SelectStep struct {
	StepID ClientID
}

// AutoLayout recomputes every step position. A zero Config uses
// DefaultLayoutConfig.
type AutoLayout struct {
	Config LayoutConfig
}

// SetValidationErrors replaces the validation errors wholesale.
type SetValidationErrors struct {
	Errors []ValidationError
}

// MarkSaved records a successful save. PersistedID is set on the first save
// of a new pipeline.
type MarkSaved struct {
	PersistedID *int64
}

func (SetMeta) action()             {}
func (AddStep) action()             {}
func (AddStepAfter) action()        {}
func (InsertStepBetween) action()   {}
func (RemoveStep) action()          {}
func (UpdateStep) action()          {}
func (UpdateNodePosition) action()  {}
func (AddEdge) action()             {}
func (RemoveEdge) action()          {}
func (SelectStep) action()          {}
func (AutoLayout) action()          {}
func (SetValidationErrors) action() {}
func (MarkSaved) action()           {}

// IsMutating reports whether a changes the pipeline content and so is
// refused while the graph is read-only.
func IsMutating(a Action) bool {
	switch a.(type) {
	case SelectStep, SetValidationErrors:
		return false
	}
	return true
}

// Reduce applies a to g and returns the next state. g itself is never
// modified. Actions that are structurally impossible (unknown steps, a
// missing edge, an edge that would close a cycle) return g unchanged.
func Reduce(g Graph, a Action) Graph {
	switch a := a.(type) {
	case SetMeta:
		next := g.clone()
		if a.Name != nil {
			next.Name = *a.Name
		}
		if a.Description != nil {
			next.Description = *a.Description
		}
		if a.IsActive != nil {
			next.IsActive = *a.IsActive
		}
		next.Dirty = true
		return next

	case AddStep:
		next := g.clone()
		s := next.newStep(a.Position)
		next.Steps = append(next.Steps, s)
		next.SelectedStepID = s.ClientID
		next.Dirty = true
		return next

	case AddStepAfter:
		src := g.indexOf(a.SourceID)
		if src < 0 {
			return g
		}
		next := g.clone()
		pos := next.Steps[src].Position
		cfg := DefaultLayoutConfig()
		pos.X += cfg.rankStep()
		s := next.newStep(pos)
		s.DependsOn = []ClientID{a.SourceID}
		next.Steps = append(next.Steps, s)
		next.SelectedStepID = s.ClientID
		next.Dirty = true
		return next

	case InsertStepBetween:
		src, dst := g.indexOf(a.SourceID), g.indexOf(a.TargetID)
		if src < 0 || dst < 0 || !slices.Contains(g.Steps[dst].DependsOn, a.SourceID) {
			return g
		}
		next := g.clone()
		from, to := next.Steps[src].Position, next.Steps[dst].Position
		s := next.newStep(Position{X: (from.X + to.X) / 2, Y: (from.Y + to.Y) / 2})
		s.DependsOn = []ClientID{a.SourceID}
		target := &next.Steps[dst]
		target.DependsOn = replaceID(target.DependsOn, a.SourceID, s.ClientID)
		next.Steps = append(next.Steps, s)
		next.SelectedStepID = s.ClientID
		next.Dirty = true
		return next

	case RemoveStep:
		idx := g.indexOf(a.StepID)
		if idx < 0 {
			return g
		}
		next := g.clone()
		next.Steps = slices.Delete(next.Steps, idx, idx+1)
		// O(steps) scan: dependencies are stored on the dependents.
		for i := range next.Steps {
			next.Steps[i].DependsOn = removeID(next.Steps[i].DependsOn, a.StepID)
		}
		if next.SelectedStepID == a.StepID {
			next.SelectedStepID = ""
		}
		next.Dirty = true
		return next

	case UpdateStep:
		idx := g.indexOf(a.StepID)
		if idx < 0 {
			return g
		}
		next := g.clone()
		next.Steps[idx].apply(a.Changes)
		next.Dirty = true
		return next

	case UpdateNodePosition:
		idx := g.indexOf(a.StepID)
		if idx < 0 {
			return g
		}
		next := g.clone()
		next.Steps[idx].Position = a.Position
		next.Dirty = true
		return next

	case AddEdge:
		src, dst := g.indexOf(a.SourceID), g.indexOf(a.TargetID)
		if src < 0 || dst < 0 || slices.Contains(g.Steps[dst].DependsOn, a.SourceID) {
			return g
		}
		if WouldCreateCycle(g.Edges(), a.SourceID, a.TargetID) {
			return g
		}
		next := g.clone()
		next.Steps[dst].DependsOn = append(next.Steps[dst].DependsOn, a.SourceID)
		next.Dirty = true
		return next

	case RemoveEdge:
		dst := g.indexOf(a.TargetID)
		if dst < 0 || !slices.Contains(g.Steps[dst].DependsOn, a.SourceID) {
			return g
		}
		next := g.clone()
		next.Steps[dst].DependsOn = removeID(next.Steps[dst].DependsOn, a.SourceID)
		next.Dirty = true
		return next

	case SelectStep:
		if a.StepID != "" && g.indexOf(a.StepID) < 0 {
			return g
		}
		next := g.clone()
		next.SelectedStepID = a.StepID
		return next

	case AutoLayout:
		next := g.clone()
		positions := Layout(next.StepIDs(), next.Edges(), a.Config)
		for i := range next.Steps {
			next.Steps[i].Position = positions[next.Steps[i].ClientID]
		}
		next.Dirty = true
		return next

	case SetValidationErrors:
		next := g.clone()
		next.ValidationErrors = slices.Clone(a.Errors)
		return next

	case MarkSaved:
		next := g.clone()
		if a.PersistedID != nil {
			next.PersistedID = cloneInt64(a.PersistedID)
		}
		next.Dirty = false
		return next
	}
	return g
}

// newStep returns an empty SQL step with a fresh ClientID.
func (g *Graph) newStep(pos Position) Step {
	return Step{
		ClientID:   g.mintID(),
		ScriptType: pipeline.ScriptSQL,
		Position:   pos,
	}
}

func (s *Step) apply(c StepChanges) {
	if c.Name != nil {
		s.Name = *c.Name
	}
	if c.Description != nil {
		s.Description = *c.Description
	}
	if c.ScriptType != nil {
		s.ScriptType = *c.ScriptType
	}
	if c.ScriptContent != nil {
		s.ScriptContent = *c.ScriptContent
	}
	if c.OutputDatasetID != nil {
		s.OutputDatasetID = cloneInt64(c.OutputDatasetID)
	}
	if c.ClearOutputDataset {
		s.OutputDatasetID = nil
	}
	if c.InputDatasetIDs != nil {
		s.InputDatasetIDs = dedupe(c.InputDatasetIDs)
	}
	if c.ClearInputDatasets {
		s.InputDatasetIDs = nil
	}
	if c.LoadStrategy != nil {
		s.LoadStrategy = *c.LoadStrategy
	}
	if c.APIConfig != nil {
		s.APIConfig = cloneAPIConfig(c.APIConfig)
	}
	if c.ClearAPIConfig {
		s.APIConfig = nil
	}
	if c.APIConnectionID != nil {
		s.APIConnectionID = cloneInt64(c.APIConnectionID)
	}
	if c.ClearAPIConnection {
		s.APIConnectionID = nil
	}
}

func removeID(ids []ClientID, id ClientID) []ClientID {
	return slices.DeleteFunc(ids, func(x ClientID) bool { return x == id })
}

func replaceID(ids []ClientID, old, replacement ClientID) []ClientID {
	out := make([]ClientID, 0, len(ids))
	for _, id := range ids {
		if id == old {
			id = replacement
		}
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func dedupe(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
