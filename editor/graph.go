// Package editor is the state engine of the pipeline graph editor.
//
// A Graph is the locally owned, editable form of a pipeline: steps wired
// together by session-local ClientIDs. It is changed only through Reduce,
// which keeps the dependency relation free of self-loops, cycles and
// dangling references after every action. Saving translates ClientIDs into
// the step names the backend keys dependencies by.
package editor

import (
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/meikuraledutech/pipeline"
)

// ClientID identifies a step for the lifetime of one editing session.
// It is never persisted.
type ClientID string

// IDGenerator mints ClientIDs. It must never return the same value twice
// within a session.
type IDGenerator func() ClientID

func newClientID() ClientID { return ClientID(uuid.NewString()) }

// Position is a canvas coordinate. It is presentation-only.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Step is one editable pipeline step.
// DependsOn holds the predecessors of the step and has set semantics.
type Step struct {
	ClientID        ClientID
	Name            string
	Description     string
	ScriptType      pipeline.ScriptType
	ScriptContent   string
	OutputDatasetID *int64
	InputDatasetIDs []int64
	DependsOn       []ClientID
	LoadStrategy    pipeline.LoadStrategy
	APIConfig       *pipeline.APIConfig
	APIConnectionID *int64
	Position        Position
}

// ValidationError is one field-level diagnostic. An empty StepID marks a
// graph-level error.
type ValidationError struct {
	StepID  ClientID `json:"stepId"`
	Field   string   `json:"field"`
	Message string   `json:"message"`
}

// Graph is the root aggregate owned by one editing session.
type Graph struct {
	PersistedID      *int64
	Name             string
	Description      string
	IsActive         bool
	Steps            []Step
	SelectedStepID   ClientID
	ValidationErrors []ValidationError
	Dirty            bool

	ids *idSource
}

// idSource is shared by every state derived from the same graph so that
// ClientIDs keep coming from one generator.
type idSource struct {
	gen IDGenerator
}

// Option configures a Graph created by New or Hydrate.
type Option func(*Graph)

// WithIDGenerator replaces the default UUID based ClientID generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(g *Graph) { g.ids = &idSource{gen: gen} }
}

// New returns an empty graph for a pipeline that has not been saved yet.
func New(opts ...Option) Graph {
	g := Graph{}
	for _, opt := range opts {
		opt(&g)
	}
	return g
}

// Hydrate builds an editable graph from a persisted pipeline. Every step gets
// a fresh ClientID and dependsOnStepNames are resolved against the trimmed
// step names. Names that resolve to nothing, self references and edges that
// would close a cycle are dropped.
func Hydrate(p *pipeline.Pipeline, opts ...Option) Graph {
	g := New(opts...)
	g.Name = p.Name
	g.Description = p.Description
	g.IsActive = p.IsActive
	if p.ID != 0 {
		id := p.ID
		g.PersistedID = &id
	}

	byName := make(map[string]ClientID, len(p.Steps))
	g.Steps = make([]Step, 0, len(p.Steps))
	for _, ps := range p.Steps {
		s := Step{
			ClientID:        g.mintID(),
			Name:            ps.Name,
			Description:     ps.Description,
			ScriptType:      ps.ScriptType,
			ScriptContent:   ps.ScriptContent,
			OutputDatasetID: cloneInt64(ps.OutputDatasetID),
			InputDatasetIDs: slices.Clone(ps.InputDatasetIDs),
			LoadStrategy:    ps.LoadStrategy,
			APIConfig:       cloneAPIConfig(ps.APIConfig),
			APIConnectionID: cloneInt64(ps.APIConnectionID),
		}
		if ps.Position != nil {
			s.Position = Position{X: ps.Position.X, Y: ps.Position.Y}
		}
		name := strings.TrimSpace(ps.Name)
		if _, taken := byName[name]; !taken {
			byName[name] = s.ClientID
		}
		g.Steps = append(g.Steps, s)
	}

	var edges []Edge
	for i, ps := range p.Steps {
		target := g.Steps[i].ClientID
		for _, depName := range ps.DependsOnStepNames {
			source, ok := byName[strings.TrimSpace(depName)]
			if !ok || WouldCreateCycle(edges, source, target) || slices.Contains(g.Steps[i].DependsOn, source) {
				continue
			}
			g.Steps[i].DependsOn = append(g.Steps[i].DependsOn, source)
			edges = append(edges, Edge{Source: source, Target: target})
		}
	}

	return g
}

// Step returns the step with the given ClientID.
func (g Graph) Step(id ClientID) (Step, bool) {
	if i := g.indexOf(id); i >= 0 {
		return g.Steps[i], true
	}
	return Step{}, false
}

// Edges derives the dependency edges from the steps' DependsOn sets.
// Edges are returned in step order.
func (g Graph) Edges() []Edge {
	var edges []Edge
	for _, s := range g.Steps {
		for _, dep := range s.DependsOn {
			edges = append(edges, Edge{Source: dep, Target: s.ClientID})
		}
	}
	return edges
}

// StepIDs returns the ClientIDs of all steps in step order.
func (g Graph) StepIDs() []ClientID {
	ids := make([]ClientID, len(g.Steps))
	for i, s := range g.Steps {
		ids[i] = s.ClientID
	}
	return ids
}

// ErrorsFor returns the validation errors attached to one step.
func (g Graph) ErrorsFor(id ClientID) []ValidationError {
	var out []ValidationError
	for _, e := range g.ValidationErrors {
		if e.StepID == id {
			out = append(out, e)
		}
	}
	return out
}

func (g Graph) indexOf(id ClientID) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(g.Steps, func(s Step) bool { return s.ClientID == id })
}

func (g *Graph) mintID() ClientID {
	gen := IDGenerator(newClientID)
	if g.ids != nil && g.ids.gen != nil {
		gen = g.ids.gen
	}
	for {
		id := gen()
		if id != "" && g.indexOf(id) < 0 {
			return id
		}
	}
}

// clone returns a deep copy so that Reduce never aliases the previous state.
func (g Graph) clone() Graph {
	next := g
	next.PersistedID = cloneInt64(g.PersistedID)
	if g.Steps != nil {
		next.Steps = make([]Step, len(g.Steps))
		for i, s := range g.Steps {
			next.Steps[i] = s.clone()
		}
	}
	next.ValidationErrors = slices.Clone(g.ValidationErrors)
	return next
}

func (s Step) clone() Step {
	s.OutputDatasetID = cloneInt64(s.OutputDatasetID)
	s.InputDatasetIDs = slices.Clone(s.InputDatasetIDs)
	s.DependsOn = slices.Clone(s.DependsOn)
	s.APIConfig = cloneAPIConfig(s.APIConfig)
	s.APIConnectionID = cloneInt64(s.APIConnectionID)
	return s
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneAPIConfig(c *pipeline.APIConfig) *pipeline.APIConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.Headers = maps.Clone(c.Headers)
	return &out
}
