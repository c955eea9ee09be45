package pipeline

import (
	"fmt"
	"strings"
)

// ValidateDefinition checks the structural rules every store enforces before
// persisting: a non-empty pipeline name, unique non-empty trimmed step names,
// dependencies that resolve to a step of the same pipeline, and no cycles.
func ValidateDefinition(p *Pipeline) error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyPipelineName
	}

	names := make(map[string]int, len(p.Steps))
	for i, s := range p.Steps {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return fmt.Errorf("steps[%d]: %w", i, ErrEmptyStepName)
		}
		if _, exists := names[name]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateStepName, name)
		}
		names[name] = i
	}

	for _, s := range p.Steps {
		for _, dep := range s.DependsOnStepNames {
			if _, ok := names[strings.TrimSpace(dep)]; !ok {
				return fmt.Errorf("%w: %q depends on %q", ErrUnknownDependency, strings.TrimSpace(s.Name), dep)
			}
		}
	}

	return validateAcyclic(p.Steps)
}

// validateAcyclic checks that the dependency edges don't form a cycle using DFS.
// Edges run from a dependency to its dependent.
func validateAcyclic(steps []Step) error {
	adj := make(map[string][]string)
	for _, s := range steps {
		to := strings.TrimSpace(s.Name)
		for _, dep := range s.DependsOnStepNames {
			from := strings.TrimSpace(dep)
			adj[from] = append(adj[from], to)
		}
	}

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)

	state := make(map[string]int, len(steps))

	var dfs func(name string) bool
	dfs = func(name string) bool {
		state[name] = visiting
		for _, next := range adj[name] {
			switch state[next] {
			case visiting:
				return true
			case unvisited:
				if dfs(next) {
					return true
				}
			}
		}
		state[name] = visited
		return false
	}

	for _, s := range steps {
		name := strings.TrimSpace(s.Name)
		if state[name] == unvisited {
			if dfs(name) {
				return ErrCycleDetected
			}
		}
	}

	return nil
}
