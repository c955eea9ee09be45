package editor

import (
	"fmt"

	"github.com/meikuraledutech/pipeline"
)

// seqIDs returns a deterministic generator yielding s1, s2, ...
func seqIDs() IDGenerator {
	n := 0
	return func() ClientID {
		n++
		return ClientID(fmt.Sprintf("s%d", n))
	}
}

func ptr[T any](v T) *T { return &v }

// buildGraph adds one valid SQL step per name and returns the graph with the
// ClientIDs in the same order as names.
func buildGraph(names ...string) (Graph, []ClientID) {
	g := New(WithIDGenerator(seqIDs()))
	g = Reduce(g, SetMeta{Name: ptr("etl")})
	ids := make([]ClientID, 0, len(names))
	for _, name := range names {
		g = Reduce(g, AddStep{})
		id := g.SelectedStepID
		g = Reduce(g, UpdateStep{StepID: id, Changes: StepChanges{
			Name:          ptr(name),
			ScriptType:    ptr(pipeline.ScriptSQL),
			ScriptContent: ptr("select 1"),
		}})
		ids = append(ids, id)
	}
	return g, ids
}

// isAcyclic checks the dependency relation with Kahn's algorithm,
// independently of WouldCreateCycle.
func isAcyclic(g Graph) bool {
	inDegree := make(map[ClientID]int, len(g.Steps))
	children := make(map[ClientID][]ClientID)
	for _, s := range g.Steps {
		inDegree[s.ClientID] += len(s.DependsOn)
		for _, dep := range s.DependsOn {
			children[dep] = append(children[dep], s.ClientID)
		}
	}
	var queue []ClientID
	for _, s := range g.Steps {
		if inDegree[s.ClientID] == 0 {
			queue = append(queue, s.ClientID)
		}
	}
	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		for _, c := range children[n] {
			inDegree[c]--
			if inDegree[c] == 0 {
				queue = append(queue, c)
			}
		}
	}
	return visited == len(g.Steps)
}
