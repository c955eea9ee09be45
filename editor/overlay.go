package editor

import (
	"strings"

	"github.com/meikuraledutech/pipeline"
)

// Annotate maps an execution overlay, keyed by step name, onto the steps of
// g. Steps without an entry are absent from the result. The graph is not
// changed.
func Annotate(g Graph, overlay pipeline.ExecutionOverlay) map[ClientID]pipeline.StepStatus {
	out := make(map[ClientID]pipeline.StepStatus, len(overlay))
	if len(overlay) == 0 {
		return out
	}

	byName := make(map[string]pipeline.StepStatus, len(overlay))
	for name, st := range overlay {
		byName[strings.TrimSpace(name)] = st
	}
	for _, s := range g.Steps {
		if st, ok := byName[strings.TrimSpace(s.Name)]; ok {
			out[s.ClientID] = st
		}
	}
	return out
}

// EdgeStatus returns the status to draw on an edge during execution
// viewing: the status of the edge's source step, or "" when unknown.
func EdgeStatus(annotations map[ClientID]pipeline.StepStatus, e Edge) string {
	return annotations[e.Source].Status
}
