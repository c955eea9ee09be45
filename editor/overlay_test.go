package editor

import (
	"testing"

	"github.com/meikuraledutech/pipeline"
	"github.com/stretchr/testify/assert"
)

func TestAnnotate(t *testing.T) {
	g, ids := buildGraph("extract", "load", "report")
	g = Reduce(g, AddEdge{SourceID: ids[0], TargetID: ids[1]})
	rows := int64(120)

	overlay := pipeline.ExecutionOverlay{
		"extract": {Status: "SUCCESS", OutputRows: &rows},
		" load ":  {Status: "RUNNING"},
		"ghost":   {Status: "FAILED"},
	}

	got := Annotate(g, overlay)

	assert.Len(t, got, 2)
	assert.Equal(t, "SUCCESS", got[ids[0]].Status)
	assert.Equal(t, &rows, got[ids[0]].OutputRows)
	assert.Equal(t, "RUNNING", got[ids[1]].Status)
	assert.NotContains(t, got, ids[2])

	edges := g.Edges()
	assert.Equal(t, "SUCCESS", EdgeStatus(got, edges[0]))
	assert.Equal(t, "", EdgeStatus(got, Edge{Source: ids[2], Target: ids[0]}))
}

func TestAnnotate_Empty(t *testing.T) {
	g, _ := buildGraph("a")
	assert.Empty(t, Annotate(g, nil))
}
