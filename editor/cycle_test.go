package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWouldCreateCycle(t *testing.T) {
	// a -> b -> c, a -> d
	edges := []Edge{
		{Source: "a", Target: "b"},
		{Source: "b", Target: "c"},
		{Source: "a", Target: "d"},
	}

	tests := []struct {
		name           string
		source, target ClientID
		want           bool
	}{
		{"self loop", "a", "a", true},
		{"direct back edge", "b", "a", true},
		{"transitive back edge", "c", "a", true},
		{"closes two step loop", "c", "b", true},
		{"forward shortcut", "a", "c", false},
		{"across branches", "d", "c", false},
		{"other direction across branches", "c", "d", false},
		{"new node", "x", "a", false},
		{"existing edge again", "a", "b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WouldCreateCycle(edges, tt.source, tt.target))
		})
	}
}

func TestWouldCreateCycle_EmptyGraph(t *testing.T) {
	assert.False(t, WouldCreateCycle(nil, "a", "b"))
	assert.True(t, WouldCreateCycle(nil, "a", "a"))
}

func TestWouldCreateCycle_DiamondTerminates(t *testing.T) {
	// Every node reachable through two paths; the visited set keeps the
	// search linear.
	var edges []Edge
	layers := [][]ClientID{{"a"}, {"b1", "b2"}, {"c1", "c2"}, {"d"}}
	for i := 0; i < len(layers)-1; i++ {
		for _, from := range layers[i] {
			for _, to := range layers[i+1] {
				edges = append(edges, Edge{Source: from, Target: to})
			}
		}
	}

	assert.True(t, WouldCreateCycle(edges, "d", "a"))
	assert.False(t, WouldCreateCycle(edges, "b1", "b2"))
	assert.False(t, WouldCreateCycle(edges, "a", "d"))
}
