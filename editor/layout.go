package editor

import (
	"fmt"
	"strings"
)

// Orientation defines the primary direction of flow.
type Orientation int

const (
	// Horizontal: ranks flow left-to-right (X increases with rank).
	Horizontal Orientation = iota
	// Vertical: ranks flow top-to-bottom (Y increases with rank).
	Vertical
)

func (o Orientation) String() string {
	if o == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// MarshalText implements encoding.TextMarshaler.
func (o Orientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText accepts "horizontal" or "vertical" (also "LR" and "TB").
func (o *Orientation) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "horizontal", "lr", "":
		*o = Horizontal
	case "vertical", "tb":
		*o = Vertical
	default:
		return fmt.Errorf("editor: unknown orientation %q", text)
	}
	return nil
}

// LayoutConfig holds the fixed dimensions used by Layout.
type LayoutConfig struct {
	Orientation Orientation `yaml:"orientation" toml:"orientation"`

	// NodeWidth and NodeHeight are the drawn size of every node.
	NodeWidth  float64 `yaml:"node_width" toml:"node_width"`
	NodeHeight float64 `yaml:"node_height" toml:"node_height"`

	// RankSpacing is the gap between consecutive ranks along the primary axis.
	RankSpacing float64 `yaml:"rank_spacing" toml:"rank_spacing"`

	// NodeSpacing is the gap between nodes of the same rank along the secondary axis.
	NodeSpacing float64 `yaml:"node_spacing" toml:"node_spacing"`

	StartX float64 `yaml:"start_x" toml:"start_x"`
	StartY float64 `yaml:"start_y" toml:"start_y"`
}

// DefaultLayoutConfig returns a left-to-right layout sized for step cards.
func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		Orientation: Horizontal,
		NodeWidth:   220,
		NodeHeight:  80,
		RankSpacing: 100,
		NodeSpacing: 40,
	}
}

// withDefaults fills in a zero config.
func (c LayoutConfig) withDefaults() LayoutConfig {
	if c.NodeWidth <= 0 && c.NodeHeight <= 0 && c.RankSpacing <= 0 && c.NodeSpacing <= 0 {
		d := DefaultLayoutConfig()
		d.Orientation = c.Orientation
		d.StartX, d.StartY = c.StartX, c.StartY
		return d
	}
	return c
}

// rankStep is the distance between the origins of consecutive ranks.
func (c LayoutConfig) rankStep() float64 {
	if c.Orientation == Vertical {
		return c.NodeHeight + c.RankSpacing
	}
	return c.NodeWidth + c.RankSpacing
}

// nodeStep is the distance between the origins of neighbours within a rank.
func (c LayoutConfig) nodeStep() float64 {
	if c.Orientation == Vertical {
		return c.NodeWidth + c.NodeSpacing
	}
	return c.NodeHeight + c.NodeSpacing
}

// Ranks assigns every node the length of the longest path from a source
// node to it, so every edge points from a strictly lower to a strictly
// higher rank. Nodes without edges get rank 0. Edges that mention unknown
// nodes are ignored.
//
// Ranks runs Kahn's algorithm in O(V+E). It assumes the edges are acyclic;
// nodes on a cycle keep the highest rank reached before the cycle.
func Ranks(nodes []ClientID, edges []Edge) map[ClientID]int {
	known := make(map[ClientID]bool, len(nodes))
	for _, n := range nodes {
		known[n] = true
	}

	inDegree := make(map[ClientID]int, len(nodes))
	children := make(map[ClientID][]ClientID, len(nodes))
	for _, e := range edges {
		if !known[e.Source] || !known[e.Target] {
			continue
		}
		children[e.Source] = append(children[e.Source], e.Target)
		inDegree[e.Target]++
	}

	ranks := make(map[ClientID]int, len(nodes))
	queue := make([]ClientID, 0, len(nodes))
	for _, n := range nodes {
		ranks[n] = 0
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		for _, child := range children[curr] {
			if rank := ranks[curr] + 1; rank > ranks[child] {
				ranks[child] = rank
			}
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	return ranks
}

// Layout assigns every node a position using a layered drawing: ranks from
// Ranks are laid out along the primary axis and the nodes of one rank are
// stacked along the secondary axis in input order, centred on the widest
// rank. The result depends only on the inputs, so calling Layout twice with
// the same nodes and edges yields the same positions.
func Layout(nodes []ClientID, edges []Edge, cfg LayoutConfig) map[ClientID]Position {
	cfg = cfg.withDefaults()
	ranks := Ranks(nodes, edges)

	layers := make(map[int][]ClientID)
	widest := 0
	for _, n := range nodes {
		r := ranks[n]
		layers[r] = append(layers[r], n)
		if len(layers[r]) > widest {
			widest = len(layers[r])
		}
	}

	rankStep, nodeStep := cfg.rankStep(), cfg.nodeStep()
	positions := make(map[ClientID]Position, len(nodes))
	for r, layer := range layers {
		offset := float64(widest-len(layer)) * nodeStep / 2
		for i, n := range layer {
			primary := float64(r) * rankStep
			secondary := offset + float64(i)*nodeStep
			if cfg.Orientation == Vertical {
				positions[n] = Position{X: cfg.StartX + secondary, Y: cfg.StartY + primary}
			} else {
				positions[n] = Position{X: cfg.StartX + primary, Y: cfg.StartY + secondary}
			}
		}
	}
	return positions
}
