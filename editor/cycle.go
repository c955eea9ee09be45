package editor

// Edge is a dependency edge: Target depends on Source.
type Edge struct {
	Source ClientID
	Target ClientID
}

// WouldCreateCycle reports whether adding source->target to edges would make
// the dependency graph cyclic. That happens exactly when source == target or
// source is already reachable from target, since the reaching path plus the
// new edge closes a loop.
//
// The search is a visited-set BFS from target along forward edges, O(V+E).
func WouldCreateCycle(edges []Edge, source, target ClientID) bool {
	if source == target {
		return true
	}

	adj := make(map[ClientID][]ClientID)
	for _, e := range edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	visited := map[ClientID]bool{target: true}
	queue := []ClientID{target}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		for _, next := range adj[curr] {
			if next == source {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}
