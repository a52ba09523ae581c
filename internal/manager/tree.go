package manager

import "slices"

// Walk visits root and its descendants depth-first, parents before children.
// Returning false from visit skips the children of that node. Nil nodes are
// ignored. A tracked node whose ID already appears on the path from root is
// not visited, so node graphs that loop back through an ID terminate.
func Walk(root Node, visit func(n Node, depth int) bool) {
	walk(root, nil, visit)
}

func walk(n Node, path []ID, visit func(Node, int) bool) {
	if n == nil {
		return
	}
	id := n.ModelID()
	if id != "" && slices.Contains(path, id) {
		return
	}
	depth := len(path)
	if !visit(n, depth) {
		return
	}
	path = append(path, id)
	for child := range n.Children() {
		walk(child, path, visit)
	}
}

// TrackedIDs returns every tracked ID reachable from root in DFS order,
// without duplicates. Untracked nodes are traversed but not reported.
func TrackedIDs(root Node) []ID {
	var out []ID
	seen := make(map[ID]struct{})
	Walk(root, func(n Node, _ int) bool {
		if id := n.ModelID(); id != "" {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
		return true
	})
	return out
}

// trackedChildren returns the nearest tracked descendants of n: direct
// children with an ID, or the tracked descendants of untracked children.
func trackedChildren(n Node) []ID {
	var out []ID
	for child := range n.Children() {
		Walk(child, func(c Node, _ int) bool {
			if id := c.ModelID(); id != "" {
				out = append(out, id)
				return false
			}
			return true
		})
	}
	return out
}

// descendantIDs returns the tracked IDs strictly below n.
func descendantIDs(n Node) []ID {
	var out []ID
	for child := range n.Children() {
		out = append(out, TrackedIDs(child)...)
	}
	return out
}
