package manager

import "slices"

// store keeps the latest merged node per ID plus a parent index built from the
// stored nodes, used to reach listeners registered on ancestors. It is only
// touched from the mutation queue goroutine.
type store struct {
	nodes    map[ID]Node
	children map[ID][]ID
	parents  map[ID]map[ID]struct{}
}

func newStore() *store {
	return &store{
		nodes:    make(map[ID]Node),
		children: make(map[ID][]ID),
		parents:  make(map[ID]map[ID]struct{}),
	}
}

func (s *store) get(id ID) (Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

func (s *store) put(id ID, n Node) {
	s.unlinkChildren(id)
	s.nodes[id] = n
	kids := trackedChildren(n)
	s.children[id] = kids
	for _, c := range kids {
		ps := s.parents[c]
		if ps == nil {
			ps = make(map[ID]struct{})
			s.parents[c] = ps
		}
		ps[id] = struct{}{}
	}
}

// remove forgets id. Links from stored parents to id are kept: those parents
// still reference id until they are updated themselves.
func (s *store) remove(id ID) {
	s.unlinkChildren(id)
	delete(s.nodes, id)
}

func (s *store) unlinkChildren(id ID) {
	for _, c := range s.children[id] {
		if ps := s.parents[c]; ps != nil {
			delete(ps, id)
			if len(ps) == 0 {
				delete(s.parents, c)
			}
		}
	}
	delete(s.children, id)
}

// ancestors returns every ID above id in the parent index, nearest first.
// Cycles are tolerated.
func (s *store) ancestors(id ID) []ID {
	var out []ID
	seen := map[ID]struct{}{id: {}}
	frontier := []ID{id}
	for len(frontier) > 0 {
		var next []ID
		for _, cur := range frontier {
			for p := range s.parents[cur] {
				if _, ok := seen[p]; ok {
					continue
				}
				seen[p] = struct{}{}
				out = append(out, p)
				next = append(next, p)
			}
		}
		frontier = next
	}
	return out
}

// view returns the node stored for id with every tracked descendant replaced
// by its own stored view. Tracked descendants that are no longer stored are
// left out, so a deleted child disappears from its parents.
func (s *store) view(id ID) (Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return s.resolve(n, []ID{id}), true
}

func (s *store) resolve(n Node, path []ID) Node {
	c, ok := n.(Composer)
	if !ok {
		return n
	}
	var (
		kids    []Node
		hasKids bool
	)
	for child := range n.Children() {
		hasKids = true
		id := child.ModelID()
		switch {
		case id == "":
			kids = append(kids, s.resolve(child, path))
		case slices.Contains(path, id):
			// Stored state loops back to an ancestor of this view.
			kids = append(kids, child)
		default:
			if stored, ok := s.nodes[id]; ok {
				kids = append(kids, s.resolve(stored, append(path, id)))
			}
		}
	}
	if !hasKids {
		return n
	}
	return c.WithChildren(kids)
}

func (s *store) len() int { return len(s.nodes) }
