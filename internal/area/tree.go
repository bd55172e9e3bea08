package area

import "fmt"

// WouldCreateCycle reports whether reparenting areaID under newParentID
// would make the area an ancestor of itself. The areas slice must contain
// the full registry; unknown parent references terminate the walk.
func WouldCreateCycle(areas []Area, areaID string, newParentID *string) bool {
	if newParentID == nil {
		return false
	}
	parents := make(map[string]*string, len(areas))
	for i := range areas {
		parents[areas[i].ID] = areas[i].ParentID
	}

	// Walk up from the proposed parent; hitting areaID means a cycle.
	// The visited set guards against pre-existing corruption in the data.
	visited := make(map[string]bool)
	cur := newParentID
	for cur != nil {
		if *cur == areaID {
			return true
		}
		if visited[*cur] {
			return true
		}
		visited[*cur] = true
		cur = parents[*cur]
	}
	return false
}

// BuildTree assembles the flat area list into a forest of root nodes.
// Children are ordered by SortOrder then name. Areas referencing a
// missing parent are promoted to roots rather than dropped.
func BuildTree(areas []Area) []*Node {
	nodes := make(map[string]*Node, len(areas))
	for i := range areas {
		nodes[areas[i].ID] = &Node{Area: areas[i]}
	}

	var roots []*Node
	for i := range areas {
		node := nodes[areas[i].ID]
		pid := areas[i].ParentID
		if pid == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*pid]
		if !ok || *pid == areas[i].ID {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	return roots
}

// Path returns the ancestry of an area from root to the area itself,
// as a slice of names. Used for display breadcrumbs.
func Path(areas []Area, areaID string) ([]string, error) {
	byID := make(map[string]*Area, len(areas))
	for i := range areas {
		byID[areas[i].ID] = &areas[i]
	}

	var names []string
	visited := make(map[string]bool)
	cur, ok := byID[areaID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAreaNotFound, areaID)
	}
	for cur != nil {
		if visited[cur.ID] {
			return nil, fmt.Errorf("%w: at %s", ErrCycleDetected, cur.ID)
		}
		visited[cur.ID] = true
		names = append([]string{cur.Name}, names...)
		if cur.ParentID == nil {
			break
		}
		cur = byID[*cur.ParentID]
	}
	return names, nil
}
