package reconcile

// finder compares two flattened trees and emits candidate operations.
type finder struct {
	original *flatTree
	target   *flatTree

	moveCollapseThreshold int
	newID                 func() string
}

// findOperations runs the delete, create, update and move/reorder passes.
func (f *finder) findOperations() []Operation {
	var ops []Operation
	ops = append(ops, f.findDeletes()...)
	ops = append(ops, f.findCreates()...)
	ops = append(ops, f.findUpdates()...)
	ops = append(ops, f.findMoves()...)
	return ops
}

// findDeletes emits a delete for every original node missing from the target.
// Children come before their parents.
func (f *finder) findDeletes() []Operation {
	var ops []Operation
	for _, id := range f.original.postOrder {
		if _, ok := f.target.nodes[id]; ok {
			continue
		}
		n := f.original.nodes[id]
		cost := CostDeleteLeaf
		if len(n.Children) > 0 {
			cost = CostDeleteFolder
		}
		ops = append(ops, Operation{
			ID:            f.newID(),
			Type:          OpDelete,
			Priority:      PriorityDelete,
			NodeID:        id,
			Target:        Target{ID: id},
			EstimatedCost: cost,
		})
	}
	return ops
}

// findCreates emits a create for every target node missing from the original.
// Parents come before their children.
func (f *finder) findCreates() []Operation {
	var ops []Operation
	for _, id := range f.target.preOrder {
		if _, ok := f.original.nodes[id]; ok {
			continue
		}
		n := f.target.nodes[id]
		t := Target{
			ID:       id,
			ParentID: n.ParentID,
			Index:    intPtr(n.Index),
			Title:    stringPtr(n.Title),
		}
		if n.URL != "" {
			t.URL = stringPtr(n.URL)
		}
		ops = append(ops, Operation{
			ID:            f.newID(),
			Type:          OpCreate,
			Priority:      PriorityCreate,
			Target:        t,
			EstimatedCost: CostCreate,
		})
	}
	return ops
}

// findUpdates emits title and url updates for nodes present in both trees.
func (f *finder) findUpdates() []Operation {
	var ops []Operation
	for _, id := range f.target.preOrder {
		orig, ok := f.original.nodes[id]
		if !ok {
			continue
		}
		tgt := f.target.nodes[id]
		if tgt.Title != orig.Title {
			ops = append(ops, Operation{
				ID:            f.newID(),
				Type:          OpUpdate,
				Priority:      PriorityUpdateTitle,
				NodeID:        id,
				Target:        Target{ID: id, Title: stringPtr(tgt.Title)},
				EstimatedCost: CostUpdate,
			})
		}
		if tgt.URL != "" && tgt.URL != orig.URL {
			ops = append(ops, Operation{
				ID:            f.newID(),
				Type:          OpUpdate,
				Priority:      PriorityUpdateURL,
				NodeID:        id,
				Target:        Target{ID: id, URL: stringPtr(tgt.URL)},
				EstimatedCost: CostUpdate,
			})
		}
	}
	return ops
}

// findMoves compares child orders folder by folder, starting at the root.
func (f *finder) findMoves() []Operation {
	var ops []Operation
	visited := make(map[string]bool)
	var visit func(parentID string)
	visit = func(parentID string) {
		if visited[parentID] {
			return
		}
		visited[parentID] = true

		origChildren := f.original.children[parentID]
		tgtChildren := f.target.children[parentID]
		ops = append(ops, f.compareChildren(parentID, origChildren, tgtChildren)...)

		for _, list := range [][]string{origChildren, tgtChildren} {
			for _, id := range list {
				if f.original.isFolder(id) || f.target.isFolder(id) {
					visit(id)
				}
			}
		}
	}
	visit(RootID)
	return ops
}

// compareChildren emits the moves needed to turn one folder's original child
// order into its target order.
func (f *finder) compareChildren(parentID string, origChildren, tgtChildren []string) []Operation {
	var ops []Operation
	targetIndex := make(map[string]int, len(tgtChildren))
	for i, id := range tgtChildren {
		targetIndex[id] = i
	}

	// Children arriving from another folder.
	for i, id := range tgtChildren {
		if _, existed := f.original.nodes[id]; !existed {
			continue
		}
		if f.original.parents[id] == parentID {
			continue
		}
		ops = append(ops, f.moveOp(id, parentID, i))
	}

	// Children staying in this folder whose relative position changed.
	var current, desired []string
	for _, id := range origChildren {
		if f.target.parents[id] == parentID {
			current = append(current, id)
		}
	}
	for _, id := range tgtChildren {
		if f.original.parents[id] == parentID {
			desired = append(desired, id)
		}
	}
	moved := positionalMoves(current, desired)
	if len(moved) == 0 {
		return ops
	}

	if len(moved) > f.moveCollapseThreshold {
		children := make([]string, len(tgtChildren))
		copy(children, tgtChildren)
		return append(ops, Operation{
			ID:            f.newID(),
			Type:          OpReorder,
			Priority:      PriorityReorder,
			NodeID:        parentID,
			Target:        Target{ParentID: parentID, Children: children},
			EstimatedCost: len(moved) * CostReorderPerMove,
		})
	}

	for _, id := range moved {
		ops = append(ops, f.moveOp(id, parentID, targetIndex[id]))
	}
	return ops
}

func (f *finder) moveOp(id, parentID string, index int) Operation {
	return Operation{
		ID:            f.newID(),
		Type:          OpMove,
		Priority:      PriorityMove,
		NodeID:        id,
		Target:        Target{ID: id, ParentID: parentID, Index: intPtr(index)},
		EstimatedCost: CostMove,
	}
}

// positionalMoves returns the ids that must move, in the order the moves must be
// applied, to turn current into desired. Both slices hold the same ids.
//
// Positions are settled from the last to the first. Moving an element into
// position i only shifts elements before i, so positions already settled stay put.
func positionalMoves(current, desired []string) []string {
	if len(current) != len(desired) {
		return nil
	}
	cur := make([]string, len(current))
	copy(cur, current)

	var moved []string
	for i := len(desired) - 1; i >= 0; i-- {
		id := desired[i]
		j := indexOf(cur, id)
		if j < 0 || j == i {
			continue
		}
		cur = append(cur[:j], cur[j+1:]...)
		cur = append(cur[:i], append([]string{id}, cur[i:]...)...)
		moved = append(moved, id)
	}
	return moved
}

func indexOf(list []string, id string) int {
	for i, v := range list {
		if v == id {
			return i
		}
	}
	return -1
}
