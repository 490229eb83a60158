package reconcile

import "sort"

// optimize orders candidate operations by priority, optionally merges updates,
// and attaches dependency edges.
func optimize(ops []Operation, original *flatTree, mergeUpdates bool) []Operation {
	sorted := make([]Operation, len(ops))
	copy(sorted, ops)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	if mergeUpdates {
		sorted = mergeNodeUpdates(sorted)
	}

	addDependencies(sorted, original)
	return sorted
}

// mergeNodeUpdates folds a node's url update into its title update.
func mergeNodeUpdates(ops []Operation) []Operation {
	titleUpdate := make(map[string]int)
	for i, op := range ops {
		if op.Type == OpUpdate && op.Target.Title != nil && op.Target.URL == nil {
			titleUpdate[op.NodeID] = i
		}
	}

	merged := make([]Operation, 0, len(ops))
	absorbed := make(map[int]bool)
	for i, op := range ops {
		if op.Type != OpUpdate || op.Target.URL == nil || op.Target.Title != nil {
			continue
		}
		if j, ok := titleUpdate[op.NodeID]; ok {
			ops[j].Target.URL = op.Target.URL
			absorbed[i] = true
		}
	}
	for i, op := range ops {
		if !absorbed[i] {
			merged = append(merged, op)
		}
	}
	return merged
}

// addDependencies attaches must-happen-before edges derived from resource
// contention: parent existence, sibling positions and subtree removal.
// Dependencies always point to operations earlier in ops.
func addDependencies(ops []Operation, original *flatTree) {
	creates := make(map[string]string) // provisional node id -> create op id
	deletes := make(map[string]int)    // node id -> index of its delete op
	movesTouching := make(map[string][]string)
	for i, op := range ops {
		switch op.Type {
		case OpCreate:
			creates[op.Target.ID] = op.ID
		case OpDelete:
			deletes[op.NodeID] = i
		}
	}

	// Inserts into the same folder shift each other's indices and are chained.
	lastCreate := make(map[string]string) // parent id -> previous create op id
	lastMove := make(map[string]string)   // parent id -> previous move op id
	for i := range ops {
		op := &ops[i]
		switch op.Type {
		case OpCreate:
			parent := op.Target.ParentID
			if dep, ok := creates[parent]; ok {
				op.addDependency(dep)
			}
			if prev, ok := lastCreate[parent]; ok {
				op.addDependency(prev)
			}
			lastCreate[parent] = op.ID
		case OpMove:
			parent := op.Target.ParentID
			if dep, ok := creates[parent]; ok {
				op.addDependency(dep)
			}
			// Moves touching the same folder, as source or destination, are chained.
			for _, folder := range []string{original.parents[op.NodeID], parent} {
				if folder == "" {
					continue
				}
				if prev, ok := lastMove[folder]; ok {
					op.addDependency(prev)
				}
				lastMove[folder] = op.ID
				movesTouching[folder] = append(movesTouching[folder], op.ID)
			}
		case OpReorder:
			for _, child := range op.Target.Children {
				if dep, ok := creates[child]; ok {
					op.addDependency(dep)
				}
			}
			for _, dep := range movesTouching[op.Target.ParentID] {
				op.addDependency(dep)
			}
		}
	}

	// A folder is removed after its removed children.
	for i := range ops {
		op := &ops[i]
		if op.Type != OpDelete {
			continue
		}
		if j, ok := deletes[original.parents[op.NodeID]]; ok {
			ops[j].addDependency(op.ID)
		}
	}
}

func (op *Operation) addDependency(id string) {
	if id == "" || id == op.ID {
		return
	}
	for _, d := range op.Dependencies {
		if d == id {
			return
		}
	}
	op.Dependencies = append(op.Dependencies, id)
}
