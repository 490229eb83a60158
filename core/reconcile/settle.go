package reconcile

import "sort"

// settle replays ops in execution order against the original child lists,
// assuming remove-then-insert move semantics. Every folder whose simulated
// child order differs from the target loses its positional moves and gets a
// single reorder instead; a reorder always ends in target order because the
// surplus children it leaves at the end are the ones deleted afterwards.
func (f *finder) settle(ops []Operation) []Operation {
	order := make([]Operation, len(ops))
	copy(order, ops)
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].Priority < order[j].Priority
	})

	sim := newSimulation(f.original)
	for _, op := range order {
		sim.apply(op)
	}

	folders := append([]string{RootID}, f.target.preOrder...)
	drift := make(map[string]int)
	var mismatched []string
	for _, id := range folders {
		want, ok := f.target.children[id]
		if !ok {
			continue
		}
		if n := sim.deltas(id, want); n > 0 {
			drift[id] = n
			mismatched = append(mismatched, id)
		}
	}
	if len(mismatched) == 0 {
		return ops
	}

	out := make([]Operation, 0, len(ops)+len(mismatched))
	for _, op := range ops {
		if op.Type == OpMove && drift[op.Target.ParentID] > 0 && f.original.parents[op.NodeID] == op.Target.ParentID {
			continue
		}
		out = append(out, op)
	}
	for _, id := range mismatched {
		children := make([]string, len(f.target.children[id]))
		copy(children, f.target.children[id])
		out = append(out, Operation{
			ID:            f.newID(),
			Type:          OpReorder,
			Priority:      PriorityReorder,
			NodeID:        id,
			Target:        Target{ParentID: id, Children: children},
			EstimatedCost: drift[id] * CostReorderPerMove,
		})
	}
	return out
}

// simulation tracks child lists while a plan is replayed.
type simulation struct {
	children map[string][]string
	parents  map[string]string
}

func newSimulation(ft *flatTree) *simulation {
	s := &simulation{
		children: make(map[string][]string, len(ft.children)),
		parents:  make(map[string]string, len(ft.parents)),
	}
	for id, list := range ft.children {
		s.children[id] = append([]string(nil), list...)
	}
	for id, parent := range ft.parents {
		s.parents[id] = parent
	}
	return s
}

func (s *simulation) apply(op Operation) {
	switch op.Type {
	case OpCreate:
		if op.Target.URL == nil {
			s.children[op.Target.ID] = []string{}
		}
		s.place(op.Target.ID, op.Target.ParentID, derefInt(op.Target.Index))
	case OpMove:
		index := len(s.children[op.Target.ParentID])
		if op.Target.Index != nil {
			index = *op.Target.Index
		}
		s.place(op.NodeID, op.Target.ParentID, index)
	case OpReorder:
		for i, id := range op.Target.Children {
			s.place(id, op.Target.ParentID, i)
		}
	case OpDelete:
		s.detach(op.NodeID)
		delete(s.parents, op.NodeID)
	}
}

// place moves id to index within parent, taking it out of its current parent first.
func (s *simulation) place(id, parent string, index int) {
	s.detach(id)
	list := s.children[parent]
	if index < 0 {
		index = 0
	}
	if index > len(list) {
		index = len(list)
	}
	list = append(list, "")
	copy(list[index+1:], list[index:])
	list[index] = id
	s.children[parent] = list
	s.parents[id] = parent
}

func (s *simulation) detach(id string) {
	parent, ok := s.parents[id]
	if !ok {
		return
	}
	list := s.children[parent]
	if i := indexOf(list, id); i >= 0 {
		s.children[parent] = append(list[:i], list[i+1:]...)
	}
}

// deltas counts the positions of parent that differ from want.
func (s *simulation) deltas(parent string, want []string) int {
	got := s.children[parent]
	n := len(got) - len(want)
	if n < 0 {
		n = -n
	}
	for i := 0; i < len(want) && i < len(got); i++ {
		if got[i] != want[i] {
			n++
		}
	}
	return n
}
