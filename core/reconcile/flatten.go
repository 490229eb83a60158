package reconcile

import (
	"strconv"
	"strings"
)

// flatTree is the flattened form of a tree.
type flatTree struct {
	// nodes maps id to node. ParentID and Index reflect the tree structure.
	nodes map[string]Node

	// children maps a parent id to its ordered child ids. RootID holds the top level.
	children map[string][]string

	// parents maps a node id to its parent id.
	parents map[string]string

	// preOrder and postOrder list ids in depth-first order.
	preOrder  []string
	postOrder []string
}

// flatten walks a tree into an id-keyed map and a parent to ordered-children map.
// The tree must already be validated.
func flatten(tree []Node) *flatTree {
	ft := &flatTree{
		nodes:    make(map[string]Node),
		children: map[string][]string{RootID: {}},
		parents:  make(map[string]string),
	}
	ft.walk(RootID, tree)
	return ft
}

func (ft *flatTree) walk(parentID string, nodes []Node) {
	for i, n := range nodes {
		n.ParentID = parentID
		n.Index = i
		ft.nodes[n.ID] = n
		ft.parents[n.ID] = parentID
		ft.children[parentID] = append(ft.children[parentID], n.ID)
		ft.preOrder = append(ft.preOrder, n.ID)
		if n.IsFolder() {
			if _, ok := ft.children[n.ID]; !ok {
				ft.children[n.ID] = []string{}
			}
			ft.walk(n.ID, n.Children)
		}
		ft.postOrder = append(ft.postOrder, n.ID)
	}
}

// isFolder reports whether id is a folder of this tree. RootID always is.
func (ft *flatTree) isFolder(id string) bool {
	if id == RootID {
		return true
	}
	n, ok := ft.nodes[id]
	return ok && n.IsFolder()
}

// validateTree rejects malformed trees. Original trees must carry an id on every node.
func validateTree(name string, tree []Node, requireIDs bool) error {
	seen := make(map[string]string)
	var walk func(nodes []Node, path string) error
	walk = func(nodes []Node, path string) error {
		for _, n := range nodes {
			p := path + "/" + n.Title
			switch {
			case n.ID == "" && requireIDs:
				return &ValidationError{Tree: name, Path: p, Reason: "node has no id"}
			case n.ID == RootID || strings.HasPrefix(n.ID, PendingPrefix):
				return &ValidationError{Tree: name, NodeID: n.ID, Path: p, Reason: "id is reserved"}
			case n.URL != "" && len(n.Children) > 0:
				return &ValidationError{Tree: name, NodeID: n.ID, Path: p, Reason: "bookmark with a url must not have children"}
			}
			if n.ID != "" {
				if prev, dup := seen[n.ID]; dup {
					return &ValidationError{Tree: name, NodeID: n.ID, Path: p, Reason: "duplicate id, also at " + strconv.Quote(prev)}
				}
				seen[n.ID] = p
			}
			if err := walk(n.Children, p); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(tree, "")
}

// assignProvisionalIDs returns a deep copy of tree in which every node without
// an id receives a provisional one, numbered in depth-first pre-order.
func assignProvisionalIDs(tree []Node) []Node {
	next := 0
	var clone func(nodes []Node) []Node
	clone = func(nodes []Node) []Node {
		if nodes == nil {
			return nil
		}
		out := make([]Node, len(nodes))
		for i, n := range nodes {
			if n.ID == "" {
				next++
				n.ID = PendingPrefix + strconv.Itoa(next)
			}
			n.Children = clone(n.Children)
			out[i] = n
		}
		return out
	}
	return clone(tree)
}

// BindCreated returns a copy of target in which every created node carries the
// id the backend assigned, as reported by ExecutionResult.CreatedIDs. This
// covers nodes without an id as well as nodes whose id no longer existed, as
// when a snapshot is restored. Nodes without an id that were not created keep
// an empty id.
func BindCreated(target []Node, created map[string]string) []Node {
	bound := assignProvisionalIDs(target)
	var walk func(nodes []Node)
	walk = func(nodes []Node) {
		for i := range nodes {
			if real, ok := created[nodes[i].ID]; ok {
				nodes[i].ID = real
			} else if IsProvisional(nodes[i].ID) {
				nodes[i].ID = ""
			}
			walk(nodes[i].Children)
		}
	}
	walk(bound)
	return bound
}

// IsProvisional reports whether id was assigned to a node that does not exist yet.
func IsProvisional(id string) bool {
	return strings.HasPrefix(id, PendingPrefix)
}
