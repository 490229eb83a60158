// Package memtree provides an in-memory reconcile.Mutator.
//
// It backs dry runs, where a plan is executed against a copy of the current
// tree, and tests. Moves follow remove-then-insert semantics: the destination
// index is interpreted after the node has been taken out of its parent, and
// out of range indices are clamped.
package memtree

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"bookmark-reconciler/core/reconcile"
)

var (
	// ErrNotFound is returned for unknown node ids.
	ErrNotFound = errors.New("node not found")

	// ErrNotFolder is returned when a leaf is used as a parent.
	ErrNotFolder = errors.New("node is not a folder")

	// ErrNotEmpty is returned when Remove is called on a non-empty folder.
	ErrNotEmpty = errors.New("folder is not empty")
)

type entry struct {
	title  string
	url    string
	parent string
}

// Tree is a concurrency safe in-memory bookmark tree.
type Tree struct {
	mu       sync.Mutex
	nodes    map[string]*entry
	children map[string][]string
	seq      int
	prefix   string
}

// New returns a tree seeded with a copy of nodes. Created nodes receive ids of
// the form "<prefix><n>".
func New(nodes []reconcile.Node, prefix string) *Tree {
	t := &Tree{
		nodes:    make(map[string]*entry),
		children: map[string][]string{reconcile.RootID: {}},
		prefix:   prefix,
	}
	t.seed(reconcile.RootID, nodes)
	return t
}

func (t *Tree) seed(parent string, nodes []reconcile.Node) {
	for _, n := range nodes {
		t.nodes[n.ID] = &entry{title: n.Title, url: n.URL, parent: parent}
		t.children[parent] = append(t.children[parent], n.ID)
		if n.IsFolder() {
			t.children[n.ID] = []string{}
			t.seed(n.ID, n.Children)
		}
	}
}

// Nodes returns the current tree.
func (t *Tree) Nodes() []reconcile.Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.build(reconcile.RootID)
}

func (t *Tree) build(parent string) []reconcile.Node {
	ids := t.children[parent]
	out := make([]reconcile.Node, 0, len(ids))
	for i, id := range ids {
		out = append(out, t.node(id, i))
	}
	return out
}

func (t *Tree) node(id string, index int) reconcile.Node {
	e := t.nodes[id]
	n := reconcile.Node{ID: id, Title: e.title, URL: e.url, ParentID: e.parent, Index: index}
	if _, ok := t.children[id]; ok {
		n.Children = t.build(id)
	}
	return n
}

func (t *Tree) isFolder(id string) bool {
	_, ok := t.children[id]
	return ok
}

func (t *Tree) Create(ctx context.Context, parentID, title, url string, index int) (reconcile.Node, error) {
	if err := ctx.Err(); err != nil {
		return reconcile.Node{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.isFolder(parentID) {
		if _, ok := t.nodes[parentID]; ok {
			return reconcile.Node{}, fmt.Errorf("create in %s: %w", parentID, ErrNotFolder)
		}
		return reconcile.Node{}, fmt.Errorf("create in %s: %w", parentID, ErrNotFound)
	}

	t.seq++
	id := fmt.Sprintf("%s%d", t.prefix, t.seq)
	t.nodes[id] = &entry{title: title, url: url, parent: parentID}
	if url == "" {
		t.children[id] = []string{}
	}
	pos := t.insert(parentID, id, index)
	return t.node(id, pos), nil
}

func (t *Tree) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	if len(t.children[id]) > 0 {
		return fmt.Errorf("remove %s: %w", id, ErrNotEmpty)
	}
	t.detach(e.parent, id)
	delete(t.nodes, id)
	delete(t.children, id)
	return nil
}

func (t *Tree) RemoveSubtree(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("remove subtree %s: %w", id, ErrNotFound)
	}
	t.detach(e.parent, id)
	t.drop(id)
	return nil
}

func (t *Tree) drop(id string) {
	for _, child := range t.children[id] {
		t.drop(child)
	}
	delete(t.nodes, id)
	delete(t.children, id)
}

func (t *Tree) Update(ctx context.Context, id string, changes reconcile.UpdateFields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	if changes.Title != nil {
		e.title = *changes.Title
	}
	if changes.URL != nil {
		e.url = *changes.URL
	}
	return nil
}

func (t *Tree) Move(ctx context.Context, id string, dest reconcile.Destination) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("move %s: %w", id, ErrNotFound)
	}
	parent := dest.ParentID
	if parent == "" {
		parent = e.parent
	}
	if !t.isFolder(parent) {
		return fmt.Errorf("move %s into %s: %w", id, parent, ErrNotFolder)
	}
	for p := parent; p != reconcile.RootID; p = t.nodes[p].parent {
		if p == id {
			return fmt.Errorf("move %s into its own subtree", id)
		}
	}

	t.detach(e.parent, id)
	e.parent = parent
	index := len(t.children[parent])
	if dest.Index != nil {
		index = *dest.Index
	}
	t.insert(parent, id, index)
	return nil
}

func (t *Tree) Get(ctx context.Context, id string) (reconcile.Node, error) {
	if err := ctx.Err(); err != nil {
		return reconcile.Node{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.nodes[id]
	if !ok {
		return reconcile.Node{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	pos := 0
	for i, c := range t.children[e.parent] {
		if c == id {
			pos = i
		}
	}
	return t.node(id, pos), nil
}

func (t *Tree) insert(parent, id string, index int) int {
	list := t.children[parent]
	if index < 0 {
		index = 0
	}
	if index > len(list) {
		index = len(list)
	}
	list = append(list, "")
	copy(list[index+1:], list[index:])
	list[index] = id
	t.children[parent] = list
	return index
}

func (t *Tree) detach(parent, id string) {
	list := t.children[parent]
	for i, c := range list {
		if c == id {
			t.children[parent] = append(list[:i], list[i+1:]...)
			return
		}
	}
}
