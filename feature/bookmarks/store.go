package bookmarks

import (
	"context"
	"errors"
	"fmt"

	"bookmark-reconciler/core/reconcile"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrNodeNotFound is returned for ids that do not exist.
	ErrNodeNotFound = errors.New("bookmark not found")

	// ErrNotEmpty is returned when Remove targets a folder with children.
	ErrNotEmpty = errors.New("folder is not empty")

	// ErrNotFolder is returned when a bookmark is used as a parent.
	ErrNotFolder = errors.New("parent is not a folder")

	// ErrCycle is returned when a folder would be moved into its own subtree.
	ErrCycle = errors.New("cannot move a folder into itself")
)

// Store keeps a bookmark tree in a SQL table and implements reconcile.Mutator.
// Every mutation runs in its own transaction and keeps sibling positions dense.
type Store struct {
	db    *gorm.DB
	newID func() string
}

var _ reconcile.Mutator = (*Store)(nil)

// NewStore creates a store on db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, newID: uuid.NewString}
}

// Create inserts a node at index within parentID, shifting later siblings.
func (s *Store) Create(ctx context.Context, parentID, title, url string, index int) (reconcile.Node, error) {
	parentID = normalizeParent(parentID)
	row := Bookmark{ID: s.newID(), ParentID: parentID, Title: title, URL: url}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireFolder(tx, parentID); err != nil {
			return err
		}
		n, err := countChildren(tx, parentID, "")
		if err != nil {
			return err
		}
		row.Position = clamp(index, n)
		if err := shift(tx, parentID, row.Position, 1, ""); err != nil {
			return err
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert bookmark: %w", err)
		}
		return nil
	})
	if err != nil {
		return reconcile.Node{}, err
	}
	return row.toNode(), nil
}

// Remove deletes a bookmark or an empty folder.
func (s *Store) Remove(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := find(tx, id)
		if err != nil {
			return err
		}
		if row.IsFolder() {
			n, err := countChildren(tx, id, "")
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%w: %s has %d children", ErrNotEmpty, id, n)
			}
		}
		if err := tx.Where("id = ?", id).Delete(&Bookmark{}).Error; err != nil {
			return fmt.Errorf("failed to delete bookmark %s: %w", id, err)
		}
		return shift(tx, row.ParentID, row.Position+1, -1, "")
	})
}

// RemoveSubtree deletes a node and all of its descendants.
func (s *Store) RemoveSubtree(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := find(tx, id)
		if err != nil {
			return err
		}

		ids := []string{id}
		for frontier := []string{id}; len(frontier) > 0; {
			var next []string
			if err := tx.Model(&Bookmark{}).Where("parent_id IN ?", frontier).Pluck("id", &next).Error; err != nil {
				return fmt.Errorf("failed to list descendants of %s: %w", id, err)
			}
			ids = append(ids, next...)
			frontier = next
		}

		if err := tx.Where("id IN ?", ids).Delete(&Bookmark{}).Error; err != nil {
			return fmt.Errorf("failed to delete subtree %s: %w", id, err)
		}
		return shift(tx, row.ParentID, row.Position+1, -1, "")
	})
}

// Update changes the title and/or url of a node.
func (s *Store) Update(ctx context.Context, id string, changes reconcile.UpdateFields) error {
	updates := make(map[string]any, 2)
	if changes.Title != nil {
		updates["title"] = *changes.Title
	}
	if changes.URL != nil {
		updates["url"] = *changes.URL
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := find(tx, id); err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&Bookmark{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update bookmark %s: %w", id, err)
		}
		return nil
	})
}

// Move detaches a node and inserts it at dest. The index is interpreted after
// the node was removed from its current parent and is clamped to the child count.
func (s *Store) Move(ctx context.Context, id string, dest reconcile.Destination) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := find(tx, id)
		if err != nil {
			return err
		}
		parent := row.ParentID
		if dest.ParentID != "" {
			parent = normalizeParent(dest.ParentID)
		}
		if err := requireFolder(tx, parent); err != nil {
			return err
		}
		if err := checkAncestry(tx, id, parent); err != nil {
			return err
		}

		if err := shift(tx, row.ParentID, row.Position+1, -1, id); err != nil {
			return err
		}
		n, err := countChildren(tx, parent, id)
		if err != nil {
			return err
		}
		index := n
		if dest.Index != nil {
			index = clamp(*dest.Index, n)
		}
		if err := shift(tx, parent, index, 1, id); err != nil {
			return err
		}

		err = tx.Model(&Bookmark{}).Where("id = ?", id).Updates(map[string]any{
			"parent_id": parent,
			"position":  index,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to move bookmark %s: %w", id, err)
		}
		return nil
	})
}

// Get returns a single node without its children.
func (s *Store) Get(ctx context.Context, id string) (reconcile.Node, error) {
	row, err := find(s.db.WithContext(ctx), id)
	if err != nil {
		return reconcile.Node{}, err
	}
	return row.toNode(), nil
}

// LoadTree returns the stored tree in sibling order.
func (s *Store) LoadTree(ctx context.Context) ([]reconcile.Node, error) {
	var rows []Bookmark
	if err := s.db.WithContext(ctx).Order("parent_id, position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load bookmarks: %w", err)
	}
	return buildTree(rows), nil
}

// ReplaceTree discards the stored tree and writes nodes instead. Nodes without
// an id receive a new one. The stored tree is returned.
func (s *Store) ReplaceTree(ctx context.Context, nodes []reconcile.Node) ([]reconcile.Node, error) {
	var rows []Bookmark
	var walk func(parent string, list []reconcile.Node)
	walk = func(parent string, list []reconcile.Node) {
		for i, n := range list {
			id := n.ID
			if id == "" {
				id = s.newID()
			}
			rows = append(rows, Bookmark{ID: id, ParentID: parent, Title: n.Title, URL: n.URL, Position: i})
			if n.IsFolder() {
				walk(id, n.Children)
			}
		}
	}
	walk(reconcile.RootID, nodes)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Bookmark{}).Error; err != nil {
			return fmt.Errorf("failed to clear bookmarks: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 200).Error; err != nil {
			return fmt.Errorf("failed to insert bookmarks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buildTree(rows), nil
}

func buildTree(rows []Bookmark) []reconcile.Node {
	byParent := make(map[string][]Bookmark)
	for _, r := range rows {
		byParent[r.ParentID] = append(byParent[r.ParentID], r)
	}

	var build func(parent string) []reconcile.Node
	build = func(parent string) []reconcile.Node {
		list := byParent[parent]
		out := make([]reconcile.Node, 0, len(list))
		for i, r := range list {
			n := r.toNode()
			n.Index = i
			if r.IsFolder() {
				n.Children = build(r.ID)
			}
			out = append(out, n)
		}
		return out
	}
	return build(reconcile.RootID)
}

func find(tx *gorm.DB, id string) (*Bookmark, error) {
	var row Bookmark
	err := tx.Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load bookmark %s: %w", id, err)
	}
	return &row, nil
}

func requireFolder(tx *gorm.DB, id string) error {
	if id == reconcile.RootID {
		return nil
	}
	row, err := find(tx, id)
	if err != nil {
		return err
	}
	if !row.IsFolder() {
		return fmt.Errorf("%w: %s", ErrNotFolder, id)
	}
	return nil
}

// checkAncestry fails when parent is id or lies inside the subtree of id.
func checkAncestry(tx *gorm.DB, id, parent string) error {
	seen := make(map[string]bool)
	for cur := parent; cur != reconcile.RootID && !seen[cur]; {
		if cur == id {
			return fmt.Errorf("%w: %s into %s", ErrCycle, id, parent)
		}
		seen[cur] = true
		row, err := find(tx, cur)
		if err != nil {
			return err
		}
		cur = row.ParentID
	}
	return nil
}

// countChildren counts the children of parent, ignoring exclude.
func countChildren(tx *gorm.DB, parent, exclude string) (int, error) {
	var n int64
	q := tx.Model(&Bookmark{}).Where("parent_id = ?", parent)
	if exclude != "" {
		q = q.Where("id <> ?", exclude)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count children of %s: %w", parent, err)
	}
	return int(n), nil
}

// shift adds delta to the position of every child of parent at or after from.
func shift(tx *gorm.DB, parent string, from, delta int, exclude string) error {
	q := tx.Model(&Bookmark{}).Where("parent_id = ? AND position >= ?", parent, from)
	if exclude != "" {
		q = q.Where("id <> ?", exclude)
	}
	if err := q.Update("position", gorm.Expr("position + ?", delta)).Error; err != nil {
		return fmt.Errorf("failed to shift positions in %s: %w", parent, err)
	}
	return nil
}

func clamp(index, n int) int {
	if index < 0 {
		return 0
	}
	if index > n {
		return n
	}
	return index
}

func normalizeParent(id string) string {
	if id == "" {
		return reconcile.RootID
	}
	return id
}
