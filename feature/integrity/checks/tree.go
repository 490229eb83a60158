package checks

import (
	"context"
	"fmt"
	"sort"

	"bookmark-reconciler/core/reconcile"
	"bookmark-reconciler/feature/bookmarks"

	"gorm.io/gorm"
)

// TreeReport lists structural problems of the stored bookmark table.
type TreeReport struct {
	Nodes int `json:"nodes"`
	// Orphans reference a parent that does not exist.
	Orphans []string `json:"orphans"`
	// Unreachable rows cannot be reached from the root (orphans, their
	// descendants and parent cycles).
	Unreachable []string `json:"unreachable"`
	// LeafParents are bookmarks that have children.
	LeafParents []string `json:"leaf_parents"`
	// PositionGaps are parents whose child positions are not 0..n-1.
	PositionGaps []string `json:"position_gaps"`
}

// Healthy reports whether no problem was found.
func (r *TreeReport) Healthy() bool {
	return len(r.Orphans) == 0 && len(r.Unreachable) == 0 && len(r.LeafParents) == 0 && len(r.PositionGaps) == 0
}

// CheckTree loads the bookmark table and inspects it.
func CheckTree(ctx context.Context, db *gorm.DB) (*TreeReport, error) {
	var rows []bookmarks.Bookmark
	if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load bookmarks: %w", err)
	}
	return InspectRows(rows), nil
}

// InspectRows inspects bookmark rows. Result lists are sorted.
func InspectRows(rows []bookmarks.Bookmark) *TreeReport {
	report := &TreeReport{
		Nodes:        len(rows),
		Orphans:      []string{},
		Unreachable:  []string{},
		LeafParents:  []string{},
		PositionGaps: []string{},
	}

	byID := make(map[string]bookmarks.Bookmark, len(rows))
	children := make(map[string][]bookmarks.Bookmark)
	for _, r := range rows {
		byID[r.ID] = r
		children[r.ParentID] = append(children[r.ParentID], r)
	}

	for _, r := range rows {
		if r.ParentID == reconcile.RootID {
			continue
		}
		if _, ok := byID[r.ParentID]; !ok {
			report.Orphans = append(report.Orphans, r.ID)
		}
	}

	for parentID, list := range children {
		if p, ok := byID[parentID]; ok && !p.IsFolder() {
			report.LeafParents = append(report.LeafParents, parentID)
		}
		positions := make([]int, len(list))
		for i, r := range list {
			positions[i] = r.Position
		}
		sort.Ints(positions)
		for i, pos := range positions {
			if pos != i {
				report.PositionGaps = append(report.PositionGaps, parentID)
				break
			}
		}
	}

	reachable := make(map[string]bool, len(rows))
	queue := []string{reconcile.RootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, c := range children[id] {
			if !reachable[c.ID] {
				reachable[c.ID] = true
				queue = append(queue, c.ID)
			}
		}
	}
	for _, r := range rows {
		if !reachable[r.ID] {
			report.Unreachable = append(report.Unreachable, r.ID)
		}
	}

	sort.Strings(report.Orphans)
	sort.Strings(report.Unreachable)
	sort.Strings(report.LeafParents)
	sort.Strings(report.PositionGaps)
	return report
}

// FixPositions renumbers the children of each parent densely, keeping their
// current relative order.
func FixPositions(ctx context.Context, db *gorm.DB, parents []string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, parent := range parents {
			var list []bookmarks.Bookmark
			if err := tx.Where("parent_id = ?", parent).Order("position, id").Find(&list).Error; err != nil {
				return fmt.Errorf("failed to load children of %s: %w", parent, err)
			}
			for i, r := range list {
				if r.Position == i {
					continue
				}
				if err := tx.Model(&bookmarks.Bookmark{}).Where("id = ?", r.ID).Update("position", i).Error; err != nil {
					return fmt.Errorf("failed to renumber %s: %w", r.ID, err)
				}
			}
		}
		return nil
	})
}
