package bookmarks

import "bookmark-reconciler/core/reconcile"

// TableName is the table holding the bookmark tree.
const TableName = "bookmarks"

// Bookmark is one row of the bookmarks table. Folders have an empty URL.
// Top-level rows use reconcile.RootID as their parent.
type Bookmark struct {
	ID       string `gorm:"primaryKey;size:64"`
	ParentID string `gorm:"size:64;index:idx_bookmarks_parent_position,priority:1;not null"`
	Title    string `gorm:"size:512;not null"`
	URL      string `gorm:"size:2048;not null;default:''"`
	Position int    `gorm:"index:idx_bookmarks_parent_position,priority:2;not null"`
}

// TableName implements gorm's tabler interface.
func (Bookmark) TableName() string {
	return TableName
}

// IsFolder reports whether the row is a folder.
func (b Bookmark) IsFolder() bool {
	return b.URL == ""
}

func (b Bookmark) toNode() reconcile.Node {
	return reconcile.Node{
		ID:       b.ID,
		Title:    b.Title,
		URL:      b.URL,
		ParentID: b.ParentID,
		Index:    b.Position,
	}
}
