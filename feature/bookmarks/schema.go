package bookmarks

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"bookmark-reconciler/core/database"

	"gorm.io/gorm"
)

// minURLWidth is the varchar width the url column needs on mysql.
const minURLWidth = 2048

var varcharWidth = regexp.MustCompile(`^varchar\((\d+)\)$`)

// Prepare creates the bookmarks table when it is missing and widens legacy
// columns that are too narrow for long URLs.
func (s *Store) Prepare(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&Bookmark{}); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", TableName, err)
	}
	return expandColumns(db)
}

func expandColumns(db *gorm.DB) error {
	columns, err := database.GetTableColumns(db, TableName)
	if err != nil {
		return err
	}

	present := make(map[string]database.ColumnInfo, len(columns))
	for _, col := range columns {
		present[col.Field] = col
	}
	for _, name := range []string{"id", "parent_id", "title", "url", "position"} {
		if _, ok := present[name]; !ok {
			return fmt.Errorf("table %s is missing column %s", TableName, name)
		}
	}

	// sqlite does not enforce varchar widths.
	if db.Dialector.Name() == "sqlite" {
		return nil
	}
	m := varcharWidth.FindStringSubmatch(present["url"].Type)
	if m == nil {
		return nil
	}
	if width, _ := strconv.Atoi(m[1]); width >= minURLWidth {
		return nil
	}
	stmt := fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN url VARCHAR(%d) NOT NULL DEFAULT ''", TableName, minURLWidth)
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("failed to widen %s.url: %w", TableName, err)
	}
	return nil
}
