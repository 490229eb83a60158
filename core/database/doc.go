// Package database handles database connections and schema inspection.
//
// It wraps GORM to configure MySQL or SQLite connections from the application's
// configuration. The bookmark store persists the tree through the returned *gorm.DB.
//
// # Schema Inspection
//
// GetTableColumns lists the columns of a table for both dialects. The bookmark
// store uses it to verify that an existing bookmarks table has the expected shape
// before reconciling against it.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", zap.Error(err))
//	}
//
//	columns, err := database.GetTableColumns(db, "bookmarks")
package database
