// Package bookmarks stores a bookmark tree in a SQL database.
//
// Store implements reconcile.Mutator on top of gorm, so reconciliation plans can
// be executed directly against the table. Rows keep a dense zero-based position
// per parent; every mutation runs in one transaction and renumbers the siblings
// it affects. Both mysql and sqlite are supported.
//
// # Usage
//
//	store := bookmarks.NewStore(db)
//	if err := store.Prepare(ctx); err != nil {
//	    return err
//	}
//	tree, err := store.LoadTree(ctx)
package bookmarks
