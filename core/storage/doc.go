// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client behind the Client interface so snapshot storage can
// be mocked in unit tests (see core/storage/mocks). Both AWS S3 and self-hosted
// MinIO are supported.
//
// Reconciliation uses object storage to keep a backup of the tree before a plan is
// applied, the requested target trees, and the execution reports.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	if err := storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region); err != nil {
//	    return err
//	}
package storage
