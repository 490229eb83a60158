package checks

import (
	"context"
	"fmt"
	"path"

	"bookmark-reconciler/core/storage"
	"bookmark-reconciler/feature/snapshot"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// StorageReport describes the snapshot bucket.
type StorageReport struct {
	Bucket  string `json:"bucket"`
	Exists  bool   `json:"exists"`
	Trees   int    `json:"trees"`
	Reports int    `json:"reports"`
}

// CheckStorage verifies the snapshot bucket and counts stored objects.
func CheckStorage(ctx context.Context, client storage.Client, bucket, prefix string) (*StorageReport, error) {
	report := &StorageReport{Bucket: bucket}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	report.Exists = exists
	if !exists {
		return report, nil
	}

	for kind, count := range map[snapshot.Kind]*int{snapshot.KindTree: &report.Trees, snapshot.KindReport: &report.Reports} {
		opts := minio.ListObjectsOptions{Prefix: path.Join(prefix, string(kind)) + "/", Recursive: true}
		for obj := range client.ListObjects(ctx, bucket, opts) {
			if obj.Err != nil {
				return nil, fmt.Errorf("failed to list %s: %w", kind, obj.Err)
			}
			*count++
		}
	}
	return report, nil
}

// FixStorage creates the snapshot bucket.
func FixStorage(ctx context.Context, client storage.Client, bucket, region string, logger *zap.Logger) error {
	if err := storage.EnsureBucket(ctx, client, bucket, region); err != nil {
		logger.Error("Failed to create bucket", zap.String("bucket", bucket), zap.Error(err))
		return err
	}
	logger.Info("Snapshot bucket ready", zap.String("bucket", bucket))
	return nil
}
