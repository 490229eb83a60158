package integrity

import (
	"context"
	"errors"

	"bookmark-reconciler/core/storage"
	"bookmark-reconciler/feature/integrity/checks"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrUnavailable is returned when the backend a check needs is not configured.
var ErrUnavailable = errors.New("backend not configured")

// Service handles integrity checks.
type Service struct {
	db     *gorm.DB
	client storage.Client
	bucket string
	prefix string
	region string
	logger *zap.Logger
}

// NewService creates a new integrity service. db and client may be nil.
func NewService(db *gorm.DB, client storage.Client, cfg storage.Config, logger *zap.Logger) *Service {
	return &Service{
		db:     db,
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		region: cfg.Region,
		logger: logger,
	}
}

// CheckTree inspects the bookmark table.
func (s *Service) CheckTree(ctx context.Context) (*checks.TreeReport, error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}
	return checks.CheckTree(ctx, s.db)
}

// FixTree renumbers sibling positions. Orphans and cycles need a manual decision
// and are left alone.
func (s *Service) FixTree(ctx context.Context, report *checks.TreeReport) error {
	if s.db == nil {
		return ErrUnavailable
	}
	return checks.FixPositions(ctx, s.db, report.PositionGaps)
}

// CheckStorage inspects the snapshot bucket.
func (s *Service) CheckStorage(ctx context.Context) (*checks.StorageReport, error) {
	if s.client == nil {
		return nil, ErrUnavailable
	}
	return checks.CheckStorage(ctx, s.client, s.bucket, s.prefix)
}

// FixStorage creates the snapshot bucket.
func (s *Service) FixStorage(ctx context.Context) error {
	if s.client == nil {
		return ErrUnavailable
	}
	return checks.FixStorage(ctx, s.client, s.bucket, s.region, s.logger)
}
