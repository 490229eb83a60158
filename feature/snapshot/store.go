package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	"bookmark-reconciler/core/reconcile"
	"bookmark-reconciler/core/storage"

	"github.com/minio/minio-go/v7"
)

// Kind selects a family of objects.
type Kind string

const (
	// KindTree holds bookmark tree snapshots.
	KindTree Kind = "trees"
	// KindReport holds execution reports.
	KindReport Kind = "reports"
)

// Report is the persisted record of one apply run.
type Report struct {
	CreatedAt time.Time                  `json:"created_at"`
	DryRun    bool                       `json:"dry_run"`
	Snapshot  string                     `json:"snapshot,omitempty"`
	Plan      *reconcile.DiffResult      `json:"plan"`
	Result    *reconcile.ExecutionResult `json:"result,omitempty"`
	Error     string                     `json:"error,omitempty"`
}

// Object describes a stored snapshot or report.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Store writes tree snapshots and execution reports as JSON objects.
type Store struct {
	client storage.Client
	bucket string
	prefix string
	now    func() time.Time
}

// NewStore creates a snapshot store writing below prefix in bucket.
func NewStore(client storage.Client, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: prefix, now: time.Now}
}

// SaveTree uploads a tree and returns its object key.
func (s *Store) SaveTree(ctx context.Context, label string, nodes []reconcile.Node) (string, error) {
	if nodes == nil {
		nodes = []reconcile.Node{}
	}
	key := s.key(KindTree, label)
	if err := s.put(ctx, key, nodes); err != nil {
		return "", err
	}
	return key, nil
}

// LoadTree downloads the tree stored at key.
func (s *Store) LoadTree(ctx context.Context, key string) ([]reconcile.Node, error) {
	reader, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot %s: %w", key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}
	var nodes []reconcile.Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", key, err)
	}
	return nodes, nil
}

// SaveReport uploads an execution report and returns its object key.
func (s *Store) SaveReport(ctx context.Context, report Report) (string, error) {
	if report.CreatedAt.IsZero() {
		report.CreatedAt = s.now().UTC()
	}
	label := "apply"
	if report.DryRun {
		label = "dry-run"
	}
	key := s.key(KindReport, label)
	if err := s.put(ctx, key, report); err != nil {
		return "", err
	}
	return key, nil
}

// List returns the objects of one kind, newest first.
func (s *Store) List(ctx context.Context, kind Kind) ([]Object, error) {
	var out []Object
	opts := minio.ListObjectsOptions{Prefix: path.Join(s.prefix, string(kind)) + "/", Recursive: true}
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", kind, obj.Err)
		}
		out = append(out, Object{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	// Keys start with a sortable timestamp.
	sort.Slice(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	return out, nil
}

// Prune keeps the newest keep objects of a kind and removes the rest. It
// returns the number of removed objects.
func (s *Store) Prune(ctx context.Context, kind Kind, keep int) (int, error) {
	objects, err := s.List(ctx, kind)
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(objects) <= keep {
		return 0, nil
	}
	stale := objects[keep:]

	objectsCh := make(chan minio.ObjectInfo, len(stale))
	for _, obj := range stale {
		objectsCh <- minio.ObjectInfo{Key: obj.Key}
	}
	close(objectsCh)

	removed := len(stale)
	var firstErr error
	for rErr := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		removed--
		if firstErr == nil {
			firstErr = fmt.Errorf("failed to remove %s: %w", rErr.ObjectName, rErr.Err)
		}
	}
	return removed, firstErr
}

func (s *Store) key(kind Kind, label string) string {
	stamp := s.now().UTC().Format("20060102T150405.000000000Z")
	return path.Join(s.prefix, string(kind), stamp+"-"+label+".json")
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}
