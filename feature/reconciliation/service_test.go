package reconciliation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"bookmark-reconciler/core/reconcile"
	"bookmark-reconciler/core/reconcile/memtree"
	"bookmark-reconciler/feature/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSnapshots records calls instead of talking to object storage.
type fakeSnapshots struct {
	mu      sync.Mutex
	trees   [][]reconcile.Node
	reports []snapshot.Report
	pruned  []int
	saveErr error
}

func (f *fakeSnapshots) SaveTree(_ context.Context, label string, nodes []reconcile.Node) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.trees = append(f.trees, nodes)
	return "trees/" + label + ".json", nil
}

func (f *fakeSnapshots) SaveReport(_ context.Context, r snapshot.Report) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return "reports/r.json", nil
}

func (f *fakeSnapshots) List(context.Context, snapshot.Kind) ([]snapshot.Object, error) {
	return []snapshot.Object{{Key: "trees/a.json", Size: 2}}, nil
}

func (f *fakeSnapshots) Prune(_ context.Context, _ snapshot.Kind, keep int) (int, error) {
	f.pruned = append(f.pruned, keep)
	return 0, nil
}

// flakyStore fails the first failures updates.
type flakyStore struct {
	*memStore
	mu       sync.Mutex
	failures int
}

func (f *flakyStore) Update(ctx context.Context, id string, changes reconcile.UpdateFields) error {
	f.mu.Lock()
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return errors.New("rate limited")
	}
	return f.memStore.Update(ctx, id, changes)
}

type brokenStore struct {
	*memStore
}

func (brokenStore) LoadTree(context.Context) ([]reconcile.Node, error) {
	return nil, errors.New("connection refused")
}

func currentTree() []reconcile.Node {
	return []reconcile.Node{
		{ID: "f1", Title: "Work", Children: []reconcile.Node{
			{ID: "a", Title: "Docs", URL: "https://docs"},
			{ID: "b", Title: "Mail", URL: "https://mail"},
		}},
		{ID: "c", Title: "News", URL: "https://news"},
	}
}

func targetTree() []reconcile.Node {
	return []reconcile.Node{
		{ID: "c", Title: "Headlines", URL: "https://news"},
		{ID: "f1", Title: "Work", Children: []reconcile.Node{
			{ID: "b", Title: "Mail", URL: "https://mail"},
			{Title: "Wiki", URL: "https://wiki"},
		}},
	}
}

func outline(nodes []reconcile.Node) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.IsFolder() {
			parts = append(parts, n.Title+"["+outline(n.Children)+"]")
			continue
		}
		parts = append(parts, n.Title)
	}
	return strings.Join(parts, ",")
}

func newMemStore() *memStore {
	return &memStore{Tree: memtree.New(currentTree(), "n")}
}

func defaultConfig() Config {
	return Config{Backup: true, Reports: true, KeepSnapshots: 5, MaxPasses: 2}
}

func TestService_Plan(t *testing.T) {
	svc := NewService(newMemStore(), nil, reconcile.DefaultConfig(), defaultConfig(), nil)

	t.Run("AgainstStoredTree", func(t *testing.T) {
		plan, err := svc.Plan(context.Background(), nil, targetTree())
		require.NoError(t, err)
		assert.False(t, plan.IsEmpty())
		assert.Equal(t, reconcile.StrategyIncremental, plan.Strategy.Type)
	})

	t.Run("AgainstGivenTree", func(t *testing.T) {
		plan, err := svc.Plan(context.Background(), targetTree()[:1], targetTree()[:1])
		require.NoError(t, err)
		assert.True(t, plan.IsEmpty())
	})

	t.Run("InvalidTarget", func(t *testing.T) {
		_, err := svc.Plan(context.Background(), nil, []reconcile.Node{{ID: "x", Title: "a", URL: "u"}, {ID: "x", Title: "b", URL: "v"}})
		var verr *reconcile.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestService_CurrentTreeError(t *testing.T) {
	svc := NewService(brokenStore{newMemStore()}, nil, reconcile.DefaultConfig(), defaultConfig(), nil)

	_, err := svc.CurrentTree(context.Background())
	assert.ErrorContains(t, err, "failed to load current tree: connection refused")
}

func TestService_Apply(t *testing.T) {
	store := newMemStore()
	snaps := &fakeSnapshots{}
	svc := NewService(store, snaps, reconcile.DefaultConfig(), defaultConfig(), nil)

	res, err := svc.Apply(context.Background(), targetTree(), false, nil)
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Zero(t, res.Remaining)
	require.Len(t, res.Passes, 1)
	assert.True(t, res.Passes[0].Success)
	assert.Nil(t, res.Tree)
	assert.Equal(t, "Headlines,Work[Mail,Wiki]", outline(store.Nodes()))

	assert.Equal(t, "trees/before-apply.json", res.Snapshot)
	require.Len(t, snaps.trees, 1)
	assert.Equal(t, outline(currentTree()), outline(snaps.trees[0]))
	assert.Equal(t, []int{5}, snaps.pruned)

	assert.Equal(t, "reports/r.json", res.Report)
	require.Len(t, snaps.reports, 1)
	assert.False(t, snaps.reports[0].DryRun)
	assert.Equal(t, res.Snapshot, snaps.reports[0].Snapshot)
	assert.Same(t, res.Passes[0], snaps.reports[0].Result)
}

func TestService_ApplyDryRun(t *testing.T) {
	store := newMemStore()
	snaps := &fakeSnapshots{}
	svc := NewService(store, snaps, reconcile.DefaultConfig(), defaultConfig(), nil)

	res, err := svc.Apply(context.Background(), targetTree(), true, nil)
	require.NoError(t, err)

	assert.True(t, res.DryRun)
	assert.True(t, res.Converged)
	assert.Equal(t, "Headlines,Work[Mail,Wiki]", outline(res.Tree))
	assert.Equal(t, outline(currentTree()), outline(store.Nodes()), "store must not change")

	assert.Empty(t, res.Snapshot)
	assert.Empty(t, snaps.trees)
	require.Len(t, snaps.reports, 1)
	assert.True(t, snaps.reports[0].DryRun)
}

func TestService_ApplyNoChanges(t *testing.T) {
	snaps := &fakeSnapshots{}
	svc := NewService(newMemStore(), snaps, reconcile.DefaultConfig(), defaultConfig(), nil)

	res, err := svc.Apply(context.Background(), currentTree(), false, nil)
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Empty(t, res.Passes)
	assert.Empty(t, snaps.trees)
	assert.Empty(t, snaps.reports)
}

func TestService_ApplyBackupFailure(t *testing.T) {
	store := newMemStore()
	snaps := &fakeSnapshots{saveErr: errors.New("bucket missing")}
	svc := NewService(store, snaps, reconcile.DefaultConfig(), defaultConfig(), nil)

	_, err := svc.Apply(context.Background(), targetTree(), false, nil)
	assert.ErrorContains(t, err, "failed to back up current tree")
	assert.Equal(t, outline(currentTree()), outline(store.Nodes()))
}

func TestService_ApplyWithoutSnapshots(t *testing.T) {
	svc := NewService(newMemStore(), nil, reconcile.DefaultConfig(), defaultConfig(), nil)

	res, err := svc.Apply(context.Background(), targetTree(), false, nil)
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Empty(t, res.Snapshot)
	assert.Empty(t, res.Report)
}

func TestService_FollowUpPass(t *testing.T) {
	t.Run("RecoversTransientFailure", func(t *testing.T) {
		store := &flakyStore{memStore: newMemStore(), failures: 1}
		svc := NewService(store, nil, reconcile.DefaultConfig(), defaultConfig(), nil)

		res, err := svc.Apply(context.Background(), targetTree(), false, nil)
		require.NoError(t, err)

		require.Len(t, res.Passes, 2)
		assert.False(t, res.Passes[0].Success)
		assert.Equal(t, 1, res.Passes[0].FailedOperations)
		assert.True(t, res.Passes[1].Success)
		assert.True(t, res.Converged)
		assert.Equal(t, "Headlines,Work[Mail,Wiki]", outline(store.Nodes()))
	})

	t.Run("StopsAtMaxPasses", func(t *testing.T) {
		store := &flakyStore{memStore: newMemStore(), failures: 10}
		cfg := defaultConfig()
		cfg.MaxPasses = 1
		svc := NewService(store, nil, reconcile.DefaultConfig(), cfg, nil)

		res, err := svc.Apply(context.Background(), targetTree(), false, nil)
		require.NoError(t, err)

		require.Len(t, res.Passes, 1)
		assert.False(t, res.Converged)
		assert.Equal(t, 1, res.Remaining)
	})
}

func TestService_ApplyRestoresDeletedNodes(t *testing.T) {
	// The backup still holds a folder that was deleted after it was taken.
	backup := append(currentTree(), reconcile.Node{ID: "old", Title: "Archive", Children: []reconcile.Node{
		{ID: "old-1", Title: "Stale", URL: "https://stale"},
	}})
	store := newMemStore()
	svc := NewService(store, nil, reconcile.DefaultConfig(), defaultConfig(), nil)

	res, err := svc.Apply(context.Background(), backup, false, nil)
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Zero(t, res.Remaining)
	require.Len(t, res.Passes, 1)
	assert.Equal(t, 2, res.Passes[0].ExecutedOperations)
	assert.Equal(t, "Work[Docs,Mail],News,Archive[Stale]", outline(store.Nodes()))
}

func TestService_ApplyCancelled(t *testing.T) {
	snaps := &fakeSnapshots{}
	svc := NewService(newMemStore(), snaps, reconcile.DefaultConfig(), defaultConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	// Cancel once the first operation has been applied.
	progress := func(reconcile.ProgressEvent) { cancel() }

	res, err := svc.Apply(ctx, targetTree(), false, progress)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.False(t, res.Converged)
	assert.Positive(t, res.Remaining)

	require.Len(t, snaps.reports, 1)
	assert.NotEmpty(t, snaps.reports[0].Error)
}
