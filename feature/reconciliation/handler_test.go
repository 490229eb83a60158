package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"bookmark-reconciler/core/reconcile"
	"bookmark-reconciler/feature/snapshot"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(store TreeStore, snaps Snapshots) *fiber.App {
	app := fiber.New()
	f := NewFeature(store, snaps, reconcile.DefaultConfig(), defaultConfig(), nil)
	_ = f.Load(app)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestFeature(t *testing.T) {
	f := NewFeature(newMemStore(), nil, reconcile.DefaultConfig(), defaultConfig(), nil)
	assert.Equal(t, "reconciliation", f.Name())
	assert.True(t, f.IsEnabled())

	disabled := NewFeature(nil, nil, reconcile.DefaultConfig(), defaultConfig(), nil)
	assert.False(t, disabled.IsEnabled())
}

func TestHandler_GetTree(t *testing.T) {
	status, body := doRequest(t, newTestApp(newMemStore(), nil), "GET", "/tree", "")
	require.Equal(t, 200, status)

	var tree []reconcile.Node
	require.NoError(t, json.Unmarshal(body, &tree))
	assert.Equal(t, outline(currentTree()), outline(tree))
}

func TestHandler_GetTreeError(t *testing.T) {
	status, body := doRequest(t, newTestApp(brokenStore{newMemStore()}, nil), "GET", "/tree", "")
	assert.Equal(t, 500, status)
	assert.Contains(t, string(body), "connection refused")
}

func TestHandler_Diff(t *testing.T) {
	app := newTestApp(newMemStore(), nil)
	target, err := json.Marshal(targetTree())
	require.NoError(t, err)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "AgainstStore", body: `{"target":` + string(target) + `}`, status: 200},
		{name: "WithOriginal", body: `{"original":[{"id":"1","title":"a","url":"u"}],"target":[{"id":"1","title":"b","url":"u"}]}`, status: 200},
		{name: "MalformedBody", body: `{"target":`, status: 400},
		{name: "InvalidTree", body: `{"target":[{"id":"x","title":"a","url":"u"},{"id":"x","title":"b","url":"v"}]}`, status: 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doRequest(t, app, "POST", "/reconcile/diff", tt.body)
			assert.Equal(t, tt.status, status, string(body))
			if tt.status != 200 {
				return
			}
			var plan reconcile.DiffResult
			require.NoError(t, json.Unmarshal(body, &plan))
			assert.NotEmpty(t, plan.Operations)
			assert.Equal(t, len(plan.Operations), plan.Stats.TotalOperations)
		})
	}
}

func TestHandler_Apply(t *testing.T) {
	store := newMemStore()
	app := newTestApp(store, &fakeSnapshots{})
	target, err := json.Marshal(targetTree())
	require.NoError(t, err)

	t.Run("DryRun", func(t *testing.T) {
		status, body := doRequest(t, app, "POST", "/reconcile/apply", `{"dry_run":true,"target":`+string(target)+`}`)
		require.Equal(t, 200, status, string(body))

		var res ApplyResult
		require.NoError(t, json.Unmarshal(body, &res))
		assert.True(t, res.DryRun)
		assert.True(t, res.Converged)
		assert.Equal(t, "Headlines,Work[Mail,Wiki]", outline(res.Tree))
		assert.Equal(t, outline(currentTree()), outline(store.Nodes()))
	})

	t.Run("Apply", func(t *testing.T) {
		status, body := doRequest(t, app, "POST", "/reconcile/apply", `{"target":`+string(target)+`}`)
		require.Equal(t, 200, status, string(body))

		var res ApplyResult
		require.NoError(t, json.Unmarshal(body, &res))
		assert.True(t, res.Converged)
		assert.NotEmpty(t, res.Snapshot)
		assert.Equal(t, "Headlines,Work[Mail,Wiki]", outline(store.Nodes()))
	})

	t.Run("MalformedBody", func(t *testing.T) {
		status, _ := doRequest(t, app, "POST", "/reconcile/apply", `[`)
		assert.Equal(t, 400, status)
	})
}

// rereadStore serves the first load and fails every later one with err.
type rereadStore struct {
	*memStore
	mu    sync.Mutex
	loads int
	err   error
}

func (s *rereadStore) LoadTree(ctx context.Context) ([]reconcile.Node, error) {
	s.mu.Lock()
	s.loads++
	first := s.loads == 1
	s.mu.Unlock()
	if !first {
		return nil, s.err
	}
	return s.memStore.LoadTree(ctx)
}

func TestHandler_ApplyErrorStatus(t *testing.T) {
	target, err := json.Marshal(targetTree())
	require.NoError(t, err)

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"VerifyLoadFails", errors.New("connection reset"), 500},
		{"DeadlineExceeded", fmt.Errorf("reload: %w", context.DeadlineExceeded), 503},
		{"Canceled", fmt.Errorf("reload: %w", context.Canceled), 503},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &rereadStore{memStore: newMemStore(), err: tt.err}
			status, body := doRequest(t, newTestApp(store, nil), "POST", "/reconcile/apply", `{"target":`+string(target)+`}`)
			assert.Equal(t, tt.status, status, string(body))
			assert.Contains(t, string(body), tt.err.Error())

			var resp map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(body, &resp))
			_, hasResult := resp["result"]
			assert.Equal(t, tt.status == 503, hasResult)
		})
	}
}

func TestHandler_ApplyRebuildRejected(t *testing.T) {
	var big []reconcile.Node
	for i := 0; i < 120; i++ {
		big = append(big, reconcile.Node{Title: "b", URL: "u"})
	}
	target, err := json.Marshal(big)
	require.NoError(t, err)

	store := newMemStore()
	status, body := doRequest(t, newTestApp(store, &fakeSnapshots{}), "POST", "/reconcile/apply", `{"target":`+string(target)+`}`)
	assert.Equal(t, 422, status)
	assert.Contains(t, string(body), "rebuild")
	assert.Equal(t, outline(currentTree()), outline(store.Nodes()))
}

func TestHandler_ListSnapshots(t *testing.T) {
	tests := []struct {
		name   string
		snaps  Snapshots
		query  string
		status int
		want   int
	}{
		{name: "Trees", snaps: &fakeSnapshots{}, query: "", status: 200, want: 1},
		{name: "Reports", snaps: &fakeSnapshots{}, query: "?kind=reports", status: 200, want: 1},
		{name: "Disabled", snaps: nil, query: "", status: 200, want: 0},
		{name: "UnknownKind", snaps: &fakeSnapshots{}, query: "?kind=blobs", status: 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doRequest(t, newTestApp(newMemStore(), tt.snaps), "GET", "/reconcile/snapshots"+tt.query, "")
			require.Equal(t, tt.status, status)
			if tt.status != 200 {
				return
			}
			var objects []snapshot.Object
			require.NoError(t, json.Unmarshal(body, &objects))
			assert.Len(t, objects, tt.want)
		})
	}
}
