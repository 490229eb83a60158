package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"bookmark-reconciler/core/reconcile"
	"bookmark-reconciler/core/storage/mocks"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestStore(client *mocks.Client) *Store {
	s := NewStore(client, "snapshots", "reconcile")
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC) }
	return s
}

func TestStore_SaveTree(t *testing.T) {
	client := new(mocks.Client)
	s := newTestStore(client)
	tree := []reconcile.Node{{ID: "1", Title: "Work", Children: []reconcile.Node{{ID: "2", Title: "Docs", URL: "https://docs"}}}}

	var uploaded []byte
	client.On("PutObject", mock.Anything, "snapshots", "reconcile/trees/20260301T123000.000000000Z-before-apply.json",
		mock.Anything, mock.AnythingOfType("int64"), minio.PutObjectOptions{ContentType: "application/json"}).
		Run(func(args mock.Arguments) {
			uploaded, _ = io.ReadAll(args.Get(3).(io.Reader))
		}).
		Return(minio.UploadInfo{}, nil)

	key, err := s.SaveTree(context.Background(), "before-apply", tree)
	require.NoError(t, err)
	assert.Equal(t, "reconcile/trees/20260301T123000.000000000Z-before-apply.json", key)

	var decoded []reconcile.Node
	require.NoError(t, json.Unmarshal(uploaded, &decoded))
	assert.Equal(t, "Docs", decoded[0].Children[0].Title)
	client.AssertExpectations(t)
}

func TestStore_SaveTreeError(t *testing.T) {
	client := new(mocks.Client)
	client.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, errors.New("denied"))

	_, err := newTestStore(client).SaveTree(context.Background(), "x", nil)
	assert.ErrorContains(t, err, "failed to upload")
}

func TestStore_LoadTree(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		getErr  error
		wantErr string
		want    int
	}{
		{name: "Valid", body: `[{"id":"1","title":"A","url":"u"},{"id":"2","title":"B"}]`, want: 2},
		{name: "Malformed", body: `{`, wantErr: "failed to parse snapshot"},
		{name: "Missing", getErr: errors.New("NoSuchKey"), wantErr: "failed to get snapshot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(mocks.Client)
			if tt.getErr != nil {
				client.On("GetObject", mock.Anything, "snapshots", "k", mock.Anything).Return(nil, tt.getErr)
			} else {
				client.On("GetObject", mock.Anything, "snapshots", "k", mock.Anything).
					Return(io.NopCloser(strings.NewReader(tt.body)), nil)
			}

			nodes, err := newTestStore(client).LoadTree(context.Background(), "k")
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, nodes, tt.want)
		})
	}
}

func TestStore_SaveReport(t *testing.T) {
	client := new(mocks.Client)
	client.On("PutObject", mock.Anything, "snapshots", "reconcile/reports/20260301T123000.000000000Z-dry-run.json",
		mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, nil)

	key, err := newTestStore(client).SaveReport(context.Background(), Report{
		DryRun: true,
		Plan:   &reconcile.DiffResult{Operations: []reconcile.Operation{}},
	})
	require.NoError(t, err)
	assert.Contains(t, key, "dry-run")
}

func TestStore_ListNewestFirst(t *testing.T) {
	client := new(mocks.Client)
	client.On("ListObjects", mock.Anything, "snapshots", minio.ListObjectsOptions{Prefix: "reconcile/trees/", Recursive: true}).
		Return(mocks.Listing(
			"reconcile/trees/20260101T000000.000000000Z-a.json",
			"reconcile/trees/20260301T000000.000000000Z-c.json",
			"reconcile/trees/20260201T000000.000000000Z-b.json",
		))

	objects, err := newTestStore(client).List(context.Background(), KindTree)
	require.NoError(t, err)
	require.Len(t, objects, 3)
	assert.Contains(t, objects[0].Key, "-c.json")
	assert.Contains(t, objects[2].Key, "-a.json")
}

func TestStore_ListError(t *testing.T) {
	client := new(mocks.Client)
	client.On("ListObjects", mock.Anything, mock.Anything, mock.Anything).Return(mocks.ListingError(errors.New("access denied")))

	_, err := newTestStore(client).List(context.Background(), KindReport)
	assert.ErrorContains(t, err, "access denied")
}

func TestStore_Prune(t *testing.T) {
	keys := []string{
		"reconcile/trees/20260101T000000.000000000Z-a.json",
		"reconcile/trees/20260201T000000.000000000Z-b.json",
		"reconcile/trees/20260301T000000.000000000Z-c.json",
	}

	t.Run("RemovesOldest", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("ListObjects", mock.Anything, "snapshots", mock.Anything).Return(mocks.Listing(keys...))

		var removed []string
		client.On("RemoveObjects", mock.Anything, "snapshots", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				for obj := range args.Get(2).(<-chan minio.ObjectInfo) {
					removed = append(removed, obj.Key)
				}
			}).
			Return(nil)

		n, err := newTestStore(client).Prune(context.Background(), KindTree, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []string{keys[1], keys[0]}, removed)
	})

	t.Run("NothingToRemove", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("ListObjects", mock.Anything, "snapshots", mock.Anything).Return(mocks.Listing(keys...))

		n, err := newTestStore(client).Prune(context.Background(), KindTree, 5)
		require.NoError(t, err)
		assert.Zero(t, n)
		client.AssertNotCalled(t, "RemoveObjects", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("PartialFailure", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("ListObjects", mock.Anything, "snapshots", mock.Anything).Return(mocks.Listing(keys...))
		client.On("RemoveObjects", mock.Anything, "snapshots", mock.Anything, mock.Anything).
			Return(mocks.RemoveErrors(minio.RemoveObjectError{ObjectName: keys[0], Err: errors.New("locked")}))

		n, err := newTestStore(client).Prune(context.Background(), KindTree, 1)
		assert.ErrorContains(t, err, "locked")
		assert.Equal(t, 1, n)
	})
}
