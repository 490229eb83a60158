package checks

import (
	"context"
	"errors"
	"testing"

	"bookmark-reconciler/core/storage/mocks"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCheckStorage(t *testing.T) {
	t.Run("Bucket Missing", func(t *testing.T) {
		mockClient := new(mocks.Client)
		mockClient.On("BucketExists", mock.Anything, "snapshots").Return(false, nil)

		report, err := CheckStorage(context.Background(), mockClient, "snapshots", "reconcile")
		require.NoError(t, err)
		assert.False(t, report.Exists)
		mockClient.AssertNotCalled(t, "ListObjects", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Counts Objects", func(t *testing.T) {
		mockClient := new(mocks.Client)
		mockClient.On("BucketExists", mock.Anything, "snapshots").Return(true, nil)
		mockClient.On("ListObjects", mock.Anything, "snapshots", minio.ListObjectsOptions{Prefix: "reconcile/trees/", Recursive: true}).Return(mocks.Listing("t1", "t2", "t3"))
		mockClient.On("ListObjects", mock.Anything, "snapshots", minio.ListObjectsOptions{Prefix: "reconcile/reports/", Recursive: true}).Return(mocks.Listing("r1", "r2"))

		report, err := CheckStorage(context.Background(), mockClient, "snapshots", "reconcile")
		require.NoError(t, err)
		assert.True(t, report.Exists)
		assert.Equal(t, 3, report.Trees)
		assert.Equal(t, 2, report.Reports)
	})

	t.Run("Error", func(t *testing.T) {
		mockClient := new(mocks.Client)
		mockClient.On("BucketExists", mock.Anything, "snapshots").Return(false, errors.New("unreachable"))

		_, err := CheckStorage(context.Background(), mockClient, "snapshots", "reconcile")
		assert.ErrorContains(t, err, "unreachable")
	})
}

func TestFixStorage(t *testing.T) {
	mockClient := new(mocks.Client)
	mockClient.On("BucketExists", mock.Anything, "snapshots").Return(false, nil)
	mockClient.On("MakeBucket", mock.Anything, "snapshots", minio.MakeBucketOptions{Region: "eu-west-1"}).Return(nil)

	err := FixStorage(context.Background(), mockClient, "snapshots", "eu-west-1", zap.NewNop())
	assert.NoError(t, err)
	mockClient.AssertExpectations(t)
}
