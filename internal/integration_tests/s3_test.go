//go:build integration
// +build integration

package integrationtests

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"crm-exporter/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bucketName = "test-bucket"

func setupTestObjectStore(t *testing.T, ctx context.Context) *storage.S3ObjectStore {
	t.Helper()

	endpoint := setupMinioContainer(t, ctx)

	objectStore, err := storage.NewS3ObjectStore(storage.S3ClientConfig{
		Endpoint:        endpoint,
		AccessKeyID:     minioUsername,
		SecretAccessKey: minioPassword,
	})
	require.NoError(t, err)

	require.NoError(t, objectStore.CreateBucket(ctx, bucketName))

	return objectStore
}

func TestS3ObjectStore_PutObject(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	objectStore := setupTestObjectStore(t, ctx)

	key := "test-dir/test-file.txt"
	content := []byte("Test content")

	require.NoError(t, objectStore.PutObject(ctx, bucketName, key, bytes.NewReader(content)))

	data, err := objectStore.GetObject(ctx, bucketName, key)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestS3ObjectStore_CreateBucketIdempotent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	objectStore := setupTestObjectStore(t, ctx)

	require.NoError(t, objectStore.CreateBucket(ctx, bucketName))
}

func TestS3ObjectStore_UploadFile(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	objectStore := setupTestObjectStore(t, ctx)

	local := filepath.Join(t.TempDir(), "output.csv")
	require.NoError(t, os.WriteFile(local, []byte("Id,Name\n001,Acme\n"), os.ModePerm))

	require.NoError(t, objectStore.UploadFile(ctx, local, bucketName, "exports/output.csv", false))

	data, err := objectStore.GetObject(ctx, bucketName, "exports/output.csv")
	require.NoError(t, err)
	assert.Equal(t, "Id,Name\n001,Acme\n", string(data))
}

func TestS3ObjectStore_UploadFileOverwrite(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	objectStore := setupTestObjectStore(t, ctx)

	local := filepath.Join(t.TempDir(), "output.csv")
	require.NoError(t, os.WriteFile(local, []byte("first"), os.ModePerm))
	require.NoError(t, objectStore.UploadFile(ctx, local, bucketName, "output.csv", false))

	// Without overwrite the second upload is rejected and the object is kept.
	err := objectStore.UploadFile(ctx, local, bucketName, "output.csv", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, os.WriteFile(local, []byte("second"), os.ModePerm))
	require.NoError(t, objectStore.UploadFile(ctx, local, bucketName, "output.csv", true))

	data, err := objectStore.GetObject(ctx, bucketName, "output.csv")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}
