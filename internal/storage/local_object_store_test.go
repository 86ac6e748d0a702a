package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalObjectStore(t *testing.T) {
	store, err := NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()

	require.NoError(t, store.CreateBucket(ctx, "exports"))
	require.NoError(t, store.PutObject(ctx, "exports", "nested/output.csv", strings.NewReader("Id,Name\n")))

	data, err := store.GetObject(ctx, "exports", "nested/output.csv")
	require.NoError(t, err)
	assert.Equal(t, "Id,Name\n", string(data))

	_, err = store.GetObject(ctx, "exports", "missing.csv")
	assert.Error(t, err)
}

func TestLocalObjectStoreUploadFile(t *testing.T) {
	store, err := NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()

	local := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(local, []byte("first"), 0644))

	require.NoError(t, store.UploadFile(ctx, local, "exports", "out.csv", false))

	// Without overwrite a second upload to the same key fails.
	err = store.UploadFile(ctx, local, "exports", "out.csv", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, os.WriteFile(local, []byte("second"), 0644))
	require.NoError(t, store.UploadFile(ctx, local, "exports", "out.csv", true))

	data, err := store.GetObject(ctx, "exports", "out.csv")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}
