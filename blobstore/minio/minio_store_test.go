package minio

import (
	"context"
	"testing"

	"github.com/hupe1980/umapgo/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreKey(t *testing.T) {
	s := NewStore(nil, "bucket", "root/")

	assert.Equal(t, "root/a/b", s.key("a/b"))
	assert.Equal(t, "root", s.key(""))
}

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := "localhost:9000"
	accessKey := "minioadmin"
	secretKey := "minioadmin"
	bucket := "test-umapgo"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	// Check if MinIO is reachable
	_, err = client.ListBuckets(ctx)
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	// Ensure bucket exists
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
		require.NoError(t, err)
	}

	store := NewStore(client, bucket, "test-prefix/")

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "dir/test.bin", data))

	got, err := store.Get(ctx, "dir/test.bin")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	names, err := store.List(ctx, "dir/")
	require.NoError(t, err)
	assert.Contains(t, names, "dir/test.bin")

	require.NoError(t, store.Delete(ctx, "dir/test.bin"))
	require.NoError(t, store.Delete(ctx, "dir/test.bin"))

	_, err = store.Get(ctx, "dir/test.bin")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
