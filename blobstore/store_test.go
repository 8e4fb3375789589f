package blobstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s Store) {
	t.Helper()

	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.Put(ctx, "a/one", []byte("1")))
	require.NoError(t, s.Put(ctx, "a/two", []byte("22")))
	require.NoError(t, s.Put(ctx, "b/three", []byte("333")))

	data, err := s.Get(ctx, "a/two")
	require.NoError(t, err)
	assert.Equal(t, []byte("22"), data)

	require.NoError(t, s.Put(ctx, "a/two", []byte("twenty-two")))
	data, err = s.Get(ctx, "a/two")
	require.NoError(t, err)
	assert.Equal(t, []byte("twenty-two"), data)

	names, err := s.List(ctx, "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/one", "a/two"}, names)

	names, err = s.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/one", "a/two", "b/three"}, names)

	ok, err := Exists(ctx, s, "b/three")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "b/three"))
	require.NoError(t, s.Delete(ctx, "b/three"))

	ok, err = Exists(ctx, s, "b/three")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	buf := []byte("abc")
	require.NoError(t, s.Put(ctx, "x", buf))
	buf[0] = 'z'

	data, err := s.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	data[1] = 'z'
	data, err = s.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)
}

func TestLocalStore(t *testing.T) {
	testStore(t, NewLocalStore(t.TempDir()))
}

func TestLocalStoreLayout(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewLocalStore(root)

	require.NoError(t, s.Put(ctx, "dir/blob", []byte("data")))

	raw, err := os.ReadFile(filepath.Join(root, "dir", "blob"))
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), raw)

	entries, err := os.ReadDir(filepath.Join(root, "dir"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalStoreMissingRoot(t *testing.T) {
	s := NewLocalStore(filepath.Join(t.TempDir(), "absent"))

	names, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStoreCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewLocalStore(t.TempDir())
	assert.ErrorIs(t, s.Put(ctx, "x", nil), context.Canceled)

	_, err := s.Get(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTieredStore(t *testing.T) {
	testStore(t, NewTieredStore(NewMemoryStore(), NewMemoryStore()))
}

func TestTieredStoreFillsFastTier(t *testing.T) {
	ctx := context.Background()
	fast, slow := NewMemoryStore(), NewMemoryStore()

	require.NoError(t, slow.Put(ctx, "blob", []byte("payload")))

	s := NewTieredStore(fast, slow)

	data, err := s.Get(ctx, "blob")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
	assert.Equal(t, 1, slow.Gets())

	data, err = s.Get(ctx, "blob")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
	assert.Equal(t, 1, slow.Gets())

	cached, err := fast.Get(ctx, "blob")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), cached)
}

func TestTrimRoot(t *testing.T) {
	assert.Equal(t, "a/b", TrimRoot("root/a/b", "root"))
	assert.Equal(t, "a/b", TrimRoot("root/a/b", "root/"))
	assert.Equal(t, "a/b", TrimRoot("a/b", ""))
}
