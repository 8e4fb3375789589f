package blobstore

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// TieredStore serves reads from a fast store and falls back to a slow one,
// copying blobs it had to fetch into the fast store.
type TieredStore struct {
	fast Store
	slow Store
}

// NewTieredStore creates a TieredStore. Writes go to both stores.
func NewTieredStore(fast, slow Store) *TieredStore {
	return &TieredStore{fast: fast, slow: slow}
}

// Get reads a blob from the fast store, or from the slow store on a miss.
func (s *TieredStore) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := s.fast.Get(ctx, name)
	if err == nil {
		return data, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	data, err = s.slow.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	// A failed fill only costs a later miss.
	_ = s.fast.Put(ctx, name, data)

	return data, nil
}

// Put writes a blob to both stores concurrently.
func (s *TieredStore) Put(ctx context.Context, name string, data []byte) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.slow.Put(gctx, name, data) })
	g.Go(func() error { return s.fast.Put(gctx, name, data) })

	return g.Wait()
}

// Delete removes a blob from both stores.
func (s *TieredStore) Delete(ctx context.Context, name string) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.slow.Delete(gctx, name) })
	g.Go(func() error { return s.fast.Delete(gctx, name) })

	return g.Wait()
}

// List lists the slow store, which holds every blob.
func (s *TieredStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.slow.List(ctx, prefix)
}
