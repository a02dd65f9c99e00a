package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/virtual-zarr/obspec-utils/store"
	"github.com/virtual-zarr/obspec-utils/store/memstore"
)

// Resolve returns the full, unstripped path by default: spec.md §8 scenario
// S5 and the original registry.py's second doctest both assert the
// registered prefix stays on the returned path unless the store itself
// advertises a prefix to strip (see TestResolveStripsAdvertisedPrefix).
func TestResolveExactMatch(t *testing.T) {
	r := New()
	s := memstore.New()
	require.NoError(t, r.Register("file:///data", s))

	got, path, err := r.Resolve("file:///data/a.bin")
	require.NoError(t, err)
	require.Same(t, s, got)
	require.Equal(t, "data/a.bin", path)
}

func TestResolveLongestPrefixWins(t *testing.T) {
	r := New()
	outer := memstore.New()
	inner := memstore.New()
	require.NoError(t, r.Register("file:///data", outer))
	require.NoError(t, r.Register("file:///data/nested", inner))

	got, path, err := r.Resolve("file:///data/nested/a.bin")
	require.NoError(t, err)
	require.Same(t, inner, got)
	require.Equal(t, "data/nested/a.bin", path)

	got, path, err = r.Resolve("file:///data/b.bin")
	require.NoError(t, err)
	require.Same(t, outer, got)
	require.Equal(t, "data/b.bin", path)
}

func TestResolveNoMatchingSchemeOrAuthority(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("file:///data", memstore.New()))

	_, _, err := r.Resolve("https://example.com/data/a.bin")
	require.ErrorIs(t, err, store.ErrNoMatch)
}

func TestResolveNoMatchingPath(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("file:///data", memstore.New()))

	_, _, err := r.Resolve("file:///other/a.bin")
	require.ErrorIs(t, err, store.ErrNoMatch)
}

func TestRegisterRejectsURLWithoutScheme(t *testing.T) {
	r := New()
	err := r.Register("/data", memstore.New())
	require.ErrorIs(t, err, store.ErrInvalidURL)
}

type prefixAdvertisingStore struct {
	*memstore.Store
}

func (p *prefixAdvertisingStore) Prefix() string { return "data" }

func TestResolveStripsAdvertisedPrefix(t *testing.T) {
	r := New()
	s := &prefixAdvertisingStore{Store: memstore.New()}
	require.NoError(t, r.Register("file:///data", s))

	_, path, err := r.Resolve("file:///data/a.bin")
	require.NoError(t, err)
	require.Equal(t, "a.bin", path)
}

type scopedStore struct {
	*memstore.Store
	opened, closed bool
}

func (s *scopedStore) Open(ctx context.Context) error { s.opened = true; return nil }
func (s *scopedStore) Close() error                   { s.closed = true; return nil }

func TestOpenAndCloseCallScopedStoresOnly(t *testing.T) {
	r := New()
	scoped := &scopedStore{Store: memstore.New()}
	plain := memstore.New()
	require.NoError(t, r.Register("file:///a", scoped))
	require.NoError(t, r.Register("file:///b", plain))

	require.NoError(t, r.Open(context.Background()))
	require.True(t, scoped.opened)

	require.NoError(t, r.Close())
	require.True(t, scoped.closed)
}
