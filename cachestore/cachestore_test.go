package cachestore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/virtual-zarr/obspec-utils/store"
	"github.com/virtual-zarr/obspec-utils/store/memstore"
)

// countingStore wraps memstore.Store to count Get calls, for verifying the
// cache only fetches once per path.
type countingStore struct {
	*memstore.Store
	gets int64
}

func (c *countingStore) Get(ctx context.Context, path string, options *store.GetOptions) (store.GetResult, error) {
	atomic.AddInt64(&c.gets, 1)
	return c.Store.Get(ctx, path, options)
}

func TestGetCachesAfterFirstFetch(t *testing.T) {
	under := &countingStore{Store: memstore.New()}
	under.Put("a.bin", []byte("hello world"))
	c := New(under, 0)

	res1, err := c.Get(context.Background(), "a.bin", nil)
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), res1.Bytes())

	res2, err := c.Get(context.Background(), "a.bin", nil)
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), res2.Bytes())

	require.EqualValues(t, 1, under.gets)
}

func TestGetRangeServesFromCache(t *testing.T) {
	under := memstore.New()
	under.Put("a.bin", []byte("hello world"))
	c := New(under, 0)

	b, err := c.GetRange(context.Background(), "a.bin", 6, 11)
	require.NoError(t, err)
	require.Equal(t, []byte("world"), b)
}

func TestEvictsOldestWhenOverBudget(t *testing.T) {
	under := memstore.New()
	under.Put("a.bin", []byte("aaaaa"))
	under.Put("b.bin", []byte("bbbbb"))
	c := New(under, 8) // only one 5-byte object fits comfortably

	_, err := c.Get(context.Background(), "a.bin", nil)
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "b.bin", nil)
	require.NoError(t, err)

	paths := c.CachedPaths()
	require.NotContains(t, paths, "a.bin")
	require.Contains(t, paths, "b.bin")
}

func TestHeadNeverPopulatesCache(t *testing.T) {
	under := memstore.New()
	under.Put("a.bin", []byte("hello"))
	c := New(under, 0)

	_, err := c.Head(context.Background(), "a.bin")
	require.NoError(t, err)
	require.Zero(t, c.CacheSize())
}

func TestClearEmptiesCache(t *testing.T) {
	under := memstore.New()
	under.Put("a.bin", []byte("hello"))
	c := New(under, 0)

	_, err := c.Get(context.Background(), "a.bin", nil)
	require.NoError(t, err)
	require.NotZero(t, c.CacheSize())

	c.Clear()
	require.Zero(t, c.CacheSize())
}

func TestConcurrentGetsFetchAtMostAFewTimes(t *testing.T) {
	under := &countingStore{Store: memstore.New()}
	under.Put("a.bin", []byte("hello world"))
	c := New(under, 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), "a.bin", nil)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Less(t, atomic.LoadInt64(&under.gets), int64(20))
}
