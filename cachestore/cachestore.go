// Package cachestore implements the whole-object caching wrapper (C2a): it
// caches entire objects in a bounded byte-size LRU on first access and
// serves get/get_range/get_ranges from the cache afterward.
package cachestore

import (
	"container/list"
	"context"
	"sync"

	"k8s.io/klog/v2"

	"github.com/virtual-zarr/obspec-utils/metrics"
	"github.com/virtual-zarr/obspec-utils/store"
)

// DefaultMaxSize is the default whole-object cache budget (256 MiB), a
// reasonable default for a read-heavy service.
const DefaultMaxSize = 256 * 1024 * 1024

type entry struct {
	path string
	data []byte
	meta store.Metadata
}

// Store is a value-type wrapper: Underlying and MaxSize are its
// configuration, cheaply cloned to reconstruct a fresh, empty cache in
// another worker or process.
type Store struct {
	Underlying store.Store
	MaxSize    int64
	Name       string

	mu          sync.Mutex
	cache       map[string]*list.Element // path -> element (list.Element.Value is *entry)
	lru         *list.List               // front = MRU, back = LRU
	currentSize int64

	fetching sync.Map // path -> *sync.Cond
}

// New wraps store with a whole-object LRU cache bounded at maxSize bytes.
// maxSize <= 0 uses DefaultMaxSize.
func New(underlying store.Store, maxSize int64) *Store {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Store{
		Underlying: underlying,
		MaxSize:    maxSize,
		Name:       "cachestore",
		cache:      make(map[string]*list.Element),
		lru:        list.New(),
	}
}

// Unwrap exposes the wrapped store.
func (s *Store) Unwrap() store.Store { return s.Underlying }

// CacheSize returns the current cache occupancy in bytes.
func (s *Store) CacheSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentSize
}

// CachedPaths returns cached paths in LRU order, oldest first.
func (s *Store) CachedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, s.lru.Len())
	for e := s.lru.Back(); e != nil; e = e.Prev() {
		out = append(out, e.Value.(*entry).path)
	}
	return out
}

// Clear evicts every cached object.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*list.Element)
	s.lru = list.New()
	s.currentSize = 0
	metrics.CacheSizeBytes.WithLabelValues(s.Name).Set(0)
}

// Close implements a scoped-acquisition release: the cache is cleared on
// scope exit, even if the caller is exiting because of an error.
func (s *Store) Close() error {
	s.Clear()
	return nil
}

// addLocked inserts data for path, evicting LRU entries until it fits.
// Caller must hold s.mu.
func (s *Store) addLocked(path string, data []byte, meta store.Metadata) {
	size := int64(len(data))
	for s.currentSize+size > s.MaxSize && s.lru.Len() > 0 {
		oldest := s.lru.Back()
		oe := oldest.Value.(*entry)
		s.lru.Remove(oldest)
		delete(s.cache, oe.path)
		s.currentSize -= int64(len(oe.data))
		metrics.CacheEvictionsTotal.WithLabelValues(s.Name).Inc()
		klog.V(5).Infof("cachestore: evicted %q, occupied=%d", oe.path, s.currentSize)
	}
	el := s.lru.PushFront(&entry{path: path, data: data, meta: meta})
	s.cache[path] = el
	s.currentSize += size
	metrics.CacheSizeBytes.WithLabelValues(s.Name).Set(float64(s.currentSize))
}

// ensureCached fetches the full object via Underlying.Get if path is not
// already cached; moves path to MRU on a hit. The lock is released across
// the network fetch and the cache state is re-checked after reacquiring it.
// A caller that finds a fetch for the same path already in flight waits on
// that path's sync.Cond and is served from its result; if that fetch
// failed, the waiter fetches itself.
func (s *Store) ensureCached(ctx context.Context, path string) (*entry, error) {
	s.mu.Lock()
	if el, ok := s.cache[path]; ok {
		s.lru.MoveToFront(el)
		e := el.Value.(*entry)
		s.mu.Unlock()
		metrics.CacheHitsTotal.WithLabelValues(s.Name).Inc()
		return e, nil
	}

	condIface, loaded := s.fetching.LoadOrStore(path, sync.NewCond(&s.mu))
	cond := condIface.(*sync.Cond)
	if loaded {
		cond.Wait()
		if el, ok := s.cache[path]; ok {
			s.lru.MoveToFront(el)
			e := el.Value.(*entry)
			s.mu.Unlock()
			return e, nil
		}
		// The previous fetch failed; become the new fetcher below.
		s.fetching.LoadOrStore(path, cond)
	}
	s.mu.Unlock()
	metrics.CacheMissesTotal.WithLabelValues(s.Name).Inc()

	res, err := s.Underlying.Get(ctx, path, nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetching.Delete(path)
	cond.Broadcast()
	if err != nil {
		return nil, err
	}
	// Re-check: a concurrent fetch may already have populated the entry;
	// in that case the existing entry is kept and the bytes just fetched
	// are dropped.
	if el, ok := s.cache[path]; ok {
		s.lru.MoveToFront(el)
		return el.Value.(*entry), nil
	}
	s.addLocked(path, res.Bytes(), res.Metadata)
	return s.cache[path].Value.(*entry), nil
}

func (s *Store) Get(ctx context.Context, path string, options *store.GetOptions) (store.GetResult, error) {
	e, err := s.ensureCached(ctx, path)
	if err != nil {
		return store.GetResult{}, err
	}
	data := e.data
	rng := store.Range{Start: 0, End: int64(len(data))}
	if options != nil && options.Range != nil {
		r := *options.Range
		if r.Start < 0 || r.End > int64(len(data)) || r.Start > r.End {
			return store.GetResult{}, store.ErrInvalidRange
		}
		rng = r
		data = data[r.Start:r.End]
	}
	out := make([]byte, len(data))
	copy(out, data)
	return store.NewGetResult(e.meta, rng, out), nil
}

func (s *Store) GetRange(ctx context.Context, path string, start, end int64) ([]byte, error) {
	e, err := s.ensureCached(ctx, path)
	if err != nil {
		return nil, err
	}
	if start < 0 || end > int64(len(e.data)) || start > end {
		return nil, store.ErrInvalidRange
	}
	out := make([]byte, end-start)
	copy(out, e.data[start:end])
	return out, nil
}

func (s *Store) GetRanges(ctx context.Context, path string, starts, ends []int64) ([][]byte, error) {
	e, err := s.ensureCached(ctx, path)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(starts))
	for i := range starts {
		start, end := starts[i], ends[i]
		if start < 0 || end > int64(len(e.data)) || start > end {
			return nil, store.ErrInvalidRange
		}
		b := make([]byte, end-start)
		copy(b, e.data[start:end])
		out[i] = b
	}
	return out, nil
}

// Head always delegates; it never populates the cache.
func (s *Store) Head(ctx context.Context, path string) (store.Metadata, error) {
	return s.Underlying.Head(ctx, path)
}
