// Package memstore is an in-memory store.Store backend, used as the test
// fixture for wrapper and reader tests and as the "memory" store kind of
// the registry config.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/virtual-zarr/obspec-utils/store"
)

type object struct {
	data         []byte
	lastModified time.Time
	etag         string
}

// Store is a thread-safe in-memory implementation of store.Store.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{objects: make(map[string]object)}
}

// Put inserts or replaces an object. Not part of store.Store; this is the
// fixture-construction API used by tests.
func (s *Store) Put(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[path] = object{data: cp, lastModified: time.Now()}
}

// Delete removes an object, if present.
func (s *Store) Delete(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, path)
}

func (s *Store) get(path string) (object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[path]
	return obj, ok
}

func (s *Store) Head(ctx context.Context, path string) (store.Metadata, error) {
	obj, ok := s.get(path)
	if !ok {
		return store.Metadata{}, store.ErrNotFound
	}
	return store.Metadata{
		Path:         path,
		Size:         int64(len(obj.data)),
		LastModified: obj.lastModified,
		ETag:         obj.etag,
	}, nil
}

func (s *Store) Get(ctx context.Context, path string, options *store.GetOptions) (store.GetResult, error) {
	obj, ok := s.get(path)
	if !ok {
		return store.GetResult{}, store.ErrNotFound
	}
	meta := store.Metadata{Path: path, Size: int64(len(obj.data)), LastModified: obj.lastModified, ETag: obj.etag}
	rng := store.Range{Start: 0, End: int64(len(obj.data))}
	data := obj.data
	if options != nil && options.Range != nil {
		r := *options.Range
		if r.Start < 0 || r.End > int64(len(obj.data)) || r.Start > r.End {
			return store.GetResult{}, store.ErrInvalidRange
		}
		rng = r
		data = obj.data[r.Start:r.End]
	}
	out := make([]byte, len(data))
	copy(out, data)
	return store.NewGetResult(meta, rng, out), nil
}

func (s *Store) GetRange(ctx context.Context, path string, start, end int64) ([]byte, error) {
	obj, ok := s.get(path)
	if !ok {
		return nil, store.ErrNotFound
	}
	if start < 0 || end > int64(len(obj.data)) || start > end {
		return nil, store.ErrInvalidRange
	}
	out := make([]byte, end-start)
	copy(out, obj.data[start:end])
	return out, nil
}

func (s *Store) GetRanges(ctx context.Context, path string, starts, ends []int64) ([][]byte, error) {
	out := make([][]byte, len(starts))
	for i := range starts {
		b, err := s.GetRange(ctx, path, starts[i], ends[i])
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// List returns every registered path beginning with prefix, sorted, for use
// with globutil.Glob.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for path := range s.objects {
		if strings.HasPrefix(path, prefix) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out, nil
}
