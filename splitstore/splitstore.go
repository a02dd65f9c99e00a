// Package splitstore implements the splitting wrapper (C2b): it accelerates
// a full-object Get by fanning it out into parallel GetRanges calls.
package splitstore

import (
	"context"

	"k8s.io/klog/v2"

	"github.com/virtual-zarr/obspec-utils/metrics"
	"github.com/virtual-zarr/obspec-utils/store"
)

// DefaultRequestSize is the target size of each parallel part, tuned for
// cloud storage throughput (matches the eager reader's default).
const DefaultRequestSize = 12 * 1024 * 1024

// DefaultMaxConcurrentRequests bounds how many parts a single Get may fan
// out into.
const DefaultMaxConcurrentRequests = 18

// Store is a value-type wrapper; RequestSize/MaxConcurrentRequests are its
// only state, so it is cheaply cloned across workers.
type Store struct {
	Underlying             store.Store
	RequestSize            int64
	MaxConcurrentRequests  int
}

// New wraps store so that Get fans out into parallel GetRanges calls for
// large objects. requestSize <= 0 and maxConcurrent <= 0 use the defaults.
func New(underlying store.Store, requestSize int64, maxConcurrent int) *Store {
	if requestSize <= 0 {
		requestSize = DefaultRequestSize
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRequests
	}
	return &Store{Underlying: underlying, RequestSize: requestSize, MaxConcurrentRequests: maxConcurrent}
}

func (s *Store) Unwrap() store.Store { return s.Underlying }

// computeRanges mirrors splitting.py's _compute_ranges: returns nil when no
// splitting should occur (size==0 or a single part suffices).
func (s *Store) computeRanges(size int64) (starts, ends []int64) {
	if size == 0 {
		return nil, nil
	}
	requestSize := s.RequestSize
	numRequests := (size + requestSize - 1) / requestSize
	if numRequests > int64(s.MaxConcurrentRequests) {
		numRequests = int64(s.MaxConcurrentRequests)
		requestSize = (size + numRequests - 1) / numRequests
	}
	if numRequests <= 1 {
		return nil, nil
	}
	starts = make([]int64, numRequests)
	ends = make([]int64, numRequests)
	for i := int64(0); i < numRequests; i++ {
		start := i * requestSize
		end := start + requestSize
		if end > size {
			end = size
		}
		starts[i] = start
		ends[i] = end
	}
	return starts, ends
}

// Get with options (a sub-range or a precondition) passes through
// unchanged. Otherwise it calls Head first to learn the object size, then
// either delegates to a plain Get (size==0 or a single part) or fans out
// into one GetRanges call and concatenates the result. A failing Head
// propagates without falling back to a plain Get.
func (s *Store) Get(ctx context.Context, path string, options *store.GetOptions) (store.GetResult, error) {
	if options != nil {
		return s.Underlying.Get(ctx, path, options)
	}
	meta, err := s.Underlying.Head(ctx, path)
	if err != nil {
		return store.GetResult{}, err
	}

	starts, ends := s.computeRanges(meta.Size)
	if starts == nil {
		klog.V(5).Infof("splitstore: %q size=%d, single get (no split)", path, meta.Size)
		return s.Underlying.Get(ctx, path, options)
	}

	metrics.SplitPartsHistogram.Observe(float64(len(starts)))
	klog.V(5).Infof("splitstore: %q size=%d split into %d parts", path, meta.Size, len(starts))
	parts, err := s.Underlying.GetRanges(ctx, path, starts, ends)
	if err != nil {
		return store.GetResult{}, err
	}
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	buf := make([]byte, 0, total)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return store.NewGetResult(meta, store.Range{Start: 0, End: meta.Size}, buf), nil
}

// GetRange passes through unchanged: callers have already sized it.
func (s *Store) GetRange(ctx context.Context, path string, start, end int64) ([]byte, error) {
	return s.Underlying.GetRange(ctx, path, start, end)
}

// GetRanges passes through unchanged.
func (s *Store) GetRanges(ctx context.Context, path string, starts, ends []int64) ([][]byte, error) {
	return s.Underlying.GetRanges(ctx, path, starts, ends)
}

// Head passes through unchanged.
func (s *Store) Head(ctx context.Context, path string) (store.Metadata, error) {
	return s.Underlying.Head(ctx, path)
}
