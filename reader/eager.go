package reader

import (
	"context"

	"github.com/virtual-zarr/obspec-utils/store"
)

// DefaultEagerRequestSize and DefaultEagerMaxConcurrentRequests match the
// original EagerStoreReader's cloud-tuned defaults.
const (
	DefaultEagerRequestSize           = 12 * 1024 * 1024
	DefaultEagerMaxConcurrentRequests = 18
)

// Eager fetches the entire object up-front into memory on construction
// (C3.2), then serves all subsequent read/seek/tell from the resident
// buffer.
type Eager struct {
	buf      []byte
	position int64
}

// EagerOptions configures NewEager.
type EagerOptions struct {
	RequestSize           int64
	FileSize              *int64
	MaxConcurrentRequests int
}

// NewEager fetches path's full content immediately: resolves
// size via Head unless FileSize is supplied, computes N = min(ceil(size /
// RequestSize), MaxConcurrentRequests), issues a single GetRanges fan-out
// when N > 1 or a plain Get otherwise.
func NewEager(ctx context.Context, s store.Store, path string, opts EagerOptions) (*Eager, error) {
	if opts.RequestSize <= 0 {
		opts.RequestSize = DefaultEagerRequestSize
	}
	if opts.MaxConcurrentRequests <= 0 {
		opts.MaxConcurrentRequests = DefaultEagerMaxConcurrentRequests
	}

	var size int64
	if opts.FileSize != nil {
		size = *opts.FileSize
	} else {
		var err error
		size, err = headSize(ctx, s, path)
		if err != nil {
			return nil, err
		}
	}

	if size == 0 {
		return &Eager{buf: []byte{}}, nil
	}

	requestSize := opts.RequestSize
	numRequests := (size + requestSize - 1) / requestSize
	if numRequests > int64(opts.MaxConcurrentRequests) {
		numRequests = int64(opts.MaxConcurrentRequests)
		requestSize = (size + numRequests - 1) / numRequests
	}

	var data []byte
	if numRequests == 1 {
		res, err := s.Get(ctx, path, nil)
		if err != nil {
			return nil, err
		}
		data = res.Bytes()
	} else {
		starts := make([]int64, numRequests)
		ends := make([]int64, numRequests)
		for i := int64(0); i < numRequests; i++ {
			start := i * requestSize
			end := start + requestSize
			if end > size {
				end = size
			}
			starts[i] = start
			ends[i] = end
		}
		parts, err := s.GetRanges(ctx, path, starts, ends)
		if err != nil {
			return nil, err
		}
		data = make([]byte, 0, size)
		for _, p := range parts {
			data = append(data, p...)
		}
	}

	return &Eager{buf: data}, nil
}

func (e *Eager) Read(n int64) ([]byte, error) {
	start, end := clampRead(e.position, n, int64(len(e.buf)))
	out := e.buf[start:end]
	e.position = end
	return out, nil
}

func (e *Eager) ReadAll() ([]byte, error) {
	out := make([]byte, len(e.buf))
	copy(out, e.buf)
	return out, nil
}

func (e *Eager) Seek(offset int64, whence int) (int64, error) {
	target, err := resolveSeek(e.position, offset, whence, int64(len(e.buf)))
	if err != nil {
		return 0, err
	}
	e.position = target
	return target, nil
}

func (e *Eager) Tell() int64 { return e.position }

// Close releases the resident buffer.
func (e *Eager) Close() error {
	e.buf = nil
	return nil
}
