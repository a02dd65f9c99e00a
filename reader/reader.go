// Package reader implements the C3 file-like readers that adapt store.Store
// to the read/seek/tell contract expected by binary-format libraries.
package reader

import (
	"context"
	"fmt"

	"github.com/virtual-zarr/obspec-utils/store"
)

// Whence values for Seek, matching io.Seeker.
const (
	SeekStart   = 0
	SeekCurrent = 1
	SeekEnd     = 2
)

// Reader is the common file-like contract every C3 strategy implements.
type Reader interface {
	// Read reads up to n bytes from the current position; n == -1 reads to
	// end of file. Returns fewer bytes than requested only at EOF.
	Read(n int64) ([]byte, error)
	// ReadAll reads the entire object regardless of position.
	ReadAll() ([]byte, error)
	Seek(offset int64, whence int) (int64, error)
	Tell() int64
	Close() error
}

// clampRead computes the [start, end) window for a Read(n) call against an
// object of the given size, clamping to EOF uniformly across readers.
func clampRead(position, n, size int64) (start, end int64) {
	start = position
	if start > size {
		start = size
	}
	if n < 0 {
		return start, size
	}
	end = start + n
	if end > size {
		end = size
	}
	return start, end
}

func resolveSeek(position, offset int64, whence int, size int64) (int64, error) {
	var target int64
	switch whence {
	case SeekStart:
		target = offset
	case SeekCurrent:
		target = position + offset
	case SeekEnd:
		target = size + offset
	default:
		return 0, fmt.Errorf("reader: %w: %d", store.ErrInvalidWhence, whence)
	}
	if target < 0 {
		target = 0
	}
	return target, nil
}

// headSize is shared by every reader to lazily resolve an object's size on
// first need.
func headSize(ctx context.Context, s store.Store, path string) (int64, error) {
	meta, err := s.Head(ctx, path)
	if err != nil {
		return 0, err
	}
	return meta.Size, nil
}

// fetchRangeLength fetches [start, start+length) the way the buffered
// reader naturally thinks about a fetch: as an offset plus a length,
// not an end offset. When the store implements store.LengthRanger (a
// tracing wrapper, say), the length is preserved end-to-end instead of
// being collapsed into a plain GetRange(start, end) call.
func fetchRangeLength(ctx context.Context, s store.Store, path string, start, length int64) ([]byte, error) {
	if lr, ok := s.(store.LengthRanger); ok {
		return lr.GetRangeLength(ctx, path, start, length)
	}
	return s.GetRange(ctx, path, start, start+length)
}
