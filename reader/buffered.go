package reader

import (
	"context"
	"os"

	"github.com/virtual-zarr/obspec-utils/store"
)

// DefaultBufferSize is the default read-ahead buffer size, page-aligned in
// the style of readahead.CachingReader's chunk sizing.
var DefaultBufferSize = alignToPageSize(12 * 1024 * 1024)

func alignToPageSize(n int) int {
	pageSize := os.Getpagesize()
	return (n + pageSize - 1) &^ (pageSize - 1)
}

// Buffered is a single-read-ahead-buffer reader (C3.1): tuned for forward
// sequential reads with small backward seeks that stay within the current
// buffer.
type Buffered struct {
	ctx        context.Context
	store      store.Store
	path       string
	bufferSize int64

	size       int64
	sizeKnown  bool
	position   int64
	buf        []byte
	bufStart   int64
}

// NewBuffered creates a Buffered reader. bufferSize <= 0 uses DefaultBufferSize.
func NewBuffered(ctx context.Context, s store.Store, path string, bufferSize int64) *Buffered {
	if bufferSize <= 0 {
		bufferSize = int64(DefaultBufferSize)
	}
	return &Buffered{ctx: ctx, store: s, path: path, bufferSize: bufferSize}
}

func (b *Buffered) ensureSize() error {
	if b.sizeKnown {
		return nil
	}
	size, err := headSize(b.ctx, b.store, b.path)
	if err != nil {
		return err
	}
	b.size = size
	b.sizeKnown = true
	return nil
}

// Read serves from the buffer when [position, position+n)
// is fully contained in it; otherwise issue one GetRange of
// max(n, bufferSize) bytes, clamped to EOF, and replace the buffer.
func (b *Buffered) Read(n int64) ([]byte, error) {
	if err := b.ensureSize(); err != nil {
		return nil, err
	}
	start, end := clampRead(b.position, n, b.size)
	if start >= b.size {
		return []byte{}, nil
	}
	if b.buf != nil && start >= b.bufStart && end <= b.bufStart+int64(len(b.buf)) {
		data := b.buf[start-b.bufStart : end-b.bufStart]
		b.position = end
		return data, nil
	}

	fetchLen := end - start
	if fetchLen < b.bufferSize {
		fetchLen = b.bufferSize
	}
	if start+fetchLen > b.size {
		fetchLen = b.size - start
	}
	data, err := fetchRangeLength(b.ctx, b.store, b.path, start, fetchLen)
	if err != nil {
		return nil, err
	}
	b.buf = data
	b.bufStart = start

	sliceEnd := end - start
	if sliceEnd > int64(len(data)) {
		sliceEnd = int64(len(data))
	}
	out := data[:sliceEnd]
	b.position = start + int64(len(out))
	return out, nil
}

// ReadAll falls back to a full Get, bypassing the read-ahead buffer.
func (b *Buffered) ReadAll() ([]byte, error) {
	res, err := b.store.Get(b.ctx, b.path, nil)
	if err != nil {
		return nil, err
	}
	return res.Bytes(), nil
}

func (b *Buffered) Seek(offset int64, whence int) (int64, error) {
	if err := b.ensureSize(); err != nil {
		return 0, err
	}
	target, err := resolveSeek(b.position, offset, whence, b.size)
	if err != nil {
		return 0, err
	}
	b.position = target
	return target, nil
}

func (b *Buffered) Tell() int64 { return b.position }

// Close releases the read-ahead buffer.
func (b *Buffered) Close() error {
	b.buf = nil
	return nil
}
