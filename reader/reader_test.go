package reader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/virtual-zarr/obspec-utils/store/memstore"
)

func TestBufferedReadsSequentially(t *testing.T) {
	s := memstore.New()
	s.Put("a.bin", []byte("0123456789"))
	r := NewBuffered(context.Background(), s, "a.bin", 4)

	b, err := r.Read(3)
	require.NoError(t, err)
	require.Equal(t, []byte("012"), b)
	require.Equal(t, int64(3), r.Tell())

	b, err = r.Read(3)
	require.NoError(t, err)
	require.Equal(t, []byte("345"), b)
}

func TestBufferedReadAllBypassesBuffer(t *testing.T) {
	s := memstore.New()
	s.Put("a.bin", []byte("hello world"))
	r := NewBuffered(context.Background(), s, "a.bin", 4)

	b, err := r.ReadAll()
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), b)
}

func TestBufferedSeekAndReadNegativeLengthReadsToEOF(t *testing.T) {
	s := memstore.New()
	s.Put("a.bin", []byte("0123456789"))
	r := NewBuffered(context.Background(), s, "a.bin", 1024)

	_, err := r.Seek(5, SeekStart)
	require.NoError(t, err)

	b, err := r.Read(-1)
	require.NoError(t, err)
	require.Equal(t, []byte("56789"), b)
}

func TestBufferedSeekEndAndCurrent(t *testing.T) {
	s := memstore.New()
	s.Put("a.bin", []byte("0123456789"))
	r := NewBuffered(context.Background(), s, "a.bin", 1024)

	pos, err := r.Seek(-2, SeekEnd)
	require.NoError(t, err)
	require.Equal(t, int64(8), pos)

	pos, err = r.Seek(-1, SeekCurrent)
	require.NoError(t, err)
	require.Equal(t, int64(7), pos)
}

func TestBufferedSeekInvalidWhence(t *testing.T) {
	s := memstore.New()
	s.Put("a.bin", []byte("0123456789"))
	r := NewBuffered(context.Background(), s, "a.bin", 1024)

	_, err := r.Seek(0, 99)
	require.Error(t, err)
}

func TestEagerFetchesFullObjectUpFront(t *testing.T) {
	s := memstore.New()
	s.Put("a.bin", []byte("hello world"))
	r, err := NewEager(context.Background(), s, "a.bin", EagerOptions{})
	require.NoError(t, err)

	all, err := r.ReadAll()
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), all)

	b, err := r.Read(5)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), b)
}

func TestEagerReassemblesSplitFetchOfLargeObject(t *testing.T) {
	s := memstore.New()
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	s.Put("a.bin", data)

	r, err := NewEager(context.Background(), s, "a.bin", EagerOptions{RequestSize: 30, MaxConcurrentRequests: 8})
	require.NoError(t, err)

	all, err := r.ReadAll()
	require.NoError(t, err)
	require.Equal(t, data, all)
}

func TestEagerEmptyObject(t *testing.T) {
	s := memstore.New()
	s.Put("a.bin", []byte{})

	r, err := NewEager(context.Background(), s, "a.bin", EagerOptions{})
	require.NoError(t, err)

	all, err := r.ReadAll()
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestBlockReadSpansCachedAndUncachedBlocks(t *testing.T) {
	s := memstore.New()
	data := make([]byte, 30)
	for i := range data {
		data[i] = byte(i)
	}
	s.Put("a.bin", data)

	r := NewBlock(context.Background(), s, "a.bin", 10, 2)
	b, err := r.Read(5)
	require.NoError(t, err)
	require.Equal(t, data[0:5], b)

	b, err = r.Read(10)
	require.NoError(t, err)
	require.Equal(t, data[5:15], b)
}

func TestBlockEvictsOldestBlockPastCapacity(t *testing.T) {
	s := memstore.New()
	data := make([]byte, 40)
	for i := range data {
		data[i] = byte(i)
	}
	s.Put("a.bin", data)

	r := NewBlock(context.Background(), s, "a.bin", 10, 2)
	_, err := r.Read(10) // block 0
	require.NoError(t, err)
	_, err = r.Seek(10, SeekStart)
	require.NoError(t, err)
	_, err = r.Read(10) // block 1
	require.NoError(t, err)
	_, err = r.Seek(20, SeekStart)
	require.NoError(t, err)
	_, err = r.Read(10) // block 2, evicts block 0
	require.NoError(t, err)

	require.Len(t, r.cache, 2)
	_, ok := r.cache[0]
	require.False(t, ok)
}

func TestBlockSeekDoesNotInvalidateCache(t *testing.T) {
	s := memstore.New()
	s.Put("a.bin", []byte("0123456789"))
	r := NewBlock(context.Background(), s, "a.bin", 4, 4)

	_, err := r.Read(4)
	require.NoError(t, err)
	_, err = r.Seek(0, SeekStart)
	require.NoError(t, err)
	b, err := r.Read(4)
	require.NoError(t, err)
	require.Equal(t, []byte("0123"), b)
}

func TestNewParallelIsAnAliasForBlock(t *testing.T) {
	s := memstore.New()
	s.Put("a.bin", []byte("0123456789"))
	r := NewParallel(context.Background(), s, "a.bin", 4, 4)

	b, err := r.Read(4)
	require.NoError(t, err)
	require.Equal(t, []byte("0123"), b)
}

func TestClampReadHandlesNegativeLengthAndOverrun(t *testing.T) {
	start, end := clampRead(5, -1, 10)
	require.Equal(t, int64(5), start)
	require.Equal(t, int64(10), end)

	start, end = clampRead(5, 100, 10)
	require.Equal(t, int64(5), start)
	require.Equal(t, int64(10), end)
}
