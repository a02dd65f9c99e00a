package tracestore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/virtual-zarr/obspec-utils/reader"
	"github.com/virtual-zarr/obspec-utils/store"
	"github.com/virtual-zarr/obspec-utils/store/memstore"
)

func TestGetRecordsAFullObjectRequest(t *testing.T) {
	under := memstore.New()
	under.Put("a.bin", []byte("hello world"))
	s := New(under, nil)

	_, err := s.Get(context.Background(), "a.bin", nil)
	require.NoError(t, err)

	records := s.Trace.Records()
	require.Len(t, records, 1)
	require.Equal(t, MethodGet, records[0].Method)
	require.Equal(t, int64(11), records[0].Length)
}

func TestGetRangeRecordsRequestedBounds(t *testing.T) {
	under := memstore.New()
	under.Put("a.bin", []byte("hello world"))
	s := New(under, nil)

	_, err := s.GetRange(context.Background(), "a.bin", 6, 11)
	require.NoError(t, err)

	records := s.Trace.Records()
	require.Len(t, records, 1)
	require.Equal(t, MethodGetRange, records[0].Method)
	require.Equal(t, int64(6), records[0].Start)
	require.Equal(t, int64(5), records[0].Length)
}

func TestGetRangeLengthRecordsLengthStyle(t *testing.T) {
	under := memstore.New()
	under.Put("a.bin", []byte("hello world"))
	s := New(under, nil)

	data, err := s.GetRangeLength(context.Background(), "a.bin", 6, 5)
	require.NoError(t, err)
	require.Equal(t, []byte("world"), data)

	records := s.Trace.Records()
	require.Len(t, records, 1)
	require.Equal(t, MethodGetRange, records[0].Method)
	require.Equal(t, RangeStyleLength, records[0].RangeStyle)
	require.Equal(t, int64(6), records[0].Start)
	require.Equal(t, int64(5), records[0].Length)
	require.Equal(t, int64(11), records[0].End)
}

// A Buffered reader fetching through a tracestore-wrapped store reaches
// GetRangeLength via store.LengthRanger, so its trace records length-style
// rather than collapsing to end-style: spec.md §6's range_style column is
// only meaningfully "length" if some caller actually reaches it this way.
func TestBufferedReaderThroughTraceRecordsLengthStyle(t *testing.T) {
	under := memstore.New()
	under.Put("a.bin", []byte("0123456789"))
	s := New(under, nil)

	r := reader.NewBuffered(context.Background(), s, "a.bin", 4)
	data, err := r.Read(2)
	require.NoError(t, err)
	require.Equal(t, []byte("01"), data)

	var found bool
	for _, rec := range s.Trace.Records() {
		if rec.Method == MethodGetRange && rec.RangeStyle == RangeStyleLength {
			found = true
		}
	}
	require.True(t, found, "expected a length-style GetRange record from the buffered reader")
}

func TestGetRangesRecordsOneRecordPerSubRange(t *testing.T) {
	under := memstore.New()
	under.Put("a.bin", []byte("0123456789"))
	s := New(under, nil)

	_, err := s.GetRanges(context.Background(), "a.bin", []int64{0, 4, 8}, []int64{2, 6, 10})
	require.NoError(t, err)
	require.Len(t, s.Trace.Records(), 3)
	require.Equal(t, int64(10), s.Trace.TotalBytes())
}

func TestHeadRecordsAZeroLengthRequest(t *testing.T) {
	under := memstore.New()
	under.Put("a.bin", []byte("hello"))
	s := New(under, nil)

	_, err := s.Head(context.Background(), "a.bin")
	require.NoError(t, err)

	records := s.Trace.Records()
	require.Len(t, records, 1)
	require.Equal(t, MethodHead, records[0].Method)
	require.Equal(t, int64(0), records[0].Length)
	require.Equal(t, RangeStyleNone, records[0].RangeStyle)
}

func TestRecordsFailedCallsToo(t *testing.T) {
	under := memstore.New()
	s := New(under, nil)

	_, err := s.Get(context.Background(), "missing.bin", nil)
	require.Error(t, err)

	records := s.Trace.Records()
	require.Len(t, records, 1)
	require.Error(t, records[0].Err)
}

func TestOnRequestFiresSynchronously(t *testing.T) {
	under := memstore.New()
	under.Put("a.bin", []byte("hi"))

	var seen []Method
	s := New(under, func(r Record) { seen = append(seen, r.Method) })

	_, err := s.Get(context.Background(), "a.bin", nil)
	require.NoError(t, err)
	require.Equal(t, []Method{MethodGet}, seen)
}

func TestWriteCSVIncludesHeaderAndRecords(t *testing.T) {
	under := memstore.New()
	under.Put("a.bin", []byte("hello"))
	s := New(under, nil)

	_, err := s.Get(context.Background(), "a.bin", nil)
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, s.Trace.WriteCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "path")
	require.Contains(t, lines[1], "a.bin")
}

func TestSummaryAggregatesPerMethod(t *testing.T) {
	under := memstore.New()
	under.Put("a.bin", []byte("0123456789"))
	s := New(under, nil)

	_, err := s.Get(context.Background(), "a.bin", nil)
	require.NoError(t, err)
	_, err = s.Head(context.Background(), "a.bin")
	require.NoError(t, err)

	summary := s.Trace.Summary()
	require.Equal(t, 1, summary[MethodGet].Count)
	require.Equal(t, 1, summary[MethodHead].Count)
	require.Equal(t, int64(10), summary[MethodGet].TotalBytes)
}

func TestUnwrapReturnsUnderlying(t *testing.T) {
	under := memstore.New()
	s := New(under, nil)
	var u store.Unwrappable = s
	require.Same(t, under, u.Unwrap())
}
