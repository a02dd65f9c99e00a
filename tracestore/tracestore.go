// Package tracestore implements the tracing wrapper (C2c): it times every
// call made through it and appends a request record to an append-only
// trace log, even when the delegate call fails.
package tracestore

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/virtual-zarr/obspec-utils/store"
)

// Method tags a traced call.
type Method string

const (
	MethodGet       Method = "get"
	MethodGetRange  Method = "get_range"
	MethodGetRanges Method = "get_ranges"
	MethodHead      Method = "head"
)

// RangeStyle records whether the caller supplied end or length, for the
// tabular export's range_style column.
type RangeStyle string

const (
	RangeStyleEnd    RangeStyle = "end"
	RangeStyleLength RangeStyle = "length"
	RangeStyleNone   RangeStyle = ""
)

// Record is one logged call.
type Record struct {
	Path       string
	Start      int64
	Length     int64
	End        int64
	Timestamp  time.Time
	Duration   time.Duration
	Method     Method
	RangeStyle RangeStyle
	Err        error
}

// Trace is a single append-only log of Records, safe for concurrent append.
type Trace struct {
	mu      sync.Mutex
	records []Record
}

func NewTrace() *Trace { return &Trace{} }

func (t *Trace) add(r Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, r)
}

// Clear empties the trace log.
func (t *Trace) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = nil
}

// Records returns a copy of the logged records in append order.
func (t *Trace) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

func (t *Trace) TotalRequests() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

func (t *Trace) TotalBytes() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total int64
	for _, r := range t.records {
		total += r.Length
	}
	return total
}

// Summary aggregates count/bytes/min/max/mean duration per method.
type MethodSummary struct {
	Count       int
	TotalBytes  int64
	MinDuration time.Duration
	MaxDuration time.Duration
	MeanDuration time.Duration
}

func (t *Trace) Summary() map[Method]MethodSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[Method]MethodSummary)
	totalDur := make(map[Method]time.Duration)
	for _, r := range t.records {
		s := out[r.Method]
		s.Count++
		s.TotalBytes += r.Length
		if s.Count == 1 || r.Duration < s.MinDuration {
			s.MinDuration = r.Duration
		}
		if r.Duration > s.MaxDuration {
			s.MaxDuration = r.Duration
		}
		totalDur[r.Method] += r.Duration
		out[r.Method] = s
	}
	for m, s := range out {
		s.MeanDuration = totalDur[m] / time.Duration(s.Count)
		out[m] = s
	}
	return out
}

// WriteCSV writes the tabular export with columns:
// path,start,length,end,timestamp,duration,method,range_style
func (t *Trace) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"path", "start", "length", "end", "timestamp", "duration", "method", "range_style"}); err != nil {
		return err
	}
	for _, r := range t.Records() {
		if err := cw.Write([]string{
			r.Path,
			fmt.Sprintf("%d", r.Start),
			fmt.Sprintf("%d", r.Length),
			fmt.Sprintf("%d", r.End),
			r.Timestamp.Format(time.RFC3339Nano),
			fmt.Sprintf("%d", r.Duration.Nanoseconds()),
			string(r.Method),
			string(r.RangeStyle),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// OnRequestFunc is fired synchronously for each appended record, e.g. for
// live logging/visualization.
type OnRequestFunc func(Record)

// Store wraps a store, recording every call into Trace. SessionID
// identifies this wrapper instance in multi-store traces.
type Store struct {
	Underlying store.Store
	Trace      *Trace
	OnRequest  OnRequestFunc
	SessionID  string
}

// New wraps store with a fresh trace log.
func New(underlying store.Store, onRequest OnRequestFunc) *Store {
	return &Store{
		Underlying: underlying,
		Trace:      NewTrace(),
		OnRequest:  onRequest,
		SessionID:  uuid.NewString(),
	}
}

func (s *Store) Unwrap() store.Store { return s.Underlying }

func (s *Store) record(r Record) {
	s.Trace.add(r)
	if s.OnRequest != nil {
		s.OnRequest(r)
	}
}

func (s *Store) Get(ctx context.Context, path string, options *store.GetOptions) (store.GetResult, error) {
	start := time.Now()
	res, err := s.Underlying.Get(ctx, path, options)
	dur := time.Since(start)

	var rangeStyle RangeStyle
	var startOff, length, end int64
	if options != nil && options.Range != nil {
		rangeStyle = RangeStyleEnd
		startOff, end = options.Range.Start, options.Range.End
		length = end - startOff
	} else if err == nil {
		startOff, end = res.Range.Start, res.Range.End
		length = end - startOff
	}
	s.record(Record{Path: path, Start: startOff, Length: length, End: end, Timestamp: start, Duration: dur, Method: MethodGet, RangeStyle: rangeStyle, Err: err})
	return res, err
}

func (s *Store) GetRange(ctx context.Context, path string, start, end int64) ([]byte, error) {
	t0 := time.Now()
	data, err := s.Underlying.GetRange(ctx, path, start, end)
	dur := time.Since(t0)
	s.record(Record{Path: path, Start: start, Length: end - start, End: end, Timestamp: t0, Duration: dur, Method: MethodGetRange, RangeStyle: RangeStyleEnd, Err: err})
	return data, err
}

// GetRangeLength is the length-style counterpart to GetRange: callers that
// think in terms of a starting offset and a length (as the buffered reader
// does internally) call this instead, and the trace records
// RangeStyleLength rather than RangeStyleEnd for it. Satisfies
// store.LengthRanger.
func (s *Store) GetRangeLength(ctx context.Context, path string, start, length int64) ([]byte, error) {
	end := start + length
	t0 := time.Now()
	data, err := s.Underlying.GetRange(ctx, path, start, end)
	dur := time.Since(t0)
	s.record(Record{Path: path, Start: start, Length: length, End: end, Timestamp: t0, Duration: dur, Method: MethodGetRange, RangeStyle: RangeStyleLength, Err: err})
	return data, err
}

// GetRanges records N records, one per sub-range, each apportioned
// duration = total_duration / N.
func (s *Store) GetRanges(ctx context.Context, path string, starts, ends []int64) ([][]byte, error) {
	t0 := time.Now()
	data, err := s.Underlying.GetRanges(ctx, path, starts, ends)
	total := time.Since(t0)
	n := len(starts)
	if n == 0 {
		n = 1
	}
	per := total / time.Duration(n)
	for i := range starts {
		s.record(Record{Path: path, Start: starts[i], Length: ends[i] - starts[i], End: ends[i], Timestamp: t0, Duration: per, Method: MethodGetRanges, RangeStyle: RangeStyleEnd, Err: err})
	}
	return data, err
}

func (s *Store) Head(ctx context.Context, path string) (store.Metadata, error) {
	t0 := time.Now()
	meta, err := s.Underlying.Head(ctx, path)
	dur := time.Since(t0)
	s.record(Record{Path: path, Timestamp: t0, Duration: dur, Method: MethodHead, RangeStyle: RangeStyleNone, Err: err})
	return meta, err
}
