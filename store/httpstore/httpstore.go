// Package httpstore implements store.Store over plain HTTP(S) range
// requests, the way a CDN-fronted or signed-URL object store is accessed.
package httpstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/virtual-zarr/obspec-utils/metrics"
	"github.com/virtual-zarr/obspec-utils/store"
)

// Store fetches ranges of a single base URL's object tree over HTTP(S).
// Paths are joined onto the base URL with a "/".
type Store struct {
	base       string
	client     *http.Client
	maxRetries int
	retryWait  time.Duration
	// maxConcurrentRangeRequests bounds the number of in-flight requests
	// issued by a single GetRanges call.
	maxConcurrentRangeRequests int
	prefix                     string
}

// SetPrefix records the URL path this store was registered under, so the
// registry can strip it back off before joining onto base.
func (s *Store) SetPrefix(prefix string) { s.prefix = prefix }

// Prefix satisfies registry.PrefixAdvertiser: base already points at this
// store's registered location, so resolved paths should be relative to it.
func (s *Store) Prefix() string { return s.prefix }

// Option configures a Store.
type Option func(*Store)

// WithClient overrides the HTTP client (default: NewHTTPClient()).
func WithClient(c *http.Client) Option { return func(s *Store) { s.client = c } }

// WithMaxConcurrentRangeRequests bounds GetRanges fan-out concurrency.
func WithMaxConcurrentRangeRequests(n int) Option {
	return func(s *Store) { s.maxConcurrentRangeRequests = n }
}

// New creates a Store rooted at baseURL (e.g. "https://bucket.s3.amazonaws.com").
func New(baseURL string, opts ...Option) *Store {
	s := &Store{
		base:                       strings.TrimRight(baseURL, "/"),
		client:                     NewHTTPClient(),
		maxRetries:                 3,
		retryWait:                  100 * time.Millisecond,
		maxConcurrentRangeRequests: 16,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) url(path string) string {
	return s.base + "/" + strings.TrimLeft(path, "/")
}

func (s *Store) Head(ctx context.Context, path string) (store.Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.url(path), nil)
	if err != nil {
		return store.Metadata{}, err
	}
	resp, err := s.do(req, "HEAD")
	if err != nil {
		return store.Metadata{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return store.Metadata{}, store.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return store.Metadata{}, fmt.Errorf("httpstore: head %q: unexpected status %d", path, resp.StatusCode)
	}
	return metadataFromHeader(path, resp.Header, resp.ContentLength), nil
}

func (s *Store) Get(ctx context.Context, path string, options *store.GetOptions) (store.GetResult, error) {
	var rng *store.Range
	if options != nil {
		rng = options.Range
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url(path), nil)
	if err != nil {
		return store.GetResult{}, err
	}
	applyConditional(req, options)
	if rng != nil {
		if rng.Start == rng.End {
			meta, herr := s.Head(ctx, path)
			if herr != nil {
				return store.GetResult{}, herr
			}
			return store.NewGetResult(meta, *rng, nil), nil
		}
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", rng.Start, rng.End-1))
	}

	resp, err := s.do(req, "GET")
	if err != nil {
		return store.GetResult{}, err
	}
	defer resp.Body.Close()
	if err := statusToError(resp.StatusCode); err != nil {
		return store.GetResult{}, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return store.GetResult{}, fmt.Errorf("httpstore: read body for %q: %w", path, err)
	}
	meta := metadataFromHeader(path, resp.Header, contentLengthFromResponse(resp, int64(len(body))))
	outRng := store.Range{Start: 0, End: meta.Size}
	if rng != nil {
		outRng = *rng
	}
	return store.NewGetResult(meta, outRng, body), nil
}

func (s *Store) GetRange(ctx context.Context, path string, start, end int64) ([]byte, error) {
	if start == end {
		return []byte{}, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url(path), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end-1))
	resp, err := s.do(req, "GET")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := statusToError(resp.StatusCode); err != nil {
		return nil, err
	}
	want := int(end - start)
	buf := make([]byte, want)
	n, err := io.ReadFull(resp.Body, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("httpstore: range read for %q [%d,%d): %w", path, start, end, err)
	}
	return buf[:n], nil
}

// GetRanges fetches N ranges with bounded concurrency, grounded on the
// split-car-fetcher errgroup.SetLimit fan-out pattern. Results align 1:1
// with starts/ends.
func (s *Store) GetRanges(ctx context.Context, path string, starts, ends []int64) ([][]byte, error) {
	out := make([][]byte, len(starts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrentRangeRequests)
	for i := range starts {
		i := i
		g.Go(func() error {
			b, err := s.GetRange(gctx, path, starts[i], ends[i])
			if err != nil {
				return err
			}
			out[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) do(req *http.Request, method string) (*http.Response, error) {
	var resp *http.Response
	wait := s.retryWait
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		var err error
		resp, err = s.client.Do(req)
		code := "error"
		if err == nil {
			code = strconv.Itoa(resp.StatusCode)
		}
		metrics.HTTPRequestsTotal.WithLabelValues(method, code).Inc()
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}
		if err == nil {
			resp.Body.Close()
		}
		lastErr = err
		if attempt == s.maxRetries {
			break
		}
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(wait):
			wait *= 2
		}
		klog.V(5).Infof("httpstore: retrying %s %s after error: %v", method, req.URL, lastErr)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("httpstore: %s %s failed with status %d", method, req.URL, resp.StatusCode)
	}
	return nil, fmt.Errorf("httpstore: %s %s: %w", method, req.URL, lastErr)
}

func applyConditional(req *http.Request, options *store.GetOptions) {
	if options == nil {
		return
	}
	if options.IfMatch != "" {
		req.Header.Set("If-Match", options.IfMatch)
	}
	if options.IfNoneMatch != "" {
		req.Header.Set("If-None-Match", options.IfNoneMatch)
	}
}

func statusToError(code int) error {
	switch {
	case code == http.StatusNotFound:
		return store.ErrNotFound
	case code == http.StatusPreconditionFailed || code == http.StatusNotModified:
		return store.ErrConditionalFailed
	case code == http.StatusOK || code == http.StatusPartialContent:
		return nil
	default:
		return fmt.Errorf("httpstore: unexpected status %d", code)
	}
}

// contentLengthFromResponse prefers Content-Range's total, falling back to
// chunk size when the total is "*" or absent.
func contentLengthFromResponse(resp *http.Response, chunkSize int64) int64 {
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		if idx := strings.LastIndexByte(cr, '/'); idx >= 0 && idx < len(cr)-1 {
			total := cr[idx+1:]
			if total != "*" {
				if n, err := strconv.ParseInt(total, 10, 64); err == nil {
					return n
				}
			}
		}
	}
	if resp.ContentLength > 0 {
		return resp.ContentLength
	}
	return chunkSize
}

func metadataFromHeader(path string, h http.Header, size int64) store.Metadata {
	lastModified := time.Now()
	if lm := h.Get("Last-Modified"); lm != "" {
		if t, err := time.Parse(time.RFC1123, lm); err == nil {
			lastModified = t
		}
	}
	extra := make(map[string]string)
	for _, k := range []string{"Content-Type", "Cache-Control", "Content-Encoding", "Content-Language", "Content-Disposition"} {
		if v := h.Get(k); v != "" {
			extra[k] = v
		}
	}
	return store.Metadata{
		Path:         path,
		Size:         size,
		LastModified: lastModified,
		ETag:         h.Get("ETag"),
		Extra:        extra,
	}
}
