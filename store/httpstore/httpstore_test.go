package httpstore

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/virtual-zarr/obspec-utils/store"
)

func newTestServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/a.bin", func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "a.bin", time.Time{}, bytes.NewReader(body))
	})
	mux.HandleFunc("/missing.bin", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	return httptest.NewServer(mux)
}

func TestHeadAndGet(t *testing.T) {
	body := []byte("hello world")
	srv := newTestServer(t, body)
	defer srv.Close()
	s := New(srv.URL)

	meta, err := s.Head(context.Background(), "a.bin")
	require.NoError(t, err)
	require.Equal(t, int64(len(body)), meta.Size)

	res, err := s.Get(context.Background(), "a.bin", nil)
	require.NoError(t, err)
	require.Equal(t, body, res.Bytes())
}

func TestGetRange(t *testing.T) {
	body := []byte("hello world")
	srv := newTestServer(t, body)
	defer srv.Close()
	s := New(srv.URL)

	b, err := s.GetRange(context.Background(), "a.bin", 6, 11)
	require.NoError(t, err)
	require.Equal(t, []byte("world"), b)
}

func TestGetNotFound(t *testing.T) {
	srv := newTestServer(t, []byte("x"))
	defer srv.Close()
	s := New(srv.URL)

	_, err := s.Head(context.Background(), "missing.bin")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetRangesConcurrent(t *testing.T) {
	body := []byte("0123456789")
	srv := newTestServer(t, body)
	defer srv.Close()
	s := New(srv.URL)

	parts, err := s.GetRanges(context.Background(), "a.bin", []int64{0, 4, 8}, []int64{2, 6, 10})
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("01"), []byte("45"), []byte("89")}, parts)
}

func TestContentLengthFromResponseParsesTotal(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Content-Range": []string{"bytes 0-4/100"}}}
	require.Equal(t, int64(100), contentLengthFromResponse(resp, 5))
}

func TestContentLengthFromResponseFallsBackOnStar(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Content-Range": []string{"bytes 0-4/*"}}}
	require.Equal(t, int64(5), contentLengthFromResponse(resp, 5))
}
