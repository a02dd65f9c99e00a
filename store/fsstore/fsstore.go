// Package fsstore implements store.Store over a local filesystem directory,
// for file:// registrations.
package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/virtual-zarr/obspec-utils/store"
)

// Store serves objects rooted at a local directory.
type Store struct {
	root                       string
	prefix                     string
	maxConcurrentRangeRequests int
}

// New creates an fsstore rooted at dir.
func New(dir string) *Store {
	return &Store{root: dir, maxConcurrentRangeRequests: 8}
}

// SetPrefix records the URL path this store was registered under, so the
// registry can strip it back off and hand resolve() a root-relative path.
func (s *Store) SetPrefix(prefix string) { s.prefix = prefix }

// Prefix satisfies registry.PrefixAdvertiser: the root directory this store
// serves corresponds exactly to its registered prefix, not to the bucket/
// authority root, so the registry should strip it rather than hand resolve()
// a path that still contains it.
func (s *Store) Prefix() string { return s.prefix }

func (s *Store) resolve(path string) string {
	return filepath.Join(s.root, filepath.Clean("/"+path))
}

func (s *Store) Head(ctx context.Context, path string) (store.Metadata, error) {
	fi, err := os.Stat(s.resolve(path))
	if errors.Is(err, os.ErrNotExist) {
		return store.Metadata{}, store.ErrNotFound
	}
	if err != nil {
		return store.Metadata{}, err
	}
	return store.Metadata{Path: path, Size: fi.Size(), LastModified: fi.ModTime(), ETag: weakETag(path, fi.Size(), fi.ModTime().UnixNano())}, nil
}

// weakETag derives a cheap, stable identifier from path/size/mtime instead
// of hashing file content, so Head stays a single stat call.
func weakETag(path string, size, modNanos int64) string {
	h := xxhash.New()
	h.WriteString(path)
	h.WriteString(strconv.FormatInt(size, 10))
	h.WriteString(strconv.FormatInt(modNanos, 10))
	return strconv.FormatUint(h.Sum64(), 16)
}

func (s *Store) Get(ctx context.Context, path string, options *store.GetOptions) (store.GetResult, error) {
	meta, err := s.Head(ctx, path)
	if err != nil {
		return store.GetResult{}, err
	}
	rng := store.Range{Start: 0, End: meta.Size}
	if options != nil && options.Range != nil {
		rng = *options.Range
	}
	b, err := s.GetRange(ctx, path, rng.Start, rng.End)
	if err != nil {
		return store.GetResult{}, err
	}
	return store.NewGetResult(meta, rng, b), nil
}

func (s *Store) GetRange(ctx context.Context, path string, start, end int64) ([]byte, error) {
	if start == end {
		return []byte{}, nil
	}
	f, err := os.Open(s.resolve(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, end-start)
	n, err := f.ReadAt(buf, start)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("fsstore: read %q [%d,%d): %w", path, start, end, err)
	}
	return buf[:n], nil
}

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

// List walks the directory tree under prefix and returns every regular
// file's path, sorted, relative to the store root, for use with
// globutil.Glob.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	root := s.resolve(prefix)
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		out = append(out, strings.ReplaceAll(rel, string(filepath.Separator), "/"))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
