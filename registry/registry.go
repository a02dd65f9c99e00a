// Package registry implements the URL → (store, path) routing trie (C4).
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goware/urlx"

	"github.com/virtual-zarr/obspec-utils/store"
)

// urlKey identifies the per-(scheme, authority) trie a URL's path is routed
// through.
type urlKey struct {
	scheme    string
	authority string
}

type pathEntry struct {
	store    store.Store
	children map[string]*pathEntry
}

func newPathEntry() *pathEntry {
	return &pathEntry{children: make(map[string]*pathEntry)}
}

// PrefixAdvertiser is optionally implemented by a store that knows its own
// registered prefix, which the registry strips from the resolved path on
// top of its own prefix-stripping.
type PrefixAdvertiser interface {
	Prefix() string
}

// Registry maps URLs to (store, trailing path) via a per-(scheme,authority)
// trie of path segments.
type Registry struct {
	mu    sync.RWMutex
	tries map[urlKey]*pathEntry
	// stores is the flat set of every registered store, for Open/Close.
	stores []store.Store
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{tries: make(map[urlKey]*pathEntry)}
}

func pathSegments(path string) []string {
	raw := strings.Split(path, "/")
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// PathOf returns the joined, slash-separated path segments of rawURL (no
// scheme/authority, no leading slash) — the same shape Resolve returns and
// the shape a PrefixAdvertiser.Prefix() should be expressed in. Callers
// that register a store at a URL and want it to advertise that same URL as
// its prefix (see store/fsstore, store/httpstore) use this instead of
// passing the raw registration URL straight to SetPrefix.
func PathOf(rawURL string) (string, error) {
	u, err := urlx.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", store.ErrInvalidURL, rawURL, err)
	}
	return strings.Join(pathSegments(u.Path), "/"), nil
}

// Register attaches s to the URL's path within its (scheme, authority)
// trie, replacing any prior attachment at that exact path.
func (r *Registry) Register(rawURL string, s store.Store) error {
	u, err := urlx.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", store.ErrInvalidURL, rawURL, err)
	}
	if u.Scheme == "" {
		return fmt.Errorf("%w: %s: missing scheme", store.ErrInvalidURL, rawURL)
	}

	key := urlKey{scheme: u.Scheme, authority: u.Host}

	r.mu.Lock()
	defer r.mu.Unlock()

	root, ok := r.tries[key]
	if !ok {
		root = newPathEntry()
		r.tries[key] = root
	}
	node := root
	for _, seg := range pathSegments(u.Path) {
		child, ok := node.children[seg]
		if !ok {
			child = newPathEntry()
			node.children[seg] = child
		}
		node = child
	}
	node.store = s
	r.stores = append(r.stores, s)
	return nil
}

// Resolve looks up (scheme, authority) and walks the path remembering the
// deepest node with a non-nil store. By default it returns the full,
// unstripped path alongside that store: the registered prefix is not
// removed unless the store (or a store under it in its Unwrap chain)
// implements PrefixAdvertiser, in which case the matched path segments are
// removed and the advertised prefix is then trimmed from the front of what
// remains.
func (r *Registry) Resolve(rawURL string) (store.Store, string, error) {
	u, err := urlx.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", store.ErrInvalidURL, rawURL, err)
	}
	if u.Scheme == "" {
		return nil, "", fmt.Errorf("%w: %s: missing scheme", store.ErrInvalidURL, rawURL)
	}
	key := urlKey{scheme: u.Scheme, authority: u.Host}

	r.mu.RLock()
	defer r.mu.RUnlock()

	root, ok := r.tries[key]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", store.ErrNoMatch, rawURL)
	}

	segments := pathSegments(u.Path)
	node := root
	var matchedStore store.Store
	matchedDepth := -1
	if node.store != nil {
		matchedStore = node.store
		matchedDepth = 0
	}
	for i, seg := range segments {
		child, ok := node.children[seg]
		if !ok {
			break
		}
		node = child
		if node.store != nil {
			matchedStore = node.store
			matchedDepth = i + 1
		}
	}
	if matchedStore == nil {
		return nil, "", fmt.Errorf("%w: %s", store.ErrNoMatch, rawURL)
	}

	remaining := strings.Join(segments, "/")
	if pa, ok := findPrefixAdvertiser(matchedStore); ok {
		remaining = strings.Join(segments[matchedDepth:], "/")
		remaining = strings.TrimPrefix(remaining, strings.Trim(pa.Prefix(), "/"))
		remaining = strings.TrimPrefix(remaining, "/")
	}
	return matchedStore, remaining, nil
}

// findPrefixAdvertiser walks s's Unwrap chain looking for a
// PrefixAdvertiser, the same capability-probe idiom cmd-ls.go and
// cmd-trace-summary.go use to find a Lister/*tracestore.Store underneath
// cachestore/splitstore/tracestore wrapping.
func findPrefixAdvertiser(s store.Store) (PrefixAdvertiser, bool) {
	for {
		if pa, ok := s.(PrefixAdvertiser); ok {
			return pa, true
		}
		u, ok := s.(store.Unwrappable)
		if !ok {
			return nil, false
		}
		s = u.Unwrap()
	}
}

// Open enters the registry's scope: every registered store that implements
// store.Scoped has Open called on it, in registration order. Stores that
// don't support scoping are silently left untouched, rather than rejecting
// or warning about them.
func (r *Registry) Open(ctx context.Context) error {
	r.mu.RLock()
	stores := append([]store.Store(nil), r.stores...)
	r.mu.RUnlock()
	for _, s := range stores {
		if sc, ok := s.(store.Scoped); ok {
			if err := sc.Open(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close exits the registry's scope, calling Close on every registered
// store that implements store.Scoped.
func (r *Registry) Close() error {
	r.mu.RLock()
	stores := append([]store.Store(nil), r.stores...)
	r.mu.RUnlock()
	var firstErr error
	for _, s := range stores {
		if sc, ok := s.(store.Scoped); ok {
			if err := sc.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
