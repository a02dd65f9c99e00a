package main

import (
	"fmt"

	"github.com/virtual-zarr/obspec-utils/cachestore"
	"github.com/virtual-zarr/obspec-utils/registry"
	"github.com/virtual-zarr/obspec-utils/splitstore"
	"github.com/virtual-zarr/obspec-utils/store"
	"github.com/virtual-zarr/obspec-utils/store/fsstore"
	"github.com/virtual-zarr/obspec-utils/store/httpstore"
	"github.com/virtual-zarr/obspec-utils/store/memstore"
	"github.com/virtual-zarr/obspec-utils/tracestore"
)

// BuildRegistry constructs every configured store (innermost backend first,
// then cache, then split, then trace) and registers it at its prefix.
func BuildRegistry(cfg *Config) (*registry.Registry, error) {
	reg := registry.New()
	for i, sc := range cfg.Stores {
		s, err := buildStore(sc)
		if err != nil {
			return nil, fmt.Errorf("stores[%d] (%s): %w", i, sc.Prefix, err)
		}
		if err := reg.Register(sc.Prefix, s); err != nil {
			return nil, fmt.Errorf("stores[%d] (%s): %w", i, sc.Prefix, err)
		}
	}
	return reg, nil
}

// prefixSetter is implemented by backends whose served root corresponds
// exactly to their registered prefix (fsstore, httpstore), letting the
// registry strip that prefix back off via registry.PrefixAdvertiser.
type prefixSetter interface {
	SetPrefix(string)
}

func buildStore(sc StoreConfig) (store.Store, error) {
	var s store.Store
	switch sc.Kind {
	case "memory":
		s = memstore.New()
	case "fs":
		s = fsstore.New(sc.Options["root"])
	case "http":
		s = httpstore.New(sc.Options["base_url"])
	default:
		return nil, fmt.Errorf("unsupported kind %q", sc.Kind)
	}
	if ps, ok := s.(prefixSetter); ok {
		p, err := registry.PathOf(sc.Prefix)
		if err != nil {
			return nil, err
		}
		ps.SetPrefix(p)
	}

	if sc.Cache != nil {
		s = cachestore.New(s, sc.Cache.MaxSizeBytes)
	}
	if sc.Split != nil {
		s = splitstore.New(s, sc.Split.RequestSizeBytes, sc.Split.MaxConcurrentRequests)
	}
	if sc.Trace {
		s = tracestore.New(s, nil)
	}
	return s, nil
}
