package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/virtual-zarr/obspec-utils/registry"
	"github.com/virtual-zarr/obspec-utils/store"
	"github.com/virtual-zarr/obspec-utils/store/fsstore"
	"github.com/virtual-zarr/obspec-utils/store/httpstore"
	"github.com/virtual-zarr/obspec-utils/uri"
)

func newCmd_Serve() *cli.Command {
	var configPath string
	var listenOverride string
	var adHocStores uri.List
	return &cli.Command{
		Name:        "serve",
		Usage:       "Serve range reads over a registry of configured stores via HTTP.",
		Description: "Resolves a registry config, registers every configured store, and runs an HTTP proxy server: GET /object?url=<scheme://authority/path> resolves the URL against the registry and serves the object, honoring an incoming Range header.",
		ArgsUsage:   "<config-path>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "listen",
				Usage:       "listen address; overrides the config file's listen field",
				Destination: &listenOverride,
			},
			&cli.GenericFlag{
				Name:  "store",
				Usage: "register an additional file:// or http(s):// URL as a store, on top of the config file (repeatable)",
				Value: &adHocStores,
			},
		},
		Before: func(c *cli.Context) error {
			configPath = c.Args().First()
			if configPath == "" {
				return fmt.Errorf("missing <config-path> argument")
			}
			return nil
		},
		Action: func(c *cli.Context) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			reg, err := BuildRegistry(cfg)
			if err != nil {
				return err
			}
			if err := registerAdHocStores(reg, adHocStores); err != nil {
				return err
			}
			if err := reg.Open(c.Context); err != nil {
				return fmt.Errorf("opening registry: %w", err)
			}
			defer reg.Close()

			listen := cfg.Listen
			if listenOverride != "" {
				listen = listenOverride
			}
			if listen == "" {
				listen = ":8080"
			}

			srv := &http.Server{
				Addr:    listen,
				Handler: newObjectHandler(reg),
			}
			go func() {
				<-c.Context.Done()
				klog.Info("serve: shutting down")
				srv.Shutdown(context.Background())
			}()
			klog.Infof("serve: listening on %s", listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}

func newObjectHandler(reg *registry.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/object", func(w http.ResponseWriter, r *http.Request) {
		serveObject(reg, w, r)
	})
	return mux
}

func serveObject(reg *registry.Registry, w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		http.Error(w, "missing url query parameter", http.StatusBadRequest)
		return
	}
	rawURL, err := url.QueryUnescape(rawURL)
	if err != nil {
		http.Error(w, "invalid url query parameter", http.StatusBadRequest)
		return
	}

	s, path, err := reg.Resolve(rawURL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	opts, err := rangeFromHeader(r.Header.Get("Range"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestedRangeNotSatisfiable)
		return
	}

	res, err := s.Get(r.Context(), path, opts)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	meta := res.Metadata
	w.Header().Set("Content-Length", strconv.FormatInt(int64(len(res.Bytes())), 10))
	w.Header().Set("Accept-Ranges", "bytes")
	if meta.ETag != "" {
		w.Header().Set("ETag", meta.ETag)
	}
	if !meta.LastModified.IsZero() {
		w.Header().Set("Last-Modified", meta.LastModified.UTC().Format(http.TimeFormat))
	}
	status := http.StatusOK
	if opts != nil && opts.Range != nil {
		rng := res.Range
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.Start, rng.End-1, meta.Size))
		status = http.StatusPartialContent
	}
	w.WriteHeader(status)
	w.Write(res.Bytes())
}

// rangeFromHeader parses an HTTP "Range: bytes=start-end" header (single
// range only) into a store.GetOptions.
func rangeFromHeader(h string) (*store.GetOptions, error) {
	if h == "" {
		return nil, nil
	}
	h = strings.TrimPrefix(h, "bytes=")
	parts := strings.SplitN(h, "-", 2)
	if len(parts) != 2 || parts[0] == "" {
		return nil, fmt.Errorf("unsupported Range header %q", h)
	}
	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("unsupported Range header %q", h)
	}
	var end int64 = -1
	if parts[1] != "" {
		endInclusive, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("unsupported Range header %q", h)
		}
		end = endInclusive + 1
	}
	if end < 0 {
		return nil, nil // open-ended ranges fall back to a full Get
	}
	return &store.GetOptions{Range: &store.Range{Start: start, End: end}}, nil
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrInvalidRange):
		http.Error(w, err.Error(), http.StatusRequestedRangeNotSatisfiable)
	case errors.Is(err, store.ErrConditionalFailed):
		http.Error(w, err.Error(), http.StatusPreconditionFailed)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// registerAdHocStores registers every --store flag directly at its own URL,
// inferring fsstore for local paths and httpstore for http(s) URLs, so a
// one-off object tree can be served without writing a config entry for it.
func registerAdHocStores(reg *registry.Registry, stores uri.List) error {
	for _, u := range stores {
		if !u.IsValid() {
			return fmt.Errorf("--store %q is not a valid file or web URL", u)
		}
		var s store.Store
		registerURL := u.String()
		if u.IsFile() {
			root := strings.TrimPrefix(u.String(), "file://")
			s = fsstore.New(root)
			if !strings.HasPrefix(registerURL, "file://") {
				registerURL = "file://" + registerURL
			}
		} else {
			s = httpstore.New(u.String())
		}
		if ps, ok := s.(interface{ SetPrefix(string) }); ok {
			p, err := registry.PathOf(registerURL)
			if err != nil {
				return fmt.Errorf("--store %q: %w", u, err)
			}
			ps.SetPrefix(p)
		}
		if err := reg.Register(registerURL, s); err != nil {
			return fmt.Errorf("--store %q: %w", u, err)
		}
	}
	return nil
}
