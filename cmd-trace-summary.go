package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/virtual-zarr/obspec-utils/store"
	"github.com/virtual-zarr/obspec-utils/tracestore"
)

func newCmd_TraceSummary() *cli.Command {
	return &cli.Command{
		Name:        "trace-summary",
		Usage:       "Fetch a URL (optionally a byte range) under the tracing wrapper and print the tabular trace.",
		Description: "Resolves <url> against the registry built from <config-path>, wraps it in the tracing wrapper if it isn't already traced, performs one Get (or one GetRange when [start, end) are given), and writes the resulting trace as CSV to stdout.",
		ArgsUsage:   "<config-path> <url> [start] [end]",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 2 {
				return fmt.Errorf("usage: trace-summary <config-path> <url> [start] [end]")
			}
			configPath, rawURL := c.Args().Get(0), c.Args().Get(1)

			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			reg, err := BuildRegistry(cfg)
			if err != nil {
				return err
			}
			if err := reg.Open(c.Context); err != nil {
				return err
			}
			defer reg.Close()

			s, path, err := reg.Resolve(rawURL)
			if err != nil {
				return err
			}

			traced, ok := findTraceStore(s)
			if !ok {
				traced = tracestore.New(s, nil)
				s = traced
			}

			if c.Args().Len() >= 4 {
				start, err := strconv.ParseInt(c.Args().Get(2), 10, 64)
				if err != nil {
					return fmt.Errorf("invalid start: %w", err)
				}
				end, err := strconv.ParseInt(c.Args().Get(3), 10, 64)
				if err != nil {
					return fmt.Errorf("invalid end: %w", err)
				}
				if _, err := s.GetRange(c.Context, path, start, end); err != nil {
					return err
				}
			} else {
				if _, err := s.Get(c.Context, path, nil); err != nil {
					return err
				}
			}

			fmt.Fprintf(os.Stderr, "requests: %d, bytes: %s\n", traced.Trace.TotalRequests(), humanize.Bytes(uint64(traced.Trace.TotalBytes())))
			return traced.Trace.WriteCSV(os.Stdout)
		},
	}
}

// findTraceStore unwraps wrapper stores looking for an existing tracing
// wrapper, so a config that already sets trace: true isn't double-wrapped.
func findTraceStore(s store.Store) (*tracestore.Store, bool) {
	for {
		if t, ok := s.(*tracestore.Store); ok {
			return t, true
		}
		u, ok := s.(store.Unwrappable)
		if !ok {
			return nil, false
		}
		s = u.Unwrap()
	}
}
