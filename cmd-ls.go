package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/virtual-zarr/obspec-utils/globutil"
	"github.com/virtual-zarr/obspec-utils/store"
)

func newCmd_Ls() *cli.Command {
	return &cli.Command{
		Name:        "ls",
		Usage:       "List paths under a registered prefix matching a glob pattern.",
		Description: "Resolves <pattern> against the registry built from <config-path>, listing every path under the pattern's literal prefix and printing the ones that match.",
		ArgsUsage:   "<config-path> <pattern>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 2 {
				return fmt.Errorf("usage: ls <config-path> <pattern>")
			}
			configPath, pattern := c.Args().Get(0), c.Args().Get(1)

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

			s, path, err := reg.Resolve(pattern)
			if err != nil {
				return err
			}
			lister, ok := findLister(s)
			if !ok {
				return fmt.Errorf("store resolved for %q does not support listing", pattern)
			}

			paths, err := globutil.Glob(c.Context, lister, path)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Println(p)
			}
			return nil
		},
	}
}

// findLister unwraps wrapper stores (cachestore, splitstore, tracestore)
// looking for a backend that implements globutil.Lister: list is not one of
// the four core operations, so wrappers don't forward it automatically.
func findLister(s store.Store) (globutil.Lister, bool) {
	for {
		if l, ok := s.(globutil.Lister); ok {
			return l, true
		}
		u, ok := s.(store.Unwrappable)
		if !ok {
			return nil, false
		}
		s = u.Unwrap()
	}
}
