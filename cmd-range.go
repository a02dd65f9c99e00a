package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
)

func newCmd_Range() *cli.Command {
	return &cli.Command{
		Name:        "range",
		Usage:       "Read one byte range [start, end) of a URL's object to stdout.",
		Description: "Resolves <url> against the registry built from <config-path> and writes the half-open byte range [start, end) to stdout.",
		ArgsUsage:   "<config-path> <url> <start> <end>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 4 {
				return fmt.Errorf("usage: range <config-path> <url> <start> <end>")
			}
			configPath, rawURL := c.Args().Get(0), c.Args().Get(1)
			start, err := strconv.ParseInt(c.Args().Get(2), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid start: %w", err)
			}
			end, err := strconv.ParseInt(c.Args().Get(3), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid end: %w", err)
			}

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

			data, err := s.GetRange(c.Context, path, start, end)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%s: read %s\n", path, humanize.Bytes(uint64(len(data))))
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}
