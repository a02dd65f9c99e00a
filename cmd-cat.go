package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/virtual-zarr/obspec-utils/reader"
)

func newCmd_Cat() *cli.Command {
	var showProgress bool
	return &cli.Command{
		Name:        "cat",
		Usage:       "Read a URL's full object to stdout.",
		Description: "Resolves <url> against the registry built from <config-path> and writes its full content to stdout via an eager reader.",
		ArgsUsage:   "<config-path> <url>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "progress",
				Usage:       "print a progress bar and byte count to stderr",
				Destination: &showProgress,
			},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 2 {
				return fmt.Errorf("usage: cat <config-path> <url>")
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

			var bar *mpb.Bar
			var progress *mpb.Progress
			if showProgress {
				if meta, err := s.Head(c.Context, path); err == nil {
					progress = mpb.New(mpb.WithOutput(os.Stderr))
					bar = progress.AddBar(meta.Size,
						mpb.PrependDecorators(decor.Name(path)),
						mpb.AppendDecorators(decor.CountersKibiByte("% .1f / % .1f")),
					)
				}
			}

			r, err := reader.NewEager(c.Context, s, path, reader.EagerOptions{})
			if err != nil {
				return err
			}
			defer r.Close()

			data, err := r.ReadAll()
			if err != nil {
				return err
			}
			if bar != nil {
				bar.SetCurrent(int64(len(data)))
				progress.Wait()
			}
			if showProgress {
				fmt.Fprintf(os.Stderr, "%s: %s\n", path, humanize.Bytes(uint64(len(data))))
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}
