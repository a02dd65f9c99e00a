package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

var gitCommitSHA = ""

func main() {
	// set up a context that is canceled when a command is interrupted
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// set up a signal handler to cancel the context
	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, syscall.SIGTERM, syscall.SIGINT)

		select {
		case <-interrupt:
			fmt.Println()
			klog.Info("received interrupt signal")
			cancel()
		case <-ctx.Done():
		}

		// Allow any further SIGTERM or SIGINT to kill process
		signal.Stop(interrupt)
	}()

	app := &cli.App{
		Name:        "obspec-utils",
		Version:     gitCommitSHA,
		Description: "CLI to read, cache, split, trace, and serve ranges of immutable objects across local disk, in-memory, and HTTP(S) stores through a single registry.",
		Before: func(c *cli.Context) error {
			return nil
		},
		Flags:  append([]cli.Flag{}, NewKlogFlagSet()...),
		Action: nil,
		Commands: []*cli.Command{
			newCmd_Serve(),
			newCmd_Cat(),
			newCmd_Range(),
			newCmd_Ls(),
			newCmd_TraceSummary(),
			newCmd_Version(),
		},
	}

	sort.Sort(cli.FlagsByName(app.Flags))
	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.RunContext(ctx, os.Args); err != nil {
		klog.Fatal(err)
	}
}
