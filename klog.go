package main

import (
	"flag"
	"fmt"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

// stringKlogFlag describes a klog flag that mirrors a flag.FlagSet string
// value 1:1, only applying it when the CLI value is non-empty so an unset
// flag falls through to klog's own default.
type stringKlogFlag struct {
	name, usage, env string
}

var stringKlogFlags = []stringKlogFlag{
	{"log_dir", "If non-empty, write log files in this directory (no effect when -logtostderr=true)", "OBSPEC_LOG_DIR"},
	{"log_file", "If non-empty, use this log file (no effect when -logtostderr=true)", "OBSPEC_LOG_FILE"},
	{"stderrthreshold", "logs at or above this threshold go to stderr when writing to files and stderr (no effect when -logtostderr=true or -alsologtostderr=false)", "OBSPEC_STDERRTHRESHOLD"},
	{"vmodule", "comma-separated list of pattern=N settings for file-filtered logging", "OBSPEC_VMODULE"},
	{"log_backtrace_at", "when logging hits line file:N, emit a stack trace", "OBSPEC_LOG_BACKTRACE_AT"},
}

// boolKlogFlag describes a klog flag backed by a bool value in the
// flag.FlagSet, applied whenever the flag is set, whatever its value.
type boolKlogFlag struct {
	name, usage, env string
	def              bool
}

var boolKlogFlags = []boolKlogFlag{
	{"logtostderr", "log to standard error instead of files", "OBSPEC_LOGTOSTDERR", true},
	{"alsologtostderr", "log to standard error as well as files (no effect when -logtostderr=true)", "OBSPEC_ALSOLOGTOSTDERR", false},
	{"add_dir_header", "If true, adds the file directory to the header of the log messages", "OBSPEC_ADD_DIR_HEADER", false},
	{"skip_headers", "If true, avoid header prefixes in the log messages", "OBSPEC_SKIP_HEADERS", false},
	{"one_output", "If true, only write logs to their native severity level (vs also writing to each lower severity level; no effect when -logtostderr=true)", "OBSPEC_ONE_OUTPUT", false},
	{"skip_log_headers", "If true, avoid headers when opening log files (no effect when -logtostderr=true)", "OBSPEC_SKIP_LOG_HEADERS", false},
}

// NewKlogFlagSet adapts klog's flag.FlagSet (InitFlags registers -v,
// -logtostderr, etc. on it) into cli.Flags so they're settable via CLI args,
// env vars, or config the same way as every other obspec flag.
func NewKlogFlagSet() []cli.Flag {
	fs := flag.NewFlagSet("klog", flag.PanicOnError)
	klog.InitFlags(fs)

	fs.Set("v", "2")
	fs.Set("log_file_max_size", "1800")
	fs.Set("logtostderr", "true")

	flags := make([]cli.Flag, 0, len(stringKlogFlags)+len(boolKlogFlags)+2)

	for _, f := range stringKlogFlags {
		name := f.name
		flags = append(flags, &cli.StringFlag{
			Name:    name,
			Usage:   f.usage,
			EnvVars: []string{f.env},
			Action: func(cctx *cli.Context, v string) error {
				if v != "" {
					fs.Set(name, v)
				}
				return nil
			},
		})
	}

	for _, f := range boolKlogFlags {
		name := f.name
		flags = append(flags, &cli.BoolFlag{
			Name:        name,
			Usage:       f.usage,
			EnvVars:     []string{f.env},
			DefaultText: fmt.Sprint(f.def),
			Action: func(cctx *cli.Context, v bool) error {
				fs.Set(name, fmt.Sprint(v))
				return nil
			},
		})
	}

	flags = append(flags,
		&cli.Uint64Flag{
			Name:        "log_file_max_size",
			Usage:       "Defines the maximum size a log file can grow to (no effect when -logtostderr=true). Unit is megabytes. If the value is 0, the maximum file size is unlimited.",
			EnvVars:     []string{"OBSPEC_LOG_FILE_MAX_SIZE"},
			DefaultText: "1800",
			Action: func(cctx *cli.Context, v uint64) error {
				fs.Set("log_file_max_size", fmt.Sprint(v))
				return nil
			},
		},
		&cli.IntFlag{
			Name:    "v",
			Usage:   "number for the log level verbosity",
			EnvVars: []string{"OBSPEC_V"},
			Value:   2,
			Action: func(cctx *cli.Context, v int) error {
				fs.Set("v", fmt.Sprint(v))
				return nil
			},
		},
	)

	return flags
}
