// Command hddbench measures disk write/read throughput with concurrent file
// probes and sweeps mixed random workloads with fio.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/runningwild/hddbench/pkg/config"
)

const exitInterrupted = 130

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		return 1
	}
}

// options holds the flags shared by every command. Flags that are not set
// leave the config file value alone.
type options struct {
	configFile string
	debug      bool
	logLevel   string
	logFormat  string
	color      string

	files       int
	size        string
	runs        int
	syncMode    string
	path        string
	engine      string
	keep        bool
	noMixed     bool
	csv         string
	metricsFile string

	// mixedOnly validates the sweep settings even if the file disables it.
	mixedOnly bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "hddbench",
		Short: "Benchmark disk write/read throughput",
		Long: `Run repeated batches of concurrent file write probes (optionally read
back) against a target path and report per-run and campaign throughput.
Afterwards a mixed random read/write sweep across block sizes is run with
fio when it is installed and enough space is free.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd, opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "", "Path to YAML configuration file")
	pf.BoolVar(&opts.debug, "debug", false, "Verbose logging and pass dd output through")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&opts.logFormat, "log-format", "", "Log format: text or json")
	pf.StringVar(&opts.color, "color", "", "Color output: auto, always or never")
	pf.StringVar(&opts.path, "path", "", "Directory to benchmark")
	pf.StringVar(&opts.csv, "csv", "", "Write per-run results to this CSV file")
	pf.StringVar(&opts.metricsFile, "metrics-file", "", "Write results as a Prometheus textfile")

	addCampaignFlags(root, opts)

	run := &cobra.Command{
		Use:   "run",
		Short: "Run the write/read campaign and the mixed workload sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd, opts)
		},
	}
	addCampaignFlags(run, opts)

	mixed := &cobra.Command{
		Use:   "mixed",
		Short: "Run only the mixed workload sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.mixedOnly = true
			return runMixed(cmd, opts)
		},
	}

	writeConfig := &cobra.Command{
		Use:   "write-config <path>",
		Short: "Write the default configuration to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Default().Save(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", args[0])
			return nil
		},
	}

	root.AddCommand(run, mixed, writeConfig)
	return root
}

func addCampaignFlags(cmd *cobra.Command, opts *options) {
	f := cmd.Flags()
	f.IntVarP(&opts.files, "files", "n", 0, "Concurrent files per run")
	f.StringVarP(&opts.size, "size", "s", "", "Size of each file, e.g. 1M, 512k, 2G")
	f.IntVarP(&opts.runs, "runs", "r", 0, "Number of runs")
	f.StringVar(&opts.syncMode, "syncmode", "", "Sync policy: none, direct, dsync or sync")
	f.StringVar(&opts.engine, "engine", "", "Probe executor: sync, dd, uring or aio")
	f.BoolVar(&opts.keep, "keep", false, "Keep test files after each run")
	f.BoolVar(&opts.noMixed, "no-mixed", false, "Skip the mixed workload sweep")
}

// loadConfig reads the config file (or defaults), applies flags that were
// set on cmd, builds the logger and validates.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, *slog.Logger, error) {
	cfg := config.Default()
	if opts.configFile != "" {
		var err error
		if cfg, err = config.Load(opts.configFile); err != nil {
			return nil, nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	changed := cmd.Flags().Changed
	t := &cfg.HDDTest
	if changed("files") {
		t.Files = opts.files
	}
	if changed("size") {
		t.Size = opts.size
	}
	if changed("runs") {
		t.Runs = opts.runs
	}
	if changed("syncmode") {
		t.SyncMode = opts.syncMode
	}
	if changed("path") {
		t.TestPath = opts.path
	}
	if changed("engine") {
		t.Engine = opts.engine
	}
	if changed("keep") {
		t.Keep = opts.keep
	}
	if changed("debug") {
		t.Debug = opts.debug
	}
	if changed("no-mixed") && opts.noMixed {
		cfg.Mixed.Enabled = false
	}
	if opts.mixedOnly {
		cfg.Mixed.Enabled = true
	}
	if changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}
	if changed("color") {
		cfg.Report.Color = opts.color
	}
	if changed("csv") {
		cfg.Report.CSV = opts.csv
	}
	if changed("metrics-file") {
		cfg.Report.MetricsFile = opts.metricsFile
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Log, t.Debug)
	if err := cfg.Validate(logger); err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newLogger builds the process logger. Debug forces the debug level.
// Unparseable settings fall back to info/text; Validate reports them.
func newLogger(w io.Writer, lc config.Log, debug bool) *slog.Logger {
	level, err := config.ParseLevel(lc.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	if debug {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(lc.Format, "json") {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}
	return slog.New(h)
}
