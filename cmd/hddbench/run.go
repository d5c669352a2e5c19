package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/runningwild/hddbench/pkg/analyze"
	"github.com/runningwild/hddbench/pkg/campaign"
	"github.com/runningwild/hddbench/pkg/config"
	"github.com/runningwild/hddbench/pkg/engine"
	"github.com/runningwild/hddbench/pkg/fio"
	"github.com/runningwild/hddbench/pkg/probe"
	"github.com/runningwild/hddbench/pkg/report"
	"github.com/runningwild/hddbench/pkg/size"
	"github.com/runningwild/hddbench/pkg/sweep"
)

func newPrinter(w io.Writer, cfg *config.Config) *report.Printer {
	f, _ := w.(*os.File)
	return report.NewPrinter(w, report.NewPalette(cfg.Report.Color, f))
}

// runBench runs the campaign, then the sweep when enabled. Probe failures are
// reported but do not fail the command.
func runBench(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()
	cfg, logger, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printer := newPrinter(out, cfg)

	exec, err := engine.New(cfg.HDDTest.Engine, cfg.HDDTest.Debug)
	if err != nil {
		return err
	}
	if d, ok := exec.(*engine.DD); ok && d.Debug {
		d.Stdout, d.Stderr = out, cmd.ErrOrStderr()
	}

	plan := campaign.Plan{
		Root:   cfg.HDDTest.TestPath,
		Files:  cfg.HDDTest.Files,
		Size:   cfg.FileSize(),
		Runs:   cfg.HDDTest.Runs,
		Keep:   cfg.HDDTest.Keep,
		Policy: cfg.Policy(),
	}
	fmt.Fprintln(out, printer.Palette.Header("Disk write benchmark"))
	fmt.Fprintf(out, "Path: %s  Files: %d  Size: %s  Runs: %d  Sync: %s  Engine: %s\n\n",
		plan.Root, plan.Files, size.Format(plan.Size), plan.Runs, plan.Policy, cfg.HDDTest.Engine)

	tester := probe.New(exec, logger)
	runner := campaign.NewRunner(tester, logger)
	res, runErr := runner.Run(ctx, plan)
	if runErr != nil && len(res.Runs) == 0 {
		return runErr
	}

	if err := printer.RunTable(res.Runs, res.Summary); err != nil {
		return err
	}
	if err := printer.Errors(res.Runs); err != nil {
		return err
	}
	if res.Summary.TotalErrors > 0 {
		logger.Warn("campaign finished with probe errors", "errors", res.Summary.TotalErrors)
	}

	var blocks []sweep.BlockSizeResult
	if runErr == nil && cfg.Mixed.Enabled {
		fmt.Fprintln(out)
		blocks, err = sweepAndPrint(ctx, cfg, logger, printer)
		if err != nil && !errors.Is(err, context.Canceled) {
			// The sweep is independent of the campaign; its failure is not ours.
			logger.Error("mixed workload probe failed", "err", err)
		} else if err != nil {
			runErr = err
		}
	}

	if err := export(cfg, logger, res.Runs, res.Summary, blocks); err != nil {
		return err
	}
	return runErr
}

// runMixed runs only the sweep. Unlike runBench, a setup failure fails the
// command.
func runMixed(cmd *cobra.Command, opts *options) error {
	cfg, logger, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	printer := newPrinter(cmd.OutOrStdout(), cfg)

	blocks, err := sweepAndPrint(cmd.Context(), cfg, logger, printer)
	if err != nil {
		return err
	}
	var empty analyze.Campaign
	return export(cfg, logger, nil, empty.Summary(), blocks)
}

// sweepAndPrint runs the mixed workload probe and prints its table. A skipped
// sweep is logged and returns no error.
func sweepAndPrint(ctx context.Context, cfg *config.Config, logger *slog.Logger, printer *report.Printer) ([]sweep.BlockSizeResult, error) {
	gen := &fio.Runner{Binary: cfg.Mixed.FIOBinary, Logger: logger.With("component", "fio")}
	prober := sweep.New(gen, sweep.DiskSpace{}, logger)

	fmt.Fprintln(printer.W, printer.Palette.Header("Mixed workload sweep"))
	blocks, err := prober.Run(ctx, sweep.Options{
		Dir:        cfg.HDDTest.TestPath,
		BlockSizes: cfg.BlockSizes(),
		ReadPct:    cfg.Mixed.ReadPct,
		QueueDepth: cfg.Mixed.QueueDepth,
		Jobs:       cfg.Mixed.Jobs,
		Runtime:    cfg.Mixed.Runtime,
		Grace:      cfg.Mixed.Grace,
		ProbeSize:  cfg.ProbeSize(),
		MinFree:    cfg.MinFree(),
		Direct:     cfg.Mixed.Direct,
		IOEngine:   cfg.Mixed.IOEngine,
	})
	if sweep.IsSkip(err) {
		logger.Info("mixed workload probe skipped", "reason", err)
		fmt.Fprintln(printer.W, printer.Palette.Warn("Skipped: "+err.Error()))
		return nil, nil
	}
	if perr := printer.SweepTable(blocks); perr != nil {
		return blocks, perr
	}
	return blocks, err
}

func export(cfg *config.Config, logger *slog.Logger, runs []analyze.RunStats, sum analyze.CampaignStats, blocks []sweep.BlockSizeResult) error {
	if path := cfg.Report.CSV; path != "" && len(runs) > 0 {
		if err := report.WriteCSV(path, runs); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		logger.Info("wrote results", "csv", path)
	}
	if path := cfg.Report.MetricsFile; path != "" {
		if err := report.WriteMetrics(path, runs, sum, blocks); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		logger.Info("wrote results", "metrics_file", path)
	}
	return nil
}
