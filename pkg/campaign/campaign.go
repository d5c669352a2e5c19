// Package campaign repeats concurrent probe runs under one configuration,
// each in its own working directory, and aggregates the results.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/runningwild/hddbench/pkg/analyze"
	"github.com/runningwild/hddbench/pkg/engine"
	"github.com/runningwild/hddbench/pkg/probe"
)

// Plan is the configuration shared by every run of a campaign.
type Plan struct {
	// Root is the directory the campaign directory is created in.
	Root   string
	Files  int
	Size   int64
	Runs   int
	Keep   bool
	Policy engine.SyncPolicy
}

// Result is a finished (or interrupted) campaign.
type Result struct {
	Dir     string
	Runs    []analyze.RunStats
	Summary analyze.CampaignStats
}

// CleanupError reports a run directory that could not be removed.
type CleanupError struct {
	Dir string
	Err error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("error deleting run directory %s: %v", e.Dir, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

// BatchRunner runs one batch of probes. *probe.Tester implements it.
type BatchRunner interface {
	Run(ctx context.Context, job probe.Job) []probe.Result
}

type Runner struct {
	Tester BatchRunner
	Logger *slog.Logger
	// Now and RemoveAll are replaceable for tests.
	Now       func() time.Time
	RemoveAll func(path string) error
	// OnRun, if set, is called after each run is aggregated.
	OnRun func(analyze.RunStats)
}

func NewRunner(tester BatchRunner, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		Tester:    tester,
		Logger:    logger.With("component", "campaign"),
		Now:       time.Now,
		RemoveAll: os.RemoveAll,
	}
}

// DirName is the campaign directory name for a start time.
func DirName(t time.Time) string {
	return "HDDBench_" + t.Format("20060102_150405")
}

// Run executes plan.Runs runs strictly one after another. Only failing to
// create the campaign directory is an error; probe and cleanup failures are
// recorded or logged and the campaign continues. If ctx is cancelled no
// further runs are started and the partial result is returned with ctx.Err().
func (r *Runner) Run(ctx context.Context, plan Plan) (Result, error) {
	base := filepath.Join(plan.Root, DirName(r.now()))
	if err := os.MkdirAll(base, 0755); err != nil {
		return Result{}, fmt.Errorf("create campaign directory: %w", err)
	}
	r.logger().Info("campaign started", "dir", base, "files", plan.Files, "size", plan.Size,
		"runs", plan.Runs, "sync", plan.Policy)

	var (
		agg analyze.Campaign
		err error
	)
	for i := 1; i <= plan.Runs; i++ {
		if err = ctx.Err(); err != nil {
			r.logger().Warn("campaign interrupted", "completed_runs", i-1)
			break
		}
		stats := r.runOne(ctx, i, base, plan)
		agg.Add(stats)
		if r.OnRun != nil {
			r.OnRun(stats)
		}
	}

	if !plan.Keep {
		// only succeeds when every run directory was removed
		if rmErr := os.Remove(base); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			r.logger().Debug("campaign directory left in place", "dir", base, "err", rmErr)
		}
	}

	return Result{Dir: base, Runs: agg.Runs(), Summary: agg.Summary()}, err
}

func (r *Runner) runOne(ctx context.Context, index int, base string, plan Plan) analyze.RunStats {
	dir := filepath.Join(base, fmt.Sprintf("run_%d", index))
	log := r.logger().With("run", index)
	log.Info("starting test run", "dir", dir)

	start := r.now()
	var results []probe.Result
	if err := os.MkdirAll(dir, 0755); err != nil {
		// every probe in this run fails the same way
		for f := 1; f <= plan.Files; f++ {
			results = append(results, probe.Result{Index: f, Err: &engine.ProbeError{
				Op: engine.OpWrite, Path: probe.FilePath(dir, f), Err: err}})
		}
	} else {
		results = r.Tester.Run(ctx, probe.Job{Dir: dir, Files: plan.Files, Size: plan.Size, Policy: plan.Policy})
	}
	wall := r.now().Sub(start)

	stats := analyze.AggregateRun(index, results, wall, plan.Size, plan.Files, plan.Policy)
	log.Info("test run completed",
		"duration", wall.Round(time.Millisecond),
		"overall_mbps", fmt.Sprintf("%.2f", stats.OverallMBps),
		"per_file_mbps", fmt.Sprintf("%.2f", stats.AvgPerFileMBps),
		"ok", stats.SuccessfulFiles, "errors", stats.ErrorCount())
	for _, e := range stats.Errors {
		log.Warn("probe failed", "err", e)
	}

	if !plan.Keep {
		if err := r.removeAll(dir); err != nil {
			log.Error("cleanup failed", "err", &CleanupError{Dir: dir, Err: err})
		}
	}
	return stats
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Runner) removeAll(path string) error {
	if r.RemoveAll == nil {
		return os.RemoveAll(path)
	}
	return r.RemoveAll(path)
}
