// Package probe runs one batch of concurrent file probes: every file in the
// batch is written (and for durable sync policies read back) at the same time
// to produce realistic I/O contention.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/runningwild/hddbench/pkg/engine"
)

// Job describes one batch.
type Job struct {
	Dir    string
	Files  int
	Size   int64
	Policy engine.SyncPolicy
}

// Result is the outcome of a single probe. WriteElapsed is nil when the write
// failed; ReadElapsed is nil unless the policy verifies reads and the read
// succeeded.
type Result struct {
	Index        int
	WriteElapsed *time.Duration
	ReadElapsed  *time.Duration
	Err          error
}

// Wrote reports whether the write step succeeded.
func (r Result) Wrote() bool { return r.WriteElapsed != nil }

// FilePath is the probe file for index inside dir.
func FilePath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("testfile_%d.dat", index))
}

type Tester struct {
	Exec   engine.Executor
	Logger *slog.Logger
}

func New(exec engine.Executor, logger *slog.Logger) *Tester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tester{Exec: exec, Logger: logger.With("component", "probe")}
}

// Run probes job.Files files concurrently, one goroutine per file, and
// returns once every probe has finished. Results are in completion order.
// Probes are not cancelled by ctx once dispatched.
func (t *Tester) Run(ctx context.Context, job Job) []Result {
	ctx = context.WithoutCancel(ctx)

	var (
		mu      sync.Mutex
		results = make([]Result, 0, job.Files)
		g       errgroup.Group
	)
	if job.Files > 0 {
		g.SetLimit(job.Files)
	}
	for i := 1; i <= job.Files; i++ {
		g.Go(func() error {
			res := t.probe(ctx, i, job)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (t *Tester) probe(ctx context.Context, index int, job Job) Result {
	path := FilePath(job.Dir, index)
	res := Result{Index: index}
	log := t.logger().With("file", index, "path", path)

	log.Debug("writing", "bytes", job.Size, "sync", job.Policy)
	w, err := t.Exec.Write(ctx, path, job.Size, job.Policy)
	if err != nil {
		log.Debug("write failed", "err", err)
		res.Err = err
		return res
	}
	res.WriteElapsed = &w

	if job.Policy.VerifiesRead() {
		r, err := t.Exec.Read(ctx, path, job.Size)
		if err != nil {
			log.Debug("read failed", "err", err)
			res.Err = err
			return res
		}
		res.ReadElapsed = &r
		log.Debug("done", "write", w, "read", r)
		return res
	}
	log.Debug("done", "write", w)
	return res
}

func (t *Tester) logger() *slog.Logger {
	if t.Logger == nil {
		return slog.Default()
	}
	return t.Logger
}
