// Package sweep runs the mixed-workload block-size sweep: a fixed-duration
// random read/write fio job per block size against one shared probe file.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/runningwild/hddbench/pkg/fio"
	"github.com/runningwild/hddbench/pkg/size"
)

var (
	ErrGeneratorUnavailable = errors.New("workload generator unavailable")
	ErrInsufficientSpace    = errors.New("insufficient free space")
)

// IsSkip reports whether err means the sweep was skipped by a precondition
// rather than failing.
func IsSkip(err error) bool {
	return errors.Is(err, ErrGeneratorUnavailable) || errors.Is(err, ErrInsufficientSpace)
}

// ProbeFileName is the shared file every block size runs against.
const ProbeFileName = "hddbench_mixed.dat"

// Generator runs workload jobs.
type Generator interface {
	Available() bool
	Run(ctx context.Context, p fio.Params) (*fio.Result, error)
}

// SpaceChecker reports free bytes on the volume holding path.
type SpaceChecker interface {
	Free(path string) (uint64, error)
}

// Limits are the architecture-dependent sizing guards.
type Limits struct {
	MinFree   int64
	ProbeSize int64
}

// ArchLimits returns the guards for a GOARCH value. Constrained and embedded
// architectures get a smaller threshold and probe file.
func ArchLimits(arch string) Limits {
	switch {
	case arch == "arm", arch == "arm64", arch == "386", arch == "riscv64",
		strings.HasPrefix(arch, "mips"):
		return Limits{MinFree: 1 * size.GiB, ProbeSize: 256 * size.MiB}
	default:
		return Limits{MinFree: 4 * size.GiB, ProbeSize: 1 * size.GiB}
	}
}

type Options struct {
	Dir        string
	BlockSizes []int64
	ReadPct    int
	QueueDepth int
	Jobs       int
	Runtime    time.Duration
	// Grace is added to Runtime to form each block size's deadline.
	Grace time.Duration
	// ProbeSize and MinFree default to ArchLimits when zero.
	ProbeSize int64
	MinFree   int64
	Direct    bool
	IOEngine  string
}

// DefaultBlockSizes is the sweep order used when Options.BlockSizes is empty.
var DefaultBlockSizes = []int64{4 * size.KiB, 64 * size.KiB, 512 * size.KiB, 1 * size.MiB}

func DefaultOptions() Options {
	return Options{
		BlockSizes: append([]int64(nil), DefaultBlockSizes...),
		ReadPct:    50,
		QueueDepth: 64,
		Jobs:       4,
		Runtime:    30 * time.Second,
		Grace:      15 * time.Second,
		Direct:     true,
		IOEngine:   "libaio",
	}
}

// BlockSizeResult holds one block size's measurements. Bandwidth is in
// bytes per second.
type BlockSizeResult struct {
	BlockSize      int64
	ReadBandwidth  float64
	ReadIOPS       float64
	WriteBandwidth float64
	WriteIOPS      float64
	TotalBandwidth float64
	TotalIOPS      float64
}

type Prober struct {
	Gen    Generator
	Space  SpaceChecker
	Logger *slog.Logger
	// Arch selects the sizing guards; defaults to runtime.GOARCH.
	Arch string
}

func New(gen Generator, space SpaceChecker, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{Gen: gen, Space: space, Logger: logger.With("component", "sweep")}
}

func (p *Prober) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default().With("component", "sweep")
	}
	return p.Logger
}

func (p *Prober) withDefaults(opts Options) Options {
	def := DefaultOptions()
	if len(opts.BlockSizes) == 0 {
		opts.BlockSizes = def.BlockSizes
	}
	if opts.ReadPct < 0 || opts.ReadPct > 100 {
		opts.ReadPct = def.ReadPct
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = def.QueueDepth
	}
	if opts.Jobs <= 0 {
		opts.Jobs = def.Jobs
	}
	if opts.Runtime <= 0 {
		opts.Runtime = def.Runtime
	}
	if opts.Grace < 0 {
		opts.Grace = 0
	}

	arch := p.Arch
	if arch == "" {
		arch = runtime.GOARCH
	}
	limits := ArchLimits(arch)
	if opts.ProbeSize <= 0 {
		opts.ProbeSize = limits.ProbeSize
	}
	if opts.MinFree <= 0 {
		opts.MinFree = limits.MinFree
	}
	return opts
}

// Run executes the sweep. A precondition failure returns an error matched by
// IsSkip and no results. A setup failure aborts with an error. Individual
// block sizes that fail or time out are logged and left out of the results.
// If ctx is cancelled the results gathered so far are returned with ctx.Err().
func (p *Prober) Run(ctx context.Context, opts Options) ([]BlockSizeResult, error) {
	log := p.logger()
	opts = p.withDefaults(opts)

	if p.Gen == nil || !p.Gen.Available() {
		return nil, ErrGeneratorUnavailable
	}
	if p.Space != nil {
		free, err := p.Space.Free(opts.Dir)
		if err != nil {
			return nil, fmt.Errorf("check free space on %s: %w", opts.Dir, err)
		}
		if free < uint64(opts.MinFree) {
			return nil, fmt.Errorf("%w on %s: %s available, %s required",
				ErrInsufficientSpace, opts.Dir, size.Format(int64(free)), size.Format(opts.MinFree))
		}
	}

	file := filepath.Join(opts.Dir, ProbeFileName)
	defer func() {
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Debug("probe file cleanup failed", "path", file, "err", err)
		}
	}()

	log.Info("preparing mixed workload probe file", "path", file, "size", size.Format(opts.ProbeSize))
	setup := fio.Params{
		Name:       "setup",
		Filename:   file,
		BlockSize:  1 * size.MiB,
		Size:       opts.ProbeSize,
		ReadPct:    100,
		Direct:     opts.Direct,
		IOEngine:   opts.IOEngine,
		Jobs:       1,
		QueueDepth: 1,
	}
	if _, err := p.Gen.Run(ctx, setup); err != nil {
		return nil, fmt.Errorf("prepare probe file %s: %w", file, err)
	}

	var results []BlockSizeResult
	for i, bs := range opts.BlockSizes {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res, err := p.runBlockSize(ctx, file, bs, opts)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			log.Warn("block size failed, skipping",
				"step", fmt.Sprintf("%d/%d", i+1, len(opts.BlockSizes)), "bs", size.Format(bs), "err", err)
			continue
		}

		log.Info("block size complete",
			"step", fmt.Sprintf("%d/%d", i+1, len(opts.BlockSizes)),
			"bs", size.Format(bs),
			"read_iops", res.ReadIOPS,
			"write_iops", res.WriteIOPS)
		results = append(results, res)
	}
	return results, nil
}

func (p *Prober) runBlockSize(ctx context.Context, file string, bs int64, opts Options) (BlockSizeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Runtime+opts.Grace)
	defer cancel()

	out, err := p.Gen.Run(ctx, fio.Params{
		Name:       "bs_" + size.Format(bs),
		Filename:   file,
		BlockSize:  bs,
		Size:       opts.ProbeSize,
		ReadPct:    opts.ReadPct,
		Rand:       true,
		Direct:     opts.Direct,
		IOEngine:   opts.IOEngine,
		Jobs:       opts.Jobs,
		QueueDepth: opts.QueueDepth,
		Runtime:    opts.Runtime,
	})
	if err != nil {
		return BlockSizeResult{}, err
	}
	return BlockSizeResult{
		BlockSize:      bs,
		ReadBandwidth:  out.ReadBW,
		ReadIOPS:       out.ReadIOPS,
		WriteBandwidth: out.WriteBW,
		WriteIOPS:      out.WriteIOPS,
		TotalBandwidth: out.TotalBW(),
		TotalIOPS:      out.TotalIOPS(),
	}, nil
}
