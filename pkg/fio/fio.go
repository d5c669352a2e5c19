// Package fio drives the fio workload generator: it renders job files, runs
// fio with JSON output and extracts per-direction bandwidth and IOPS.
package fio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ErrTimeout is returned when fio does not finish before the context deadline.
var ErrTimeout = errors.New("fio timed out")

// Params describes a single fio job.
type Params struct {
	Name       string
	Filename   string
	BlockSize  int64
	Size       int64
	ReadPct    int // 0-100
	Rand       bool
	Direct     bool
	IOEngine   string
	Jobs       int // fio numjobs
	QueueDepth int // fio iodepth, per job
	// Runtime makes the job time based. Zero runs until Size is transferred.
	Runtime time.Duration
}

// GenerateJob creates fio job file content for p.
func GenerateJob(p Params) string {
	var sb strings.Builder

	sb.WriteString("[global]\n")

	ioengine := p.IOEngine
	if ioengine == "" {
		ioengine = "libaio"
	}
	sb.WriteString(fmt.Sprintf("ioengine=%s\n", ioengine))
	sb.WriteString(fmt.Sprintf("filename=%s\n", p.Filename))
	sb.WriteString(fmt.Sprintf("bs=%d\n", p.BlockSize))
	if p.Size > 0 {
		sb.WriteString(fmt.Sprintf("size=%d\n", p.Size))
	}

	if p.Direct {
		sb.WriteString("direct=1\n")
	} else {
		sb.WriteString("direct=0\n")
	}

	// Read/Write Mix
	switch {
	case p.ReadPct >= 100:
		if p.Rand {
			sb.WriteString("rw=randread\n")
		} else {
			sb.WriteString("rw=read\n")
		}
	case p.ReadPct <= 0:
		if p.Rand {
			sb.WriteString("rw=randwrite\n")
		} else {
			sb.WriteString("rw=write\n")
		}
	default:
		if p.Rand {
			sb.WriteString("rw=randrw\n")
		} else {
			sb.WriteString("rw=rw\n")
		}
		sb.WriteString(fmt.Sprintf("rwmixread=%d\n", p.ReadPct))
	}

	jobs := p.Jobs
	if jobs < 1 {
		jobs = 1
	}
	iodepth := p.QueueDepth
	if iodepth < 1 {
		iodepth = 1
	}
	sb.WriteString(fmt.Sprintf("numjobs=%d\n", jobs))
	sb.WriteString(fmt.Sprintf("iodepth=%d\n", iodepth))
	if jobs > 1 {
		sb.WriteString("group_reporting\n")
	}

	if p.Runtime > 0 {
		sb.WriteString("time_based\n")
		// fio reads runtime=0 as unbounded; round partial seconds up.
		secs := int64((p.Runtime + time.Second - 1) / time.Second)
		sb.WriteString(fmt.Sprintf("runtime=%ds\n", secs))
	}

	name := p.Name
	if name == "" {
		name = "hddbench"
	}
	sb.WriteString(fmt.Sprintf("\n[%s]\n", name))
	return sb.String()
}

// Structures for parsing fio JSON output
type fioOutput struct {
	Jobs        []fioJob `json:"jobs"`
	ClientStats []fioJob `json:"client_stats"`
}

type fioJob struct {
	Error int      `json:"error"`
	Read  fioStats `json:"read"`
	Write fioStats `json:"write"`
}

type fioStats struct {
	BW      float64 `json:"bw"` // KiB/s
	BWBytes float64 `json:"bw_bytes"`
	IOPS    float64 `json:"iops"`
}

func (s fioStats) bytesPerSec() float64 {
	if s.BWBytes > 0 {
		return s.BWBytes
	}
	return s.BW * 1024
}

// Result is the summed outcome of every job in a fio run.
type Result struct {
	ReadBW    float64 // bytes/s
	WriteBW   float64 // bytes/s
	ReadIOPS  float64
	WriteIOPS float64
}

func (r Result) TotalBW() float64   { return r.ReadBW + r.WriteBW }
func (r Result) TotalIOPS() float64 { return r.ReadIOPS + r.WriteIOPS }

// ParseOutput parses `fio --output-format=json` output. Anything fio prints
// before the JSON document (warnings, notes) is skipped.
func ParseOutput(data []byte) (*Result, error) {
	if i := bytes.IndexByte(data, '{'); i > 0 {
		data = data[i:]
	}
	var out fioOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse fio output: %w", err)
	}

	jobs := out.Jobs
	if len(jobs) == 0 {
		jobs = out.ClientStats
	}
	if len(jobs) == 0 {
		return nil, errors.New("parse fio output: no jobs reported")
	}

	res := &Result{}
	for _, j := range jobs {
		if j.Error != 0 {
			return nil, fmt.Errorf("fio job reported error %d", j.Error)
		}
		res.ReadBW += j.Read.bytesPerSec()
		res.WriteBW += j.Write.bytesPerSec()
		res.ReadIOPS += j.Read.IOPS
		res.WriteIOPS += j.Write.IOPS
	}
	return res, nil
}

// Runner executes fio jobs.
type Runner struct {
	// Binary defaults to "fio".
	Binary string
	Logger *slog.Logger
}

func (r *Runner) binary() string {
	if r.Binary == "" {
		return "fio"
	}
	return r.Binary
}

// Available reports whether the fio executable can be found.
func (r *Runner) Available() bool {
	_, err := exec.LookPath(r.binary())
	return err == nil
}

// Run executes p and blocks until fio exits or ctx is done. A context
// deadline surfaces as ErrTimeout.
func (r *Runner) Run(ctx context.Context, p Params) (*Result, error) {
	jobFile, err := os.CreateTemp("", "hddbench-*.fio")
	if err != nil {
		return nil, fmt.Errorf("create fio job file: %w", err)
	}
	defer os.Remove(jobFile.Name())

	job := GenerateJob(p)
	if _, err := jobFile.WriteString(job); err != nil {
		jobFile.Close()
		return nil, fmt.Errorf("write fio job file: %w", err)
	}
	if err := jobFile.Close(); err != nil {
		return nil, fmt.Errorf("write fio job file: %w", err)
	}

	if r.Logger != nil {
		r.Logger.Debug("running fio", "job", p.Name, "bs", p.BlockSize, "jobfile", job)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary(), "--output-format=json", jobFile.Name())
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// fio forks its job workers; don't wait on their pipes once fio is killed.
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	err = cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %v", ErrTimeout, time.Since(start).Round(time.Second))
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("fio failed: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("fio failed: %w", err)
	}
	return ParseOutput(stdout.Bytes())
}
