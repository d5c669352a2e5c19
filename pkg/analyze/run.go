// Package analyze reduces probe results into per-run statistics and folds
// runs into campaign-wide summaries.
package analyze

import (
	"time"

	"github.com/runningwild/hddbench/pkg/engine"
	"github.com/runningwild/hddbench/pkg/probe"
	"github.com/runningwild/hddbench/pkg/stats"
)

const mib = 1024 * 1024

// RunStats summarizes one batch of concurrent probes.
type RunStats struct {
	RunIndex int
	Files    int
	FileSize int64
	Policy   engine.SyncPolicy

	// Duration is the wall clock span of the whole batch.
	Duration time.Duration
	// OverallMBps is the expected total (Files × FileSize) over Duration, in
	// MiB/s. Failed probes still count toward the numerator.
	OverallMBps float64
	// AvgPerFileMBps is the mean per-probe write rate over successful writes.
	AvgPerFileMBps float64
	// AvgReadMBps is the mean per-probe read-back rate over successful reads.
	AvgReadMBps float64

	SuccessfulFiles int
	BytesWritten    int64
	// Errors holds probe failures in completion order.
	Errors []error

	WriteLatency *stats.Latency
}

func (r RunStats) ErrorCount() int { return len(r.Errors) }

// AggregateRun builds RunStats from a completed batch. wall is the time from
// dispatching the first probe to the last one finishing.
func AggregateRun(runIndex int, results []probe.Result, wall time.Duration, bytesPerFile int64, files int, policy engine.SyncPolicy) RunStats {
	rs := RunStats{
		RunIndex:     runIndex,
		Files:        files,
		FileSize:     bytesPerFile,
		Policy:       policy,
		Duration:     wall,
		WriteLatency: stats.NewLatency(),
	}
	if secs := wall.Seconds(); secs > 0 {
		rs.OverallMBps = float64(int64(files)*bytesPerFile) / secs / mib
	}

	var writeSum, readSum float64
	var reads int
	for _, res := range results {
		if res.Err != nil {
			rs.Errors = append(rs.Errors, res.Err)
		}
		if res.WriteElapsed != nil {
			rs.SuccessfulFiles++
			rs.WriteLatency.Record(*res.WriteElapsed)
			writeSum += rate(bytesPerFile, *res.WriteElapsed)
		}
		if res.ReadElapsed != nil {
			reads++
			readSum += rate(bytesPerFile, *res.ReadElapsed)
		}
	}
	if rs.SuccessfulFiles > 0 {
		rs.AvgPerFileMBps = writeSum / float64(rs.SuccessfulFiles)
	}
	if reads > 0 {
		rs.AvgReadMBps = readSum / float64(reads)
	}
	rs.BytesWritten = int64(rs.SuccessfulFiles) * bytesPerFile
	return rs
}

// rate is bytes over d in MiB/s. A zero duration yields zero rather than Inf.
func rate(bytes int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(bytes) / d.Seconds() / mib
}
