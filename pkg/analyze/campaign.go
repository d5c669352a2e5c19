package analyze

import (
	"sort"
	"time"

	"github.com/runningwild/hddbench/pkg/stats"
)

// CampaignStats summarizes every run of a campaign: means of the per-run
// timings and rates, sums of the counts.
type CampaignStats struct {
	Runs int

	AvgDuration    time.Duration
	AvgOverallMBps float64
	AvgPerFileMBps float64
	AvgReadMBps    float64

	TotalFiles  int
	TotalBytes  int64
	TotalErrors int

	// WriteLatency merges the per-probe write times of every run.
	WriteLatency *stats.Latency
}

// Campaign accumulates RunStats as runs complete. Not safe for concurrent use;
// runs are sequential.
type Campaign struct {
	runs []RunStats
}

func (c *Campaign) Add(r RunStats) {
	c.runs = append(c.runs, r)
}

// Runs returns the accumulated runs in the order they were added.
func (c *Campaign) Runs() []RunStats {
	return append([]RunStats(nil), c.runs...)
}

// Summary computes the campaign aggregates. With no runs every field is zero.
// The result does not depend on the order runs were added.
func (c *Campaign) Summary() CampaignStats {
	s := CampaignStats{Runs: len(c.runs), WriteLatency: stats.NewLatency()}
	if s.Runs == 0 {
		return s
	}

	var (
		dur                       time.Duration
		overall, perFile, readRts []float64
	)
	for _, r := range c.runs {
		dur += r.Duration
		overall = append(overall, r.OverallMBps)
		perFile = append(perFile, r.AvgPerFileMBps)
		readRts = append(readRts, r.AvgReadMBps)

		s.TotalFiles += r.SuccessfulFiles
		s.TotalBytes += r.BytesWritten
		s.TotalErrors += r.ErrorCount()
		s.WriteLatency.Merge(r.WriteLatency)
	}

	n := len(c.runs)
	s.AvgDuration = dur / time.Duration(n)
	s.AvgOverallMBps = mean(overall)
	s.AvgPerFileMBps = mean(perFile)
	s.AvgReadMBps = mean(readRts)
	return s
}

// mean sums in sorted order so the result is bit-for-bit independent of the
// input order.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sort.Float64s(xs)
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
