package analyze

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/runningwild/hddbench/pkg/engine"
	"github.com/runningwild/hddbench/pkg/probe"
)

func sampleRuns() []RunStats {
	return []RunStats{
		AggregateRun(1, []probe.Result{ok(1, time.Second), ok(2, 300*time.Millisecond)}, 1300*time.Millisecond, 3*mib, 2, engine.None),
		AggregateRun(2, []probe.Result{ok(1, 700*time.Millisecond), {Index: 2, Err: errors.New("x")}}, 900*time.Millisecond, 3*mib, 2, engine.None),
		AggregateRun(3, []probe.Result{ok(2, 110*time.Millisecond), ok(1, 170*time.Millisecond)}, 170*time.Millisecond, 3*mib, 2, engine.None),
	}
}

func TestCampaignEmpty(t *testing.T) {
	var c Campaign
	s := c.Summary()
	assert.Equal(t, 0, s.Runs)
	assert.Equal(t, time.Duration(0), s.AvgDuration)
	assert.Equal(t, float64(0), s.AvgOverallMBps)
	assert.Equal(t, float64(0), s.AvgPerFileMBps)
	assert.Equal(t, 0, s.TotalFiles)
	assert.Equal(t, int64(0), s.TotalBytes)
	assert.Equal(t, 0, s.TotalErrors)
	assert.Equal(t, int64(0), s.WriteLatency.Count())
}

func TestCampaignSummary(t *testing.T) {
	var c Campaign
	for _, r := range sampleRuns() {
		c.Add(r)
	}
	s := c.Summary()
	runs := c.Runs()

	assert.Equal(t, 3, s.Runs)
	assert.Equal(t, (1300+900+170)*time.Millisecond/3, s.AvgDuration)
	assert.InDelta(t, (runs[0].OverallMBps+runs[1].OverallMBps+runs[2].OverallMBps)/3, s.AvgOverallMBps, 1e-9)
	assert.InDelta(t, (runs[0].AvgPerFileMBps+runs[1].AvgPerFileMBps+runs[2].AvgPerFileMBps)/3, s.AvgPerFileMBps, 1e-9)
	assert.Equal(t, 5, s.TotalFiles)
	assert.Equal(t, int64(5*3*mib), s.TotalBytes)
	assert.Equal(t, 1, s.TotalErrors)
	assert.Equal(t, int64(5), s.WriteLatency.Count())
}

func TestCampaignOrderIndependent(t *testing.T) {
	runs := sampleRuns()
	var fwd, rev Campaign
	for i := range runs {
		fwd.Add(runs[i])
		rev.Add(runs[len(runs)-1-i])
	}
	a, b := fwd.Summary(), rev.Summary()

	assert.Equal(t, a.AvgDuration, b.AvgDuration)
	assert.Equal(t, a.AvgOverallMBps, b.AvgOverallMBps)
	assert.Equal(t, a.AvgPerFileMBps, b.AvgPerFileMBps)
	assert.Equal(t, a.AvgReadMBps, b.AvgReadMBps)
	assert.Equal(t, a.TotalFiles, b.TotalFiles)
	assert.Equal(t, a.TotalBytes, b.TotalBytes)
	assert.Equal(t, a.TotalErrors, b.TotalErrors)
	assert.Equal(t, a.WriteLatency.Percentile(50), b.WriteLatency.Percentile(50))
}

func TestCampaignRunsIsACopy(t *testing.T) {
	var c Campaign
	c.Add(RunStats{RunIndex: 1})
	runs := c.Runs()
	runs[0].RunIndex = 99
	assert.Equal(t, 1, c.Runs()[0].RunIndex)
}
