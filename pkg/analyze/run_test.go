package analyze

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runningwild/hddbench/pkg/engine"
	"github.com/runningwild/hddbench/pkg/probe"
)

func dur(d time.Duration) *time.Duration { return &d }

func ok(i int, write time.Duration) probe.Result {
	return probe.Result{Index: i, WriteElapsed: dur(write)}
}

func TestAggregateRunAllSucceed(t *testing.T) {
	results := []probe.Result{
		ok(3, time.Second),
		ok(1, 500*time.Millisecond),
		ok(2, 2*time.Second),
		ok(4, time.Second),
	}
	rs := AggregateRun(1, results, 2*time.Second, 8*mib, 4, engine.None)

	assert.Equal(t, 4, rs.SuccessfulFiles)
	assert.Equal(t, 0, rs.ErrorCount())
	assert.Equal(t, int64(4*8*mib), rs.BytesWritten)
	// 32 MiB over 2s
	assert.InDelta(t, 16.0, rs.OverallMBps, 1e-9)
	// mean of 8, 16, 4, 8
	assert.InDelta(t, 9.0, rs.AvgPerFileMBps, 1e-9)
	assert.Equal(t, float64(0), rs.AvgReadMBps)
	assert.Equal(t, int64(4), rs.WriteLatency.Count())
}

func TestAggregateRunPartialWriteFailure(t *testing.T) {
	fail := func(i int) probe.Result {
		return probe.Result{Index: i, Err: &engine.ProbeError{Op: engine.OpWrite, Path: "p", Err: errors.New("boom")}}
	}
	results := []probe.Result{fail(2), ok(1, time.Second), fail(4), ok(3, 250*time.Millisecond)}
	rs := AggregateRun(2, results, time.Second, mib, 4, engine.None)

	assert.Equal(t, 2, rs.SuccessfulFiles)
	assert.Equal(t, int64(2*mib), rs.BytesWritten)
	// mean over the two successes only: (1 + 4) / 2
	assert.InDelta(t, 2.5, rs.AvgPerFileMBps, 1e-9)
	// expected bytes, not confirmed bytes
	assert.InDelta(t, 4.0, rs.OverallMBps, 1e-9)
	require.Equal(t, 2, rs.ErrorCount())
}

func TestAggregateRunErrorsKeepCompletionOrder(t *testing.T) {
	e3 := errors.New("third")
	e1 := errors.New("first")
	results := []probe.Result{{Index: 3, Err: e3}, ok(2, time.Second), {Index: 1, Err: e1}}
	rs := AggregateRun(1, results, time.Second, 1, 3, engine.None)
	assert.Equal(t, []error{e3, e1}, rs.Errors)
}

func TestAggregateRunNoSuccess(t *testing.T) {
	results := []probe.Result{{Index: 1, Err: errors.New("x")}, {Index: 2, Err: errors.New("y")}}
	rs := AggregateRun(1, results, time.Second, mib, 2, engine.Direct)

	assert.Equal(t, 0, rs.SuccessfulFiles)
	assert.Equal(t, float64(0), rs.AvgPerFileMBps)
	assert.Equal(t, int64(0), rs.BytesWritten)
	assert.InDelta(t, 2.0, rs.OverallMBps, 1e-9)
}

func TestAggregateRunReadFailureAfterWrite(t *testing.T) {
	readErr := &engine.ProbeError{Op: engine.OpRead, Path: "p1", Err: errors.New("EIO")}
	results := []probe.Result{
		{Index: 1, WriteElapsed: dur(time.Second), Err: readErr},
		{Index: 2, WriteElapsed: dur(time.Second), ReadElapsed: dur(500 * time.Millisecond)},
	}
	rs := AggregateRun(1, results, time.Second, mib, 2, engine.DSync)

	assert.Equal(t, 2, rs.SuccessfulFiles, "read failure still counts as a written file")
	assert.Equal(t, 1, rs.ErrorCount())
	assert.InDelta(t, 1.0, rs.AvgPerFileMBps, 1e-9)
	assert.InDelta(t, 2.0, rs.AvgReadMBps, 1e-9)
}

func TestAggregateRunZeroWall(t *testing.T) {
	rs := AggregateRun(1, []probe.Result{ok(1, 0)}, 0, mib, 1, engine.None)
	assert.Equal(t, float64(0), rs.OverallMBps)
	assert.Equal(t, float64(0), rs.AvgPerFileMBps)
	assert.Equal(t, 1, rs.SuccessfulFiles)
}
