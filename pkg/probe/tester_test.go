package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runningwild/hddbench/pkg/engine"
)

type fakeExec struct {
	writeFunc func(path string, size int64, policy engine.SyncPolicy) (time.Duration, error)
	readFunc  func(path string, size int64) (time.Duration, error)
	reads     atomic.Int32
}

func (f *fakeExec) Write(ctx context.Context, path string, size int64, policy engine.SyncPolicy) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return f.writeFunc(path, size, policy)
}

func (f *fakeExec) Read(ctx context.Context, path string, size int64) (time.Duration, error) {
	f.reads.Add(1)
	if f.readFunc == nil {
		return time.Millisecond, nil
	}
	return f.readFunc(path, size)
}

func okWrite(path string, size int64, policy engine.SyncPolicy) (time.Duration, error) {
	return 10 * time.Millisecond, nil
}

func indices(results []Result) []int {
	var idx []int
	for _, r := range results {
		idx = append(idx, r.Index)
	}
	sort.Ints(idx)
	return idx
}

func TestRunAllSucceed(t *testing.T) {
	var mu sync.Mutex
	paths := map[string]bool{}
	exec := &fakeExec{writeFunc: func(path string, size int64, policy engine.SyncPolicy) (time.Duration, error) {
		mu.Lock()
		paths[path] = true
		mu.Unlock()
		assert.Equal(t, int64(1<<20), size)
		return 5 * time.Millisecond, nil
	}}

	results := New(exec, nil).Run(context.Background(), Job{Dir: "/bench/run_1", Files: 4, Size: 1 << 20, Policy: engine.None})

	require.Len(t, results, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, indices(results))
	assert.Len(t, paths, 4, "each probe must use its own file")
	assert.True(t, paths["/bench/run_1/testfile_3.dat"])
	for _, r := range results {
		assert.True(t, r.Wrote())
		assert.Nil(t, r.ReadElapsed, "none policy skips read-back")
		assert.NoError(t, r.Err)
	}
	assert.Equal(t, int32(0), exec.reads.Load())
}

func TestRunReadBackForDurablePolicies(t *testing.T) {
	for _, policy := range []engine.SyncPolicy{engine.DSync, engine.Sync} {
		t.Run(policy.String(), func(t *testing.T) {
			exec := &fakeExec{writeFunc: okWrite}
			results := New(exec, nil).Run(context.Background(), Job{Dir: t.TempDir(), Files: 3, Size: 4096, Policy: policy})
			require.Len(t, results, 3)
			for _, r := range results {
				require.NotNil(t, r.ReadElapsed)
				assert.Equal(t, time.Millisecond, *r.ReadElapsed)
			}
			assert.Equal(t, int32(3), exec.reads.Load())
		})
	}

	exec := &fakeExec{writeFunc: okWrite}
	New(exec, nil).Run(context.Background(), Job{Dir: t.TempDir(), Files: 3, Size: 4096, Policy: engine.Direct})
	assert.Equal(t, int32(0), exec.reads.Load(), "direct policy skips read-back")
}

func TestRunWriteFailureSkipsRead(t *testing.T) {
	exec := &fakeExec{writeFunc: func(path string, size int64, policy engine.SyncPolicy) (time.Duration, error) {
		if path == FilePath("d", 2) {
			return 0, &engine.ProbeError{Op: engine.OpWrite, Path: path, Err: errors.New("disk full")}
		}
		return time.Millisecond, nil
	}}

	results := New(exec, nil).Run(context.Background(), Job{Dir: "d", Files: 3, Size: 4096, Policy: engine.Sync})
	require.Len(t, results, 3)
	assert.Equal(t, int32(2), exec.reads.Load(), "failed write must not be read back")

	for _, r := range results {
		if r.Index == 2 {
			assert.False(t, r.Wrote())
			assert.Nil(t, r.ReadElapsed)
			assert.ErrorContains(t, r.Err, "disk full")
			continue
		}
		assert.True(t, r.Wrote())
		assert.NotNil(t, r.ReadElapsed)
		assert.NoError(t, r.Err)
	}
}

func TestRunReadFailureKeepsWriteTime(t *testing.T) {
	exec := &fakeExec{
		writeFunc: okWrite,
		readFunc: func(path string, size int64) (time.Duration, error) {
			if path == FilePath("d", 1) {
				return 0, &engine.ProbeError{Op: engine.OpRead, Path: path, Err: errors.New("EIO")}
			}
			return time.Millisecond, nil
		},
	}

	results := New(exec, nil).Run(context.Background(), Job{Dir: "d", Files: 2, Size: 4096, Policy: engine.DSync})
	for _, r := range results {
		if r.Index != 1 {
			continue
		}
		require.NotNil(t, r.WriteElapsed)
		assert.Equal(t, 10*time.Millisecond, *r.WriteElapsed)
		assert.Nil(t, r.ReadElapsed)
		var pe *engine.ProbeError
		require.True(t, errors.As(r.Err, &pe))
		assert.Equal(t, engine.OpRead, pe.Op)
	}
}

// All probes must be in flight at the same time: each write blocks until
// every other write has started.
func TestRunIsConcurrent(t *testing.T) {
	const files = 8
	var started sync.WaitGroup
	started.Add(files)
	release := make(chan struct{})
	go func() {
		started.Wait()
		close(release)
	}()

	exec := &fakeExec{writeFunc: func(path string, size int64, policy engine.SyncPolicy) (time.Duration, error) {
		started.Done()
		select {
		case <-release:
			return time.Millisecond, nil
		case <-time.After(5 * time.Second):
			return 0, fmt.Errorf("%s: siblings never started", path)
		}
	}}

	results := New(exec, nil).Run(context.Background(), Job{Dir: "d", Files: files, Size: 1, Policy: engine.None})
	require.Len(t, results, files)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
}

func TestRunIgnoresCancellationOnceDispatched(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exec := &fakeExec{}
	exec.writeFunc = func(path string, size int64, policy engine.SyncPolicy) (time.Duration, error) {
		cancel()
		return time.Millisecond, nil
	}
	results := New(exec, nil).Run(ctx, Job{Dir: "d", Files: 3, Size: 1, Policy: engine.None})
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.Wrote())
	}
}

func TestRunZeroFiles(t *testing.T) {
	results := New(&fakeExec{writeFunc: okWrite}, nil).Run(context.Background(), Job{Dir: "d", Files: 0, Size: 1})
	assert.Empty(t, results)
}

func TestRunAgainstRealEngine(t *testing.T) {
	dir := t.TempDir()
	results := New(engine.NewSync(), nil).Run(context.Background(), Job{Dir: dir, Files: 4, Size: 256 * 1024, Policy: engine.DSync})
	require.Len(t, results, 4)
	for _, r := range results {
		require.NoError(t, r.Err)
		require.NotNil(t, r.ReadElapsed)
		fi, err := os.Stat(FilePath(dir, r.Index))
		require.NoError(t, err)
		assert.Equal(t, int64(256*1024), fi.Size())
	}
}
