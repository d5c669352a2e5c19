//go:build !linux

package engine

import (
	"context"
	"fmt"
	"time"
)

type UringEngine struct {
	QueueDepth int
	ChunkSize  int
}

func NewUring() *UringEngine {
	return &UringEngine{}
}

func (e *UringEngine) Write(ctx context.Context, path string, size int64, policy SyncPolicy) (time.Duration, error) {
	return 0, &ProbeError{Op: OpWrite, Path: path, Err: fmt.Errorf("uring engine is only supported on Linux")}
}

func (e *UringEngine) Read(ctx context.Context, path string, size int64) (time.Duration, error) {
	return 0, &ProbeError{Op: OpRead, Path: path, Err: fmt.Errorf("uring engine is only supported on Linux")}
}
