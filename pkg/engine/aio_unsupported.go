//go:build !linux || !(amd64 || arm64)

package engine

import (
	"context"
	"fmt"
	"time"
)

type AIOEngine struct {
	QueueDepth int
	ChunkSize  int
}

func NewAIO() *AIOEngine {
	return &AIOEngine{}
}

func (e *AIOEngine) Write(ctx context.Context, path string, size int64, policy SyncPolicy) (time.Duration, error) {
	return 0, &ProbeError{Op: OpWrite, Path: path, Err: fmt.Errorf("aio engine is only supported on Linux amd64 and arm64")}
}

func (e *AIOEngine) Read(ctx context.Context, path string, size int64) (time.Duration, error) {
	return 0, &ProbeError{Op: OpRead, Path: path, Err: fmt.Errorf("aio engine is only supported on Linux amd64 and arm64")}
}
