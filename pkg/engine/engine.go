package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// defaultChunk is the largest single write or read the native engines issue.
const defaultChunk = 4 << 20

// SyncEngine performs probes with plain blocking syscalls.
type SyncEngine struct {
	// ChunkSize caps each write/read call. Must be a multiple of 4096 for
	// direct I/O; defaults to 4 MiB.
	ChunkSize int
}

func NewSync() *SyncEngine {
	return &SyncEngine{ChunkSize: defaultChunk}
}

func (e *SyncEngine) chunk(size int64) int {
	c := e.ChunkSize
	if c <= 0 {
		c = defaultChunk
	}
	if size < int64(c) {
		c = int(size)
	}
	return c
}

// Write creates (or truncates) path and fills it with size zero bytes.
func (e *SyncEngine) Write(ctx context.Context, path string, size int64, policy SyncPolicy) (time.Duration, error) {
	if err := checkDirect(OpWrite, path, size, policy); err != nil {
		return 0, err
	}
	flags, err := openFlags(policy)
	if err != nil {
		return 0, &ProbeError{Op: OpWrite, Path: path, Err: err}
	}

	start := time.Now()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|flags, 0644)
	if err != nil {
		return 0, &ProbeError{Op: OpWrite, Path: path, Err: err}
	}

	chunk := e.chunk(size)
	if chunk > 0 {
		buf, release, err := alignedBuffer(chunk)
		if err != nil {
			f.Close()
			return 0, &ProbeError{Op: OpWrite, Path: path, Err: err}
		}
		defer release()

		for written := int64(0); written < size; {
			n := int64(chunk)
			if rem := size - written; rem < n {
				n = rem
			}
			m, err := f.Write(buf[:n])
			written += int64(m)
			if err != nil {
				f.Close()
				return 0, &ProbeError{Op: OpWrite, Path: path, Err: err}
			}
		}
	}

	if err := f.Close(); err != nil {
		return 0, &ProbeError{Op: OpWrite, Path: path, Err: err}
	}
	return time.Since(start), nil
}

// Read reads size bytes from path. A file shorter than size is an error.
func (e *SyncEngine) Read(ctx context.Context, path string, size int64) (time.Duration, error) {
	start := time.Now()
	f, err := os.Open(path)
	if err != nil {
		return 0, &ProbeError{Op: OpRead, Path: path, Err: err}
	}
	defer f.Close()

	chunk := e.chunk(size)
	if chunk > 0 {
		buf, release, err := alignedBuffer(chunk)
		if err != nil {
			return 0, &ProbeError{Op: OpRead, Path: path, Err: err}
		}
		defer release()

		var read int64
		for read < size {
			n := int64(chunk)
			if rem := size - read; rem < n {
				n = rem
			}
			m, err := f.Read(buf[:n])
			read += int64(m)
			if err == io.EOF {
				return 0, &ProbeError{Op: OpRead, Path: path,
					Err: fmt.Errorf("short read: got %d of %d bytes", read, size)}
			}
			if err != nil {
				return 0, &ProbeError{Op: OpRead, Path: path, Err: err}
			}
		}
	}
	return time.Since(start), nil
}
