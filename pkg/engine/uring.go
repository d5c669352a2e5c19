//go:build linux

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/godzie44/go-uring/uring"
	"golang.org/x/sys/unix"
)

// UringEngine moves probe data through io_uring, keeping up to QueueDepth
// chunk-sized operations in flight per file.
type UringEngine struct {
	QueueDepth int
	ChunkSize  int
}

func NewUring() *UringEngine {
	return &UringEngine{QueueDepth: 8, ChunkSize: 1 << 20}
}

func (e *UringEngine) Write(ctx context.Context, path string, size int64, policy SyncPolicy) (time.Duration, error) {
	if err := checkDirect(OpWrite, path, size, policy); err != nil {
		return 0, err
	}
	flags, err := openFlags(policy)
	if err != nil {
		return 0, &ProbeError{Op: OpWrite, Path: path, Err: err}
	}
	d, err := e.transfer(OpWrite, path, size, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|flags)
	if err != nil {
		return 0, &ProbeError{Op: OpWrite, Path: path, Err: err}
	}
	return d, nil
}

func (e *UringEngine) Read(ctx context.Context, path string, size int64) (time.Duration, error) {
	d, err := e.transfer(OpRead, path, size, os.O_RDONLY)
	if err != nil {
		return 0, &ProbeError{Op: OpRead, Path: path, Err: err}
	}
	return d, nil
}

func (e *UringEngine) transfer(op, path string, size int64, flags int) (time.Duration, error) {
	qd := e.QueueDepth
	if qd <= 0 {
		qd = 1
	}
	chunk := e.ChunkSize
	if chunk <= 0 {
		chunk = 1 << 20
	}

	start := time.Now()
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if size == 0 {
		return time.Since(start), f.Close()
	}

	ring, err := uring.New(uint32(qd))
	if err != nil {
		return 0, fmt.Errorf("failed to setup io_uring: %v", err)
	}
	defer ring.Close()

	buf, err := unix.Mmap(-1, 0, chunk*qd, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate aligned memory: %v", err)
	}
	defer unix.Munmap(buf)

	lens := make([]int, qd)
	var offset int64
	for offset < size {
		inFlight := 0
		for inFlight < qd && offset < size {
			n := chunk
			if rem := size - offset; rem < int64(n) {
				n = int(rem)
			}
			b := buf[inFlight*chunk : inFlight*chunk+n]

			var sqe uring.Operation
			if op == OpWrite {
				sqe = uring.Write(f.Fd(), b, uint64(offset))
			} else {
				sqe = uring.Read(f.Fd(), b, uint64(offset))
			}
			if err := ring.QueueSQE(sqe, 0, uint64(inFlight)); err != nil {
				return 0, err
			}
			lens[inFlight] = n
			offset += int64(n)
			inFlight++
		}

		for {
			_, err := ring.Submit()
			if err == nil {
				break
			}
			if !isEINTR(err) {
				return 0, err
			}
		}

		for done := 0; done < inFlight; done++ {
			var cqe *uring.CQEvent
			for {
				cqe, err = ring.WaitCQEvents(1)
				if err == nil || !isEINTR(err) {
					break
				}
			}
			if err != nil {
				return 0, err
			}
			if cqe.Res < 0 {
				return 0, syscall.Errno(-cqe.Res)
			}
			if want := lens[cqe.UserData]; int(cqe.Res) != want {
				ring.SeenCQE(cqe)
				return 0, fmt.Errorf("short %s: %d of %d bytes", op, cqe.Res, want)
			}
			ring.SeenCQE(cqe)
		}
	}

	if err := f.Close(); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

func isEINTR(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.EINTR) {
		return true
	}
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		return sysErr.Err == syscall.EINTR
	}
	return false
}
