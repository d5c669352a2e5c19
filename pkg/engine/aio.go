//go:build linux && (amd64 || arm64)

package engine

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	iocbCmdPread  = 0
	iocbCmdPwrite = 1
)

// Kernel structures (Standard 64-bit layout for x86_64 and arm64)
type iocb struct {
	Data      uint64
	Key       uint32
	RwFlags   uint32
	OpCode    uint16
	ReqPrio   int16
	Fd        uint32
	Buf       uint64
	NBytes    uint64
	Offset    int64
	Reserved2 uint64
	Flags     uint32
	ResFd     uint32
}

type ioEvent struct {
	Data uint64
	Obj  uint64
	Res  int64
	Res2 int64
}

// AIOEngine moves probe data through Linux native AIO (io_submit), keeping up
// to QueueDepth chunk-sized operations in flight per file. Submission is only
// truly asynchronous with the direct policy; otherwise the kernel completes
// each iocb inside io_submit.
type AIOEngine struct {
	QueueDepth int
	ChunkSize  int
}

func NewAIO() *AIOEngine {
	return &AIOEngine{QueueDepth: 8, ChunkSize: 1 << 20}
}

func (e *AIOEngine) Write(ctx context.Context, path string, size int64, policy SyncPolicy) (time.Duration, error) {
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

func (e *AIOEngine) Read(ctx context.Context, path string, size int64) (time.Duration, error) {
	d, err := e.transfer(OpRead, path, size, os.O_RDONLY)
	if err != nil {
		return 0, &ProbeError{Op: OpRead, Path: path, Err: err}
	}
	return d, nil
}

func (e *AIOEngine) transfer(op, path string, size int64, flags int) (time.Duration, error) {
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

	var aioCtx uint64
	if _, _, errno := unix.Syscall(unix.SYS_IO_SETUP, uintptr(qd), uintptr(unsafe.Pointer(&aioCtx)), 0); errno != 0 {
		return 0, fmt.Errorf("io_setup failed: %v", errno)
	}
	defer unix.Syscall(unix.SYS_IO_DESTROY, uintptr(aioCtx), 0, 0)

	buf, err := unix.Mmap(-1, 0, chunk*qd, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate aligned memory: %v", err)
	}
	defer unix.Munmap(buf)

	opCode := uint16(iocbCmdPread)
	if op == OpWrite {
		opCode = iocbCmdPwrite
	}

	iocbs := make([]iocb, qd)
	iocbPtrs := make([]*iocb, qd)
	events := make([]ioEvent, qd)
	lens := make([]int, qd)

	var offset int64
	for offset < size {
		n := 0
		for n < qd && offset < size {
			l := chunk
			if rem := size - offset; rem < int64(l) {
				l = int(rem)
			}
			cb := &iocbs[n]
			*cb = iocb{
				Data:   uint64(n),
				OpCode: opCode,
				Fd:     uint32(f.Fd()),
				Buf:    uint64(uintptr(unsafe.Pointer(&buf[n*chunk]))),
				NBytes: uint64(l),
				Offset: offset,
			}
			iocbPtrs[n] = cb
			lens[n] = l
			offset += int64(l)
			n++
		}

		for submitted := 0; submitted < n; {
			nSub, _, errno := unix.Syscall(unix.SYS_IO_SUBMIT, uintptr(aioCtx),
				uintptr(n-submitted), uintptr(unsafe.Pointer(&iocbPtrs[submitted])))
			if errno == syscall.EINTR {
				continue
			}
			if errno != 0 {
				return 0, fmt.Errorf("io_submit failed: %v", errno)
			}
			submitted += int(nSub)
		}

		for done := 0; done < n; {
			nEvt, _, errno := unix.Syscall6(unix.SYS_IO_GETEVENTS, uintptr(aioCtx),
				1, uintptr(n-done), uintptr(unsafe.Pointer(&events[0])), 0, 0)
			if errno == syscall.EINTR {
				continue
			}
			if errno != 0 {
				return 0, fmt.Errorf("io_getevents failed: %v", errno)
			}
			for _, evt := range events[:nEvt] {
				if evt.Res < 0 {
					return 0, syscall.Errno(-evt.Res)
				}
				if want := lens[evt.Data]; int(evt.Res) != want {
					return 0, fmt.Errorf("short %s: %d of %d bytes", op, evt.Res, want)
				}
			}
			done += int(nEvt)
		}
	}
	runtime.KeepAlive(iocbs)

	if err := f.Close(); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
