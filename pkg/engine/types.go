package engine

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SyncPolicy controls page-cache bypass and durability of probe writes.
type SyncPolicy int

const (
	None   SyncPolicy = iota // buffered writes
	Direct                   // O_DIRECT, bypass the page cache
	DSync                    // O_DSYNC, data durable before each write returns
	Sync                     // O_SYNC, data and metadata durable
)

func (p SyncPolicy) String() string {
	switch p {
	case Direct:
		return "direct"
	case DSync:
		return "dsync"
	case Sync:
		return "sync"
	default:
		return "none"
	}
}

// VerifiesRead reports whether a probe should read the file back after
// writing it. Only the durable policies do; direct and none measure writes only.
func (p SyncPolicy) VerifiesRead() bool {
	return p == DSync || p == Sync
}

// ddFlag is the dd oflag value for the policy.
func (p SyncPolicy) ddFlag() string {
	if p == None {
		return ""
	}
	return p.String()
}

// ParseSyncPolicy maps s (case-insensitive) to a policy. Unknown values
// yield None and ok=false so the caller can warn and carry on.
func ParseSyncPolicy(s string) (p SyncPolicy, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return None, true
	case "direct":
		return Direct, true
	case "dsync":
		return DSync, true
	case "sync":
		return Sync, true
	}
	return None, false
}

// Operation names used in ProbeError.
const (
	OpWrite = "write"
	OpRead  = "read"
)

// ProbeError is a failed write or read against one probe file.
type ProbeError struct {
	Op   string
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	verb := "writing"
	if e.Op == OpRead {
		verb = "reading"
	}
	return fmt.Sprintf("error %s %s: %v", verb, e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Executor performs a single timed write or read of a whole file.
// Elapsed time covers opening, transferring and closing the file.
type Executor interface {
	Write(ctx context.Context, path string, size int64, policy SyncPolicy) (time.Duration, error)
	Read(ctx context.Context, path string, size int64) (time.Duration, error)
}

// New returns the executor named by kind: "sync" (native, the default),
// "dd" (shells out to dd), "uring" (io_uring, Linux only) or "aio" (Linux
// native AIO).
func New(kind string, debug bool) (Executor, error) {
	switch strings.ToLower(kind) {
	case "", "sync":
		return NewSync(), nil
	case "dd":
		return &DD{Debug: debug}, nil
	case "uring":
		return NewUring(), nil
	case "aio":
		return NewAIO(), nil
	}
	return nil, fmt.Errorf("unknown engine %q: want sync, dd, uring or aio", kind)
}

// directAlign is the size granularity O_DIRECT transfers must respect.
const directAlign = 4096

func checkDirect(op, path string, size int64, policy SyncPolicy) error {
	if policy == Direct && size%directAlign != 0 {
		return &ProbeError{Op: op, Path: path,
			Err: fmt.Errorf("direct I/O requires a multiple of %d bytes, got %d", directAlign, size)}
	}
	return nil
}
