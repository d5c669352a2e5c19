//go:build !linux

package engine

import (
	"fmt"
	"os"
	"runtime"
)

func openFlags(p SyncPolicy) (int, error) {
	switch p {
	case Direct:
		return 0, fmt.Errorf("direct I/O is not supported on %s", runtime.GOOS)
	case DSync, Sync:
		return os.O_SYNC, nil
	}
	return 0, nil
}

func alignedBuffer(n int) ([]byte, func(), error) {
	return make([]byte, n), func() {}, nil
}
