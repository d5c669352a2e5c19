package engine

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func openFlags(p SyncPolicy) (int, error) {
	switch p {
	case Direct:
		return unix.O_DIRECT, nil
	case DSync:
		return unix.O_DSYNC, nil
	case Sync:
		return unix.O_SYNC, nil
	}
	return 0, nil
}

// alignedBuffer returns a page-aligned buffer suitable for O_DIRECT.
func alignedBuffer(n int) ([]byte, func(), error) {
	buf, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to allocate aligned memory: %w", err)
	}
	return buf, func() { unix.Munmap(buf) }, nil
}
