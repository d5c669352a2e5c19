//go:build linux

package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipWithoutUring skips when the kernel or sandbox refuses io_uring.
func skipWithoutUring(t *testing.T, err error) {
	t.Helper()
	var pe *ProbeError
	if errors.As(err, &pe) && strings.Contains(pe.Err.Error(), "io_uring") {
		t.Skipf("io_uring unavailable: %v", err)
	}
}

func TestUringWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uring.dat")
	eng := &UringEngine{QueueDepth: 4, ChunkSize: 64 * 1024}
	const size = 1<<20 + 4096 + 17

	_, err := eng.Write(context.Background(), path, size, None)
	skipWithoutUring(t, err)
	require.NoError(t, err)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(size), fi.Size())

	_, err = eng.Read(context.Background(), path, size)
	require.NoError(t, err)
}

func TestUringShortRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.dat")
	require.NoError(t, os.WriteFile(path, make([]byte, 1000), 0644))

	_, err := NewUring().Read(context.Background(), path, 8192)
	skipWithoutUring(t, err)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "short read")
}
