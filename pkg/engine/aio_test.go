//go:build linux && (amd64 || arm64)

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

// skipWithoutAIO skips when the sandbox forbids io_setup.
func skipWithoutAIO(t *testing.T, err error) {
	t.Helper()
	var pe *ProbeError
	if errors.As(err, &pe) && strings.Contains(pe.Err.Error(), "io_setup") {
		t.Skipf("native aio unavailable: %v", err)
	}
}

func TestAIOWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aio.dat")
	eng := &AIOEngine{QueueDepth: 4, ChunkSize: 64 * 1024}
	const size = 1<<20 + 4096 + 17

	_, err := eng.Write(context.Background(), path, size, None)
	skipWithoutAIO(t, err)
	require.NoError(t, err)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(size), fi.Size())

	_, err = eng.Read(context.Background(), path, size)
	require.NoError(t, err)
}

func TestAIOWriteDSync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aio.dat")
	_, err := NewAIO().Write(context.Background(), path, 256*1024, DSync)
	skipWithoutAIO(t, err)
	require.NoError(t, err)
}

func TestAIOShortRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.dat")
	require.NoError(t, os.WriteFile(path, make([]byte, 1000), 0644))

	_, err := NewAIO().Read(context.Background(), path, 8192)
	skipWithoutAIO(t, err)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "short read")
}
