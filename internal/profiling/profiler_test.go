package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertNonEmptyFile checks a profile was written with content.
func assertNonEmptyFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

// spin burns a little CPU so the profiler has something to sample.
func spin(iters int) int {
	n := 1
	for i := 0; i < iters; i++ {
		n = n*31 + i
	}
	return n
}

func TestStartCPU_WritesProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpu.prof")

	stop, err := StartCPU(path)
	require.NoError(t, err)
	_ = spin(1_000_000)
	stop()

	assertNonEmptyFile(t, path)
}

func TestStartCPU_BadPathFails(t *testing.T) {
	_, err := StartCPU(filepath.Join(t.TempDir(), "missing", "cpu.prof"))
	require.Error(t, err)
}

func TestStartTrace_WritesTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.out")

	stop, err := StartTrace(path)
	require.NoError(t, err)
	_ = spin(1000)
	stop()

	assertNonEmptyFile(t, path)
}

func TestWriteHeap_WritesProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.prof")

	require.NoError(t, WriteHeap(path))
	assertNonEmptyFile(t, path)
}
