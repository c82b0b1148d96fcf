package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pxerrors "github.com/pretextml/pretext/internal/errors"
)

func TestOutputLock_AcquireAndRelease(t *testing.T) {
	corpusPath := filepath.Join(t.TempDir(), "corpus.txt")
	lock := NewOutputLock(corpusPath)

	require.NoError(t, lock.Acquire(context.Background()))
	assert.FileExists(t, lock.Path())
	require.NoError(t, lock.Release())

	// The lock can be taken again after release
	require.NoError(t, lock.Acquire(context.Background()))
	require.NoError(t, lock.Release())
}

func TestOutputLock_ReleaseWithoutAcquire(t *testing.T) {
	lock := NewOutputLock(filepath.Join(t.TempDir(), "corpus.txt"))

	assert.NoError(t, lock.Release())
	assert.NoError(t, lock.Release())
}

func TestOutputLock_ContendedFails(t *testing.T) {
	corpusPath := filepath.Join(t.TempDir(), "corpus.txt")

	holder := NewOutputLock(corpusPath)
	require.NoError(t, holder.Acquire(context.Background()))
	defer holder.Release()

	waiter := NewOutputLock(corpusPath)
	err := waiter.Acquire(context.Background())

	require.Error(t, err)
	assert.Equal(t, pxerrors.ErrCodeOutputLocked, pxerrors.GetCode(err))
	assert.True(t, pxerrors.IsRetryable(err))
}

func TestOutputLock_AcquireAfterHolderReleases(t *testing.T) {
	corpusPath := filepath.Join(t.TempDir(), "corpus.txt")

	holder := NewOutputLock(corpusPath)
	require.NoError(t, holder.Acquire(context.Background()))
	require.NoError(t, holder.Release())

	waiter := NewOutputLock(corpusPath)
	require.NoError(t, waiter.Acquire(context.Background()))
	assert.NoError(t, waiter.Release())
}

func TestOutputLock_CancelledContext(t *testing.T) {
	lock := NewOutputLock(filepath.Join(t.TempDir(), "corpus.txt"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := lock.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOutputLock_PathDerivedFromCorpus(t *testing.T) {
	lock := NewOutputLock("/data/corpus.txt")
	assert.Equal(t, "/data/corpus.txt.lock", lock.Path())
}
