package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	pxerrors "github.com/pretextml/pretext/internal/errors"
)

// OutputLock guards the corpus file against concurrent builds. Two
// processes writing the same corpus would interleave documents, so the
// second one must wait or fail fast. The lock lives in a sidecar file
// next to the corpus and works across processes on all platforms.
type OutputLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewOutputLock creates a lock for the corpus at corpusPath. The lock
// file is created at <corpusPath>.lock.
func NewOutputLock(corpusPath string) *OutputLock {
	lockPath := corpusPath + ".lock"
	return &OutputLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// Acquire takes the lock, retrying briefly with backoff in case a
// previous build is just finishing. A lock still held after the retry
// schedule fails with a retryable error so the caller can report who
// to blame.
func (l *OutputLock) Acquire(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	err := pxerrors.Retry(ctx, pxerrors.LockRetryConfig(), func() error {
		acquired, err := l.flock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !acquired {
			return fmt.Errorf("lock held by another process")
		}
		l.locked = true
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return pxerrors.New(pxerrors.ErrCodeOutputLocked,
			fmt.Sprintf("output file is locked: %s", l.path), err).
			WithSuggestion("Another build may be running. Wait for it to finish or remove a stale lock file.")
	}
	return nil
}

// Release drops the lock. Safe to call twice or on a lock never
// acquired.
func (l *OutputLock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Path returns the lock file location.
func (l *OutputLock) Path() string {
	return l.path
}
