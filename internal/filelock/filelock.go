// Package filelock serializes patch runs against the same target with an
// exclusive advisory lock on a per-target lock file.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Mavwarf/anchorpatch/internal/paths"
)

// pollInterval is how often a contended lock is retried.
const pollInterval = 50 * time.Millisecond

// ErrTimeout is returned when the lock could not be acquired before the
// context was done.
var ErrTimeout = errors.New("filelock: timed out waiting for lock")

// errContended is returned by tryLock when another holder owns the lock.
var errContended = errors.New("filelock: contended")

// Lock is a held lock. Release must be called exactly once.
type Lock struct {
	f    *os.File
	path string
}

// Acquire takes the exclusive lock for target, creating its lock file under
// dir. It retries every 50ms while the lock is held elsewhere and gives up
// with ErrTimeout once ctx is done.
func Acquire(ctx context.Context, dir, target string) (*Lock, error) {
	path := paths.LockPath(dir, target)
	if err := os.MkdirAll(filepath.Dir(path), paths.DirPerm); err != nil {
		return nil, fmt.Errorf("filelock: mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, paths.FilePerm)
	if err != nil {
		return nil, fmt.Errorf("filelock: open %s: %w", path, err)
	}

	for {
		err := tryLock(f)
		if err == nil {
			return &Lock{f: f, path: path}, nil
		}
		if !errors.Is(err, errContended) {
			f.Close()
			return nil, fmt.Errorf("filelock: lock %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, fmt.Errorf("%w (%s): %v", ErrTimeout, target, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock and closes the lock file. The lock file itself is
// kept so that concurrent waiters keep contending on the same inode.
func (l *Lock) Release() error {
	uerr := unlock(l.f)
	cerr := l.f.Close()
	if uerr != nil {
		return fmt.Errorf("filelock: unlock %s: %w", l.path, uerr)
	}
	return cerr
}
