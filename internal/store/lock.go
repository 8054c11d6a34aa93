package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// lockRetryInterval is the pause between non-blocking flock attempts.
const lockRetryInterval = 10 * time.Millisecond

var errLockBusy = errors.New("lock is held by another handle")

// fileLock is an exclusive advisory lock on "<store>.lock".
// flock locks belong to the open file description, so two handles in the
// same process contend exactly like two processes do.
type fileLock struct {
	path string
	file *os.File
}

func lockPath(storePath string) string {
	return storePath + ".lock"
}

// acquireLock tries to take the lock, retrying until timeout elapses.
// A zero timeout makes a single attempt.
func acquireLock(storePath string, timeout time.Duration) (*fileLock, error) {
	path := lockPath(storePath)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600) //nolint:gosec // path is derived from configuration
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &fileLock{path: path, file: file}, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) {
			_ = file.Close()
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}
		if !time.Now().Before(deadline) {
			_ = file.Close()
			return nil, fmt.Errorf("%w: %s", errLockBusy, path)
		}
		time.Sleep(lockRetryInterval)
	}
}

// release drops the lock. Safe to call on a nil or released lock.
func (l *fileLock) release() {
	if l == nil || l.file == nil {
		return
	}
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}
