package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// sidecarSuffixes are the files SQLite keeps next to a WAL-mode database.
var sidecarSuffixes = []string{"-wal", "-shm", "-journal"}

// Destroy removes the store at path together with its sidecar files.
//
// It fails with CodeMissing when no store file exists, and with CodeLocked
// when an attached handle (in this or another process) owns the store lock.
// Callers must Close their own handle first.
func Destroy(path string, opts Options) error {
	if path == "" {
		return newError("destroy", CodeDestroy, path, errors.New("path is empty"))
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return newError("destroy", CodeMissing, path, err)
		}
		return newError("destroy", CodeDestroy, path, err)
	}

	// A single attempt: destroying a store someone is using must fail fast.
	lock, err := acquireLock(path, 0)
	if err != nil {
		code := CodeDestroy
		if errors.Is(err, errLockBusy) {
			code = CodeLocked
		}
		return newError("destroy", code, path, err)
	}
	defer func() {
		lock.release()
		_ = os.Remove(lock.path)
	}()

	if err := os.Remove(path); err != nil {
		return newError("destroy", CodeDestroy, path, fmt.Errorf("remove store file: %w", err))
	}
	for _, suffix := range sidecarSuffixes {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return newError("destroy", CodeDestroy, path, fmt.Errorf("remove %s: %w", path+suffix, err))
		}
	}
	return nil
}

// RemoveFiles deletes the store file, its sidecars and its lock file
// without any checks, returning the first error encountered (missing
// files are not errors). Used for best-effort teardown.
func RemoveFiles(path string) error {
	var first error
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal", lockPath(path)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) && first == nil {
			first = err
		}
	}
	return first
}
