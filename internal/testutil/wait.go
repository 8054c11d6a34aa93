package testutil

import (
	"path/filepath"
	"testing"
	"time"
)

// DefaultWait bounds how long helpers wait for asynchronous results.
const DefaultWait = 5 * time.Second

// Recv receives one value from ch or fails the test after DefaultWait.
func Recv[T any](t testing.TB, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(DefaultWait):
		t.Fatalf("timed out after %s waiting for value", DefaultWait)
		var zero T
		return zero
	}
}

// StorePath returns a store file path inside a fresh temp directory.
func StorePath(t testing.TB) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "cascade.sqlite")
}
