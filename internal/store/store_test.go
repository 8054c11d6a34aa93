package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.sqlite")

	s, err := Open(context.Background(), path, Options{})
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
	assert.Equal(t, path, s.Path())
}

func TestOpen_OpensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sqlite")
	ctx := context.Background()

	s1, err := Open(ctx, path, Options{})
	require.NoError(t, err)
	require.NoError(t, s1.Apply(ctx, []Mutation{insertMutation("a", "note", nil)}))
	require.NoError(t, s1.Close())

	s2, err := Open(ctx, path, Options{})
	require.NoError(t, err)
	defer s2.Close()

	n, err := s2.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "", Options{})
	require.Error(t, err)
	assert.Equal(t, CodeAttach, CodeOf(err))
}

func TestOpen_UnwritableLocation(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	// A regular file where a directory is expected.
	_, err := Open(context.Background(), filepath.Join(blocker, "test.sqlite"), Options{})
	require.Error(t, err)
	assert.Equal(t, CodeAttach, CodeOf(err))
}

func TestOpen_LockedByAnotherHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sqlite")
	ctx := context.Background()

	s1, err := Open(ctx, path, Options{})
	require.NoError(t, err)
	defer s1.Close()

	_, err = Open(ctx, path, Options{LockTimeout: -1})
	require.Error(t, err)
	assert.True(t, IsLocked(err), "expected lock error, got %v", err)
}

func TestOpen_WaitsForLockRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sqlite")
	ctx := context.Background()

	s1, err := Open(ctx, path, Options{})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		s2, err := Open(ctx, path, Options{})
		if err == nil {
			s2.Close()
		}
		done <- err
	}()

	require.NoError(t, s1.Close())
	assert.NoError(t, <-done)
}

func TestOpen_PureGoDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sqlite")
	ctx := context.Background()

	s, err := Open(ctx, path, Options{Driver: DriverPureGo})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Apply(ctx, []Mutation{insertMutation("a", "note", map[string]string{"t": "x"})}))
	row, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "note", string(row.Kind))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "x.sqlite"), Options{Driver: "nope"})
	require.Error(t, err)
	assert.Equal(t, CodeAttach, CodeOf(err))
}

func TestClose_MultipleCalls(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestClosedStoreOperations(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.Close())
	ctx := context.Background()

	err := s.Apply(ctx, []Mutation{insertMutation("a", "note", nil)})
	assert.True(t, IsIO(err))
	_, err = s.Fetch(ctx, "")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPragmas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sqlite")

	s, err := Open(context.Background(), path, Options{})
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
}

func TestPragma_CustomBusyTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sqlite")

	s, err := Open(context.Background(), path, Options{BusyTimeout: 1500 * time.Millisecond})
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.verifyPragma("busy_timeout", "1500"))
}

func TestSchema_ObjectsTable(t *testing.T) {
	s := createTestStore(t)

	cols := getTableColumns(t, s.db, "objects")
	assert.ElementsMatch(t, []string{"id", "kind", "attrs", "version"}, cols)

	version, err := userVersion(context.Background(), s.db)
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)
}

func TestErrorFormatting(t *testing.T) {
	err := newError("destroy", CodeLocked, "/tmp/x.sqlite", os.ErrPermission)
	assert.Equal(t, "store destroy LOCKED (/tmp/x.sqlite): permission denied", err.Error())
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, ErrorCode(""), CodeOf(os.ErrPermission))
}
