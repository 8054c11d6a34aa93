package persist

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/record"
	"github.com/roach88/cascade/internal/store"
	"github.com/roach88/cascade/internal/testutil"
)

func TestDeleteObjects_OwnershipFilter(t *testing.T) {
	h := openTestHolder(t)
	m := h.Current()
	ctx := context.Background()

	a := insert(t, m.Main(), "note", record.Map{"name": record.String("a")})
	b := insert(t, m.Main(), "note", record.Map{"name": record.String("b")})
	require.True(t, m.CommitSync(ctx, m.Main(), nil))

	// b as seen through Leaf belongs to Leaf, not Main.
	var bLeaf *Object
	require.NoError(t, m.Leaf().Perform(ctx, func(tx *Tx) error {
		var err error
		bLeaf, err = tx.Get(b.ID())
		return err
	}))

	n := m.DeleteObjects(ctx, []*Object{a, bLeaf}, m.Main(), true)
	assert.Equal(t, 1, n)

	// Barriers: Main runs the deletion and its commit level first, and the
	// Root level is queued before the Root barrier.
	require.NoError(t, m.Main().Perform(ctx, func(*Tx) error { return nil }))
	require.NoError(t, m.Root().Perform(ctx, func(*Tx) error { return nil }))
	assert.False(t, hasChanges(t, m.Main()))
	assert.False(t, hasChanges(t, m.Root()))

	rows := durableRows(t, h, "note")
	assert.Equal(t, []record.ObjectID{b.ID()}, rowIDs(rows))
}

func TestDeleteObjects_WithoutSaveStaysPending(t *testing.T) {
	m := openTestHolder(t).Current()
	ctx := context.Background()

	a := insert(t, m.Leaf(), "note", nil)
	require.True(t, m.CommitSync(ctx, m.Leaf(), nil))

	assert.Equal(t, 1, m.DeleteObjects(ctx, []*Object{a, nil}, m.Leaf(), false))

	// FIFO on Leaf: the deletion has run by the time this answers.
	assert.True(t, hasChanges(t, m.Leaf()))
	assert.Len(t, fetchRows(t, m.Root(), "note"), 1)
	assert.Empty(t, fetchRows(t, m.Leaf(), "note"))
}

func TestDeleteObjects_StaleManager(t *testing.T) {
	h := openTestHolder(t)
	old := h.Current()
	obj := insert(t, old.Leaf(), "note", nil)
	h.Reinitialize()

	assert.Equal(t, 0, old.DeleteObjects(context.Background(), []*Object{obj}, old.Leaf(), true))
}

func TestDestroyStore_YieldsEmptyStore(t *testing.T) {
	h := openTestHolder(t)
	m := h.Current()
	ctx := context.Background()

	insert(t, m.Leaf(), "note", nil)
	require.True(t, m.CommitSync(ctx, m.Leaf(), nil))
	insert(t, m.Leaf(), "note", nil) // pending, discarded by reset

	done := make(chan struct{})
	m.DestroyStore(ctx, func() { close(done) })
	testutil.Recv(t, done)

	assert.Same(t, m, h.Current(), "same manager keeps serving")
	assert.False(t, m.Stale())
	assert.Empty(t, fetchRows(t, m.Root(), ""))
	assert.Empty(t, fetchRows(t, m.Leaf(), ""))
	assert.False(t, hasChanges(t, m.Leaf()))

	_, err := os.Stat(m.Path())
	assert.NoError(t, err, "store file exists at the same location")

	insert(t, m.Leaf(), "note", nil)
	assert.True(t, m.CommitSync(ctx, m.Leaf(), nil))
}

func TestDestroyStore_SelfHealsWhenFileMissing(t *testing.T) {
	h := openTestHolder(t)
	old := h.Current()
	ctx := context.Background()
	gen := h.Generation()

	insert(t, old.Leaf(), "note", nil)
	require.True(t, old.CommitSync(ctx, old.Leaf(), nil))

	require.NoError(t, os.Remove(old.Path()))

	done := make(chan struct{})
	old.DestroyStore(ctx, func() { close(done) })
	testutil.Recv(t, done)

	m := h.Current()
	assert.NotEqual(t, old.ID(), m.ID())
	assert.Equal(t, gen+1, h.Generation())
	assert.True(t, old.Stale())
	assert.False(t, m.Stale())

	insert(t, m.Leaf(), "note", nil)
	assert.True(t, m.CommitSync(ctx, m.Leaf(), nil))
	assert.Len(t, fetchRows(t, m.Root(), "note"), 1)

	assert.False(t, old.CommitSync(ctx, old.Leaf(), nil))
	assert.ErrorIs(t, old.Leaf().Perform(ctx, func(*Tx) error { return nil }), ErrStale)
}

func TestDestroyStore_SelfHealsFromMainTask(t *testing.T) {
	h := openTestHolder(t)
	old := h.Current()
	gen := h.Generation()

	insert(t, old.Leaf(), "note", nil)
	require.True(t, old.CommitSync(context.Background(), old.Leaf(), nil))
	require.NoError(t, os.Remove(old.Path()))

	called := false
	performOn(t, old.Main(), func(tx *Tx) {
		old.DestroyStore(tx.Ctx(), func() { called = true })
	})

	assert.True(t, called)
	m := h.Current()
	assert.NotEqual(t, old.ID(), m.ID())
	assert.Equal(t, gen+1, h.Generation())
	assert.True(t, old.Stale())

	insert(t, m.Leaf(), "note", nil)
	assert.True(t, m.CommitSync(context.Background(), m.Leaf(), nil))
	assert.Len(t, fetchRows(t, m.Root(), "note"), 1)
}

func TestDestroyStore_FromMainTask(t *testing.T) {
	h := openTestHolder(t)
	m := h.Current()
	insert(t, m.Leaf(), "note", nil)
	require.True(t, m.CommitSync(context.Background(), m.Leaf(), nil))

	called := false
	performOn(t, m.Main(), func(tx *Tx) {
		m.DestroyStore(tx.Ctx(), func() { called = true })
	})

	assert.True(t, called)
	assert.Same(t, m, h.Current(), "successful destroy keeps the manager")
	assert.Empty(t, fetchRows(t, m.Root(), "note"))
}

func TestDestroyStore_SelfHealsOnEngineError(t *testing.T) {
	failures := 0
	h := openTestHolder(t, func(s *settings) {
		s.destroy = func(path string, opts store.Options) error {
			failures++
			return errors.New("simulated destroy failure")
		}
	})
	old := h.Current()

	done := make(chan struct{})
	old.DestroyStore(context.Background(), func() { close(done) })
	testutil.Recv(t, done)

	assert.Equal(t, 1, failures)
	assert.NotEqual(t, old.ID(), h.Current().ID())

	m := h.Current()
	insert(t, m.Leaf(), "note", nil)
	assert.True(t, m.CommitSync(context.Background(), m.Leaf(), nil))
}

func TestDestroyStore_StaleManagerStillCallsBack(t *testing.T) {
	h := openTestHolder(t)
	old := h.Current()
	h.Reinitialize()

	called := false
	old.DestroyStore(context.Background(), func() { called = true })
	assert.True(t, called)
	assert.Equal(t, uint64(2), h.Generation(), "no further replacement")
}
