package persist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/record"
	"github.com/roach88/cascade/internal/testutil"
)

func openTestHolder(t *testing.T, opts ...Option) *Holder {
	t.Helper()
	return openTestHolderAt(t, testutil.StorePath(t), opts...)
}

func openTestHolderAt(t *testing.T, path string, opts ...Option) *Holder {
	t.Helper()
	base := []Option{
		WithIDGenerator(record.NewSequentialGenerator("obj")),
		WithFatalHandler(func(err error) { t.Errorf("fatal: %v", err) }),
	}
	h, err := Open(context.Background(), path, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h
}

// countingHook counts non-empty commits per role and fails the roles in fail.
func countingHook(c *testutil.Counter, fail map[Role]error) Option {
	return WithCommitHook(func(role Role, _ ChangeSet) error {
		c.Inc(role.String())
		return fail[role]
	})
}

func insert(t *testing.T, c *Context, kind string, attrs record.Map) *Object {
	t.Helper()
	var obj *Object
	err := c.Perform(context.Background(), func(tx *Tx) error {
		var err error
		obj, err = tx.Insert(kind, attrs)
		return err
	})
	require.NoError(t, err)
	return obj
}

func fetchRows(t *testing.T, c *Context, kind string) []record.Row {
	t.Helper()
	var rows []record.Row
	err := c.Perform(context.Background(), func(tx *Tx) error {
		objs, err := tx.Fetch(kind)
		if err != nil {
			return err
		}
		for _, o := range objs {
			r, err := tx.Row(o)
			if err != nil {
				return err
			}
			rows = append(rows, r)
		}
		return nil
	})
	require.NoError(t, err)
	return rows
}

// performOn runs fn inside a Perform on c, started from its own goroutine,
// and fails the test if the callback does not complete in time. fn runs
// off the test goroutine and must not call t.FailNow.
func performOn(t *testing.T, c *Context, fn func(tx *Tx)) {
	t.Helper()
	errc := make(chan error, 1)
	go func() {
		errc <- c.Perform(context.Background(), func(tx *Tx) error {
			fn(tx)
			return nil
		})
	}()
	require.NoError(t, testutil.Recv(t, errc))
}

func rowIDs(rows []record.Row) []record.ObjectID {
	ids := make([]record.ObjectID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}

func hasChanges(t *testing.T, c *Context) bool {
	t.Helper()
	has, err := c.HasChanges(context.Background())
	require.NoError(t, err)
	return has
}

// durableRows replaces the active manager, so the returned rows come from a
// freshly attached store rather than any context's registry.
func durableRows(t *testing.T, h *Holder, kind string) []record.Row {
	t.Helper()
	return fetchRows(t, h.Reinitialize().Root(), kind)
}
