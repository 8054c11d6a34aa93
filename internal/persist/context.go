package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/cascade/internal/domain"
	"github.com/roach88/cascade/internal/record"
	"github.com/roach88/cascade/internal/store"
)

// Context is a working view over the store: registered objects plus a set
// of pending changes. Its state is confined to its domain; the only way in
// is Perform or PerformAsync.
type Context struct {
	role    Role
	dom     *domain.Domain
	parent  *Context
	mgr     *Manager
	objects map[record.ObjectID]*entry
	pending *pendingSet
	logger  *slog.Logger
}

func newContext(m *Manager, role Role, dom *domain.Domain, parent *Context) *Context {
	return &Context{
		role:    role,
		dom:     dom,
		parent:  parent,
		mgr:     m,
		objects: make(map[record.ObjectID]*entry),
		pending: newPendingSet(),
		logger:  m.logger.With("role", role.String()),
	}
}

// Role returns the context's position in the hierarchy.
func (c *Context) Role() Role { return c.role }

// Domain returns the execution domain the context is bound to.
func (c *Context) Domain() *domain.Domain { return c.dom }

// Parent returns the parent context, nil for Root.
func (c *Context) Parent() *Context { return c.parent }

// Manager returns the manager that owns the context.
func (c *Context) Manager() *Manager { return c.mgr }

// Perform runs fn on the context's domain and waits for it.
// The Tx is only valid until fn returns.
func (c *Context) Perform(ctx context.Context, fn func(*Tx) error) error {
	if c.mgr.Stale() {
		return ErrStale
	}
	return c.dom.Do(ctx, func(ctx context.Context) error {
		return c.run(ctx, fn)
	})
}

// PerformAsync enqueues fn on the context's domain and returns at once.
// Errors returned by fn are logged.
func (c *Context) PerformAsync(ctx context.Context, fn func(*Tx) error) error {
	if c.mgr.Stale() {
		return ErrStale
	}
	return c.dom.Submit(ctx, func(ctx context.Context) error {
		if err := c.run(ctx, fn); err != nil {
			c.logger.Warn("async perform failed", "error", err)
		}
		return nil
	})
}

func (c *Context) run(ctx context.Context, fn func(*Tx) error) error {
	tx := &Tx{c: c, ctx: ctx}
	defer tx.done.Store(true)
	return fn(tx)
}

// HasChanges reports whether the context has uncommitted mutations.
func (c *Context) HasChanges(ctx context.Context) (bool, error) {
	var has bool
	err := c.dom.Do(ctx, func(context.Context) error {
		has = c.pending.Len() > 0
		return nil
	})
	return has, err
}

// Reset discards every registered object and pending change.
func (c *Context) Reset(ctx context.Context) error {
	return c.dom.Do(ctx, func(context.Context) error {
		c.reset()
		return nil
	})
}

func (c *Context) reset() {
	c.objects = make(map[record.ObjectID]*entry)
	c.pending = newPendingSet()
	c.logger.Debug("context reset")
}

// register returns the registered object for row, creating the entry when
// absent. Registered state wins over row.
func (c *Context) register(row record.Row) *Object {
	if e, ok := c.objects[row.ID]; ok {
		return e.obj
	}
	obj := &Object{id: row.ID, kind: row.Kind, owner: c}
	c.objects[row.ID] = &entry{obj: obj, attrs: row.Attrs.Clone(), version: row.Version}
	return obj
}

// lookup resolves id through this context, faulting through the parent
// chain. Runs on c.dom.
func (c *Context) lookup(ctx context.Context, id record.ObjectID) (record.Row, error) {
	if e, ok := c.objects[id]; ok {
		if e.deleted {
			return record.Row{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return e.row(), nil
	}

	if c.parent == nil {
		var row record.Row
		err := c.mgr.coord.use(func(st *store.Store) error {
			var err error
			row, err = st.Get(ctx, id)
			return err
		})
		if errors.Is(err, store.ErrNotFound) {
			return record.Row{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return row, err
	}

	var row record.Row
	err := c.parent.dom.Do(ctx, func(ctx context.Context) error {
		var err error
		row, err = c.parent.lookup(ctx, id)
		return err
	})
	return row, err
}

// rows returns every live row of kind as seen from this context: the
// parent's view overlaid with this context's registered state. An empty
// kind selects all kinds. Runs on c.dom.
func (c *Context) rows(ctx context.Context, kind record.Kind) ([]record.Row, error) {
	var base []record.Row
	if c.parent == nil {
		err := c.mgr.coord.use(func(st *store.Store) error {
			var err error
			base, err = st.Fetch(ctx, kind)
			return err
		})
		if err != nil {
			return nil, err
		}
	} else {
		err := c.parent.dom.Do(ctx, func(ctx context.Context) error {
			var err error
			base, err = c.parent.rows(ctx, kind)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	view := make(map[record.ObjectID]record.Row, len(base)+len(c.objects))
	for _, r := range base {
		view[r.ID] = r
	}
	for id, e := range c.objects {
		if kind != "" && e.obj.kind != kind {
			continue
		}
		if e.deleted {
			delete(view, id)
			continue
		}
		view[id] = e.row()
	}

	out := make([]record.Row, 0, len(view))
	for _, r := range view {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b record.Row) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return out, nil
}

// absorb merges a child's committed change set into this context's pending
// set and registry. Either the whole set is absorbed or nothing is.
// Runs on c.dom.
func (c *Context) absorb(set ChangeSet) error {
	next := c.pending.clone()
	accepted := make(ChangeSet, 0, len(set))
	for _, ch := range set {
		if e, ok := c.objects[ch.ID]; ok && e.deleted {
			if ch.Op == store.OpDelete {
				continue
			}
			return fmt.Errorf("%s: %w: %s", c.role, ErrDeleted, ch.ID)
		}
		if err := next.add(ch); err != nil {
			return fmt.Errorf("%s: %w", c.role, err)
		}
		accepted = append(accepted, ch)
	}

	c.pending = next
	for _, ch := range accepted {
		e, ok := c.objects[ch.ID]
		if !ok {
			obj := &Object{id: ch.ID, kind: ch.Kind, owner: c}
			e = &entry{obj: obj}
			c.objects[ch.ID] = e
		}
		if ch.Op == store.OpDelete {
			e.deleted = true
			continue
		}
		e.attrs = ch.Attrs.Clone()
	}
	return nil
}

// commitLevel commits this context's own pending set one level up: into
// the parent's pending set, or into the store at Root. It reports whether
// anything was committed. Runs on c.dom.
func (c *Context) commitLevel(ctx context.Context) (bool, error) {
	if c.pending.Len() == 0 {
		return false, nil
	}
	set := c.pending.snapshot()

	if hook := c.mgr.settings.hook; hook != nil {
		if err := hook(c.role, set); err != nil {
			return false, fmt.Errorf("commit hook: %w", err)
		}
	}

	var err error
	if c.parent == nil {
		err = c.mgr.coord.apply(ctx, set)
	} else {
		err = c.parent.dom.Do(ctx, func(context.Context) error {
			return c.parent.absorb(set)
		})
	}
	if err != nil {
		return false, err
	}

	c.pending = newPendingSet()
	c.logger.Debug("level committed",
		"inserts", set.Count(store.OpInsert),
		"updates", set.Count(store.OpUpdate),
		"deletes", set.Count(store.OpDelete))
	return true, nil
}
