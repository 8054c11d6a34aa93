package persist

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/roach88/cascade/internal/record"
	"github.com/roach88/cascade/internal/store"
)

// Tx is the handle passed to Perform callbacks. It is the only way to read
// or mutate a context, and it is invalid once the callback returns.
type Tx struct {
	c    *Context
	ctx  context.Context
	done atomic.Bool
}

// Context returns the context the transaction runs in.
func (tx *Tx) Context() *Context { return tx.c }

// Ctx returns the context.Context of the task running the callback. It
// marks the callback's domain as held: blocking calls made from inside the
// callback (CommitSync, DestroyStore, Perform on another context) must be
// given Ctx, or they queue behind the callback and never run.
func (tx *Tx) Ctx() context.Context { return tx.ctx }

func (tx *Tx) check() error {
	if tx.done.Load() {
		return ErrTxDone
	}
	return nil
}

// entry returns the live entry for obj in this context.
func (tx *Tx) entry(obj *Object) (*entry, error) {
	if obj == nil {
		return nil, fmt.Errorf("%w: nil object", ErrNotFound)
	}
	if obj.owner != tx.c {
		return nil, fmt.Errorf("%w: %s", ErrForeignObject, obj)
	}
	e, ok := tx.c.objects[obj.id]
	if !ok || e.obj != obj {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, obj)
	}
	if e.deleted {
		return nil, fmt.Errorf("%w: %s", ErrDeleted, obj)
	}
	return e, nil
}

// Insert registers a new object of kind with a fresh id and records an
// insert.
func (tx *Tx) Insert(kind string, attrs record.Map) (*Object, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	k, err := record.ParseKind(kind)
	if err != nil {
		return nil, err
	}

	c := tx.c
	id := c.mgr.settings.ids.NewID()
	ch := Change{Op: store.OpInsert, ID: id, Kind: k, Attrs: attrs.Clone()}
	if err := c.pending.add(ch); err != nil {
		return nil, err
	}

	obj := &Object{id: id, kind: k, owner: c}
	c.objects[id] = &entry{obj: obj, attrs: attrs.Clone()}
	return obj, nil
}

// Update merges attrs into the object's attributes. A nil value removes
// the key.
func (tx *Tx) Update(obj *Object, attrs record.Map) error {
	if err := tx.check(); err != nil {
		return err
	}
	e, err := tx.entry(obj)
	if err != nil {
		return err
	}

	next := e.attrs.Clone()
	for k, v := range attrs {
		if v == nil {
			delete(next, k)
			continue
		}
		next[k] = v
	}

	ch := Change{Op: store.OpUpdate, ID: obj.id, Kind: obj.kind, Attrs: next.Clone()}
	if err := tx.c.pending.add(ch); err != nil {
		return err
	}
	e.attrs = next
	return nil
}

// Set updates a single attribute.
func (tx *Tx) Set(obj *Object, key string, v record.Value) error {
	return tx.Update(obj, record.Map{key: v})
}

// Delete marks obj deleted in this context.
func (tx *Tx) Delete(obj *Object) error {
	if err := tx.check(); err != nil {
		return err
	}
	e, err := tx.entry(obj)
	if err != nil {
		return err
	}
	if err := tx.c.pending.add(Change{Op: store.OpDelete, ID: obj.id, Kind: obj.kind}); err != nil {
		return err
	}
	e.deleted = true
	return nil
}

// Get returns the object with id, faulting it in from the parent chain
// when this context has not seen it yet.
func (tx *Tx) Get(id record.ObjectID) (*Object, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	row, err := tx.c.lookup(tx.ctx, id)
	if err != nil {
		return nil, err
	}
	return tx.c.register(row), nil
}

// Fetch returns every live object of kind visible from this context,
// ordered by id. An empty kind fetches all kinds.
func (tx *Tx) Fetch(kind string) ([]*Object, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	var k record.Kind
	if kind != "" {
		var err error
		if k, err = record.ParseKind(kind); err != nil {
			return nil, err
		}
	}

	rows, err := tx.c.rows(tx.ctx, k)
	if err != nil {
		return nil, err
	}
	out := make([]*Object, len(rows))
	for i, r := range rows {
		out[i] = tx.c.register(r)
	}
	return out, nil
}

// Attrs returns a copy of the object's attributes.
func (tx *Tx) Attrs(obj *Object) (record.Map, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	e, err := tx.entry(obj)
	if err != nil {
		return nil, err
	}
	return e.attrs.Clone(), nil
}

// Row returns the object as a record.Row.
func (tx *Tx) Row(obj *Object) (record.Row, error) {
	if err := tx.check(); err != nil {
		return record.Row{}, err
	}
	e, err := tx.entry(obj)
	if err != nil {
		return record.Row{}, err
	}
	return e.row(), nil
}

// HasChanges reports whether the context has uncommitted mutations. It
// reports false once the transaction is done.
func (tx *Tx) HasChanges() bool {
	if tx.check() != nil {
		return false
	}
	return tx.c.pending.Len() > 0
}

// Changes returns a copy of the pending change set, or nil once the
// transaction is done.
func (tx *Tx) Changes() ChangeSet {
	if tx.check() != nil {
		return nil
	}
	return tx.c.pending.snapshot()
}
