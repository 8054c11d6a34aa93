package persist

import "github.com/roach88/cascade/internal/record"

// Object is a context's handle to one entity. Handles are per context:
// the same id fetched through Main and Leaf yields two Objects with
// different owners.
type Object struct {
	id    record.ObjectID
	kind  record.Kind
	owner *Context
}

// ID returns the object id.
func (o *Object) ID() record.ObjectID { return o.id }

// Kind returns the entity type.
func (o *Object) Kind() record.Kind { return o.kind }

// Owner returns the context the object is registered in.
func (o *Object) Owner() *Context { return o.owner }

func (o *Object) String() string {
	return string(o.kind) + "/" + string(o.id)
}

// entry is the registered state of an object inside its owning context.
// Entries are retained until the context is reset.
type entry struct {
	obj     *Object
	attrs   record.Map
	version int64
	deleted bool
}

func (e *entry) row() record.Row {
	return record.Row{ID: e.obj.id, Kind: e.obj.kind, Attrs: e.attrs.Clone(), Version: e.version}
}
