package persist

import (
	"fmt"
	"slices"

	"github.com/roach88/cascade/internal/record"
	"github.com/roach88/cascade/internal/store"
)

// Change is one pending mutation. Attrs is the full attribute snapshot for
// inserts and updates and empty for deletes.
type Change struct {
	Op    store.Op        `json:"op"`
	ID    record.ObjectID `json:"id"`
	Kind  record.Kind     `json:"kind"`
	Attrs record.Map      `json:"attrs,omitempty"`
}

// ChangeSet is a context's pending mutations in first-touch order.
type ChangeSet []Change

// Count returns how many changes in the set have the given op.
func (cs ChangeSet) Count(op store.Op) int {
	n := 0
	for _, ch := range cs {
		if ch.Op == op {
			n++
		}
	}
	return n
}

func (cs ChangeSet) mutations() []store.Mutation {
	muts := make([]store.Mutation, len(cs))
	for i, ch := range cs {
		muts[i] = store.Mutation{Op: ch.Op, ID: ch.ID, Kind: ch.Kind, Attrs: ch.Attrs}
	}
	return muts
}

// pendingSet accumulates changes per object, merging repeated touches:
//
//	insert + update -> insert
//	insert + delete -> nothing
//	update + update -> update
//	update + delete -> delete
//	delete + any    -> ErrDeleted
type pendingSet struct {
	order []record.ObjectID
	byID  map[record.ObjectID]Change
}

func newPendingSet() *pendingSet {
	return &pendingSet{byID: make(map[record.ObjectID]Change)}
}

func (p *pendingSet) Len() int {
	return len(p.byID)
}

func (p *pendingSet) clone() *pendingSet {
	out := &pendingSet{
		order: slices.Clone(p.order),
		byID:  make(map[record.ObjectID]Change, len(p.byID)),
	}
	for id, ch := range p.byID {
		out.byID[id] = ch
	}
	return out
}

func (p *pendingSet) add(ch Change) error {
	prev, had := p.byID[ch.ID]
	merged, keep, err := mergeChange(prev, had, ch)
	if err != nil {
		return err
	}
	switch {
	case !keep:
		delete(p.byID, ch.ID)
		p.order = slices.DeleteFunc(p.order, func(id record.ObjectID) bool { return id == ch.ID })
	case had:
		p.byID[ch.ID] = merged
	default:
		p.byID[ch.ID] = merged
		p.order = append(p.order, ch.ID)
	}
	return nil
}

func (p *pendingSet) snapshot() ChangeSet {
	out := make(ChangeSet, 0, len(p.order))
	for _, id := range p.order {
		ch := p.byID[id]
		ch.Attrs = ch.Attrs.Clone()
		if ch.Op == store.OpDelete {
			ch.Attrs = nil
		}
		out = append(out, ch)
	}
	return out
}

func mergeChange(prev Change, had bool, next Change) (Change, bool, error) {
	if !had {
		return next, true, nil
	}
	switch prev.Op {
	case store.OpDelete:
		return Change{}, false, fmt.Errorf("%w: %s", ErrDeleted, next.ID)
	case store.OpInsert:
		switch next.Op {
		case store.OpUpdate:
			return Change{Op: store.OpInsert, ID: next.ID, Kind: prev.Kind, Attrs: next.Attrs}, true, nil
		case store.OpDelete:
			return Change{}, false, nil
		}
	case store.OpUpdate:
		switch next.Op {
		case store.OpUpdate, store.OpDelete:
			if next.Kind == "" {
				next.Kind = prev.Kind
			}
			return next, true, nil
		}
	}
	return Change{}, false, fmt.Errorf("%w: %s", ErrDuplicate, next.ID)
}
