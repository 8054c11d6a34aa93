package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/cascade/internal/record"
)

// FixedIDs hands out a predefined list of object ids in order, then falls
// back to "<last>-<n>" once the list is exhausted.
//
// Thread-safety: FixedIDs is safe for concurrent use.
type FixedIDs struct {
	mu   sync.Mutex
	ids  []record.ObjectID
	next int
}

// NewFixedIDs creates a generator over ids. With no ids it yields
// "fixed-1", "fixed-2", ...
func NewFixedIDs(ids ...string) *FixedIDs {
	g := &FixedIDs{}
	for _, id := range ids {
		g.ids = append(g.ids, record.ObjectID(id))
	}
	return g
}

// NewID implements record.IDGenerator.
func (g *FixedIDs) NewID() record.ObjectID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	if g.next <= len(g.ids) {
		return g.ids[g.next-1]
	}
	base := "fixed"
	if len(g.ids) > 0 {
		base = string(g.ids[len(g.ids)-1])
	}
	return record.ObjectID(fmt.Sprintf("%s-%d", base, g.next-len(g.ids)))
}
