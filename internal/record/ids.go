package record

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces object identifiers.
// Implemented by UUIDv7Generator (production) and SequentialGenerator (tests).
type IDGenerator interface {
	NewID() ObjectID
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers, so rows
// fetched in id order come back roughly in creation order.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewID returns a new hyphenated UUIDv7.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) NewID() ObjectID {
	return ObjectID(uuid.Must(uuid.NewV7()).String())
}

// SequentialGenerator returns "<prefix>-0001", "<prefix>-0002", ...
// It makes traces and golden files byte-identical across runs.
//
// Thread-safety: SequentialGenerator is safe for concurrent use.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialGenerator creates a generator with the given prefix.
// An empty prefix defaults to "obj".
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "obj"
	}
	return &SequentialGenerator{prefix: prefix}
}

// NewID returns the next identifier in sequence.
func (g *SequentialGenerator) NewID() ObjectID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return ObjectID(fmt.Sprintf("%s-%04d", g.prefix, g.n))
}
