package store

import (
	"context"
	"fmt"

	"github.com/roach88/cascade/internal/record"
)

// Op is the kind of a Mutation.
type Op int

const (
	// OpInsert creates a new object. Inserting an existing ID fails.
	OpInsert Op = iota + 1
	// OpUpdate replaces the attributes of an object, creating it if absent.
	OpUpdate
	// OpDelete removes an object. Deleting an absent ID is a no-op.
	OpDelete
)

// String returns the lowercase op name.
func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Mutation is one change to apply to the store.
type Mutation struct {
	Op    Op
	ID    record.ObjectID
	Kind  record.Kind
	Attrs record.Map
}

// Apply writes all mutations in a single transaction: either every
// mutation lands or none does. Attributes are stored as canonical JSON.
// Failures are reported as CodeIO.
func (s *Store) Apply(ctx context.Context, muts []Mutation) error {
	if s.db == nil {
		return newError("apply", CodeIO, s.path, ErrClosed)
	}
	if len(muts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return newError("apply", CodeIO, s.path, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() // No-op if committed

	for _, m := range muts {
		switch m.Op {
		case OpInsert, OpUpdate:
			attrs, err := record.MarshalCanonical(m.Attrs.Clone())
			if err != nil {
				return newError("apply", CodeIO, s.path, fmt.Errorf("%s %s: %w", m.Op, m.ID, err))
			}
			query := `
				INSERT INTO objects (id, kind, attrs, version)
				VALUES (?, ?, ?, 1)`
			if m.Op == OpUpdate {
				query += `
				ON CONFLICT(id) DO UPDATE SET
					kind = excluded.kind,
					attrs = excluded.attrs,
					version = objects.version + 1`
			}
			if _, err := tx.ExecContext(ctx, query, string(m.ID), string(m.Kind), string(attrs)); err != nil {
				return newError("apply", CodeIO, s.path, fmt.Errorf("%s %s: %w", m.Op, m.ID, err))
			}

		case OpDelete:
			if _, err := tx.ExecContext(ctx, `DELETE FROM objects WHERE id = ?`, string(m.ID)); err != nil {
				return newError("apply", CodeIO, s.path, fmt.Errorf("delete %s: %w", m.ID, err))
			}

		default:
			return newError("apply", CodeIO, s.path, fmt.Errorf("unknown op %d for %s", m.Op, m.ID))
		}
	}

	if err := tx.Commit(); err != nil {
		return newError("apply", CodeIO, s.path, fmt.Errorf("commit: %w", err))
	}
	return nil
}
