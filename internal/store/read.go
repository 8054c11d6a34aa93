package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cascade/internal/record"
)

// Get returns the object with the given ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id record.ObjectID) (record.Row, error) {
	if s.db == nil {
		return record.Row{}, newError("get", CodeIO, s.path, ErrClosed)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, attrs, version FROM objects WHERE id = ?`, string(id))

	r, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Row{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return record.Row{}, newError("get", CodeIO, s.path, err)
	}
	return r, nil
}

// Fetch returns every object of the given kind, or every object when kind
// is empty. Results are ordered by id so reads are deterministic.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) Fetch(ctx context.Context, kind record.Kind) ([]record.Row, error) {
	if s.db == nil {
		return nil, newError("fetch", CodeIO, s.path, ErrClosed)
	}

	query := `SELECT id, kind, attrs, version FROM objects`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, newError("fetch", CodeIO, s.path, err)
	}
	defer rows.Close()

	out := []record.Row{}
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, newError("fetch", CodeIO, s.path, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, newError("fetch", CodeIO, s.path, fmt.Errorf("iterate objects: %w", err))
	}
	return out, nil
}

// Count returns the number of objects of the given kind (all when empty).
func (s *Store) Count(ctx context.Context, kind record.Kind) (int, error) {
	if s.db == nil {
		return 0, newError("count", CodeIO, s.path, ErrClosed)
	}

	query := `SELECT COUNT(*) FROM objects`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, newError("count", CodeIO, s.path, err)
	}
	return n, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner) (record.Row, error) {
	var (
		id, kind, attrs string
		version         int64
	)
	if err := sc.Scan(&id, &kind, &attrs, &version); err != nil {
		return record.Row{}, err
	}

	m, err := record.UnmarshalMap([]byte(attrs))
	if err != nil {
		return record.Row{}, fmt.Errorf("object %s: %w", id, err)
	}

	return record.Row{
		ID:      record.ObjectID(id),
		Kind:    record.Kind(kind),
		Attrs:   m,
		Version: version,
	}, nil
}
