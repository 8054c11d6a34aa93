package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/roach88/cascade/internal/record"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	s, err := Open(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// insertMutation builds an insert with string attributes.
func insertMutation(id, kind string, attrs map[string]string) Mutation {
	m := record.Map{}
	for k, v := range attrs {
		m[k] = record.String(v)
	}
	return Mutation{Op: OpInsert, ID: record.ObjectID(id), Kind: record.Kind(kind), Attrs: m}
}

// getTableColumns returns the column names of a table.
func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		t.Fatalf("table_info(%s): %v", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan column: %v", err)
		}
		cols = append(cols, name)
	}
	return cols
}

// createV1Store writes a store in the version 1 layout and closes it.
func createV1Store(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open(DriverCGO, path)
	if err != nil {
		t.Fatalf("open v1 store: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE objects (id TEXT PRIMARY KEY, kind TEXT NOT NULL, attrs TEXT NOT NULL)`,
		`INSERT INTO objects (id, kind, attrs) VALUES ('legacy-1', 'note', '{"title":"old"}')`,
		`PRAGMA user_version = 1`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("v1 setup %q: %v", stmt, err)
		}
	}
}
