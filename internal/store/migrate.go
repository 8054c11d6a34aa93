package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Schema version tracking (PRAGMA user_version):
// 1 - objects(id, kind, attrs)
// 2 - objects.version column (structural)
// 3 - idx_objects_kind index (inferred)
const currentSchemaVersion = 3

var (
	errMigrationNotPermitted = errors.New("migration not permitted by attach options")
	errSchemaTooNew          = errors.New("store schema is newer than supported")
)

// migration upgrades a store from version-1 to version.
// Inferred steps only add derivable structure (indexes) and are gated by
// Options.InferMapping; the rest change table shape and need AutoMigrate.
type migration struct {
	version  int
	inferred bool
	name     string
	stmt     string
}

var migrations = []migration{
	{
		version: 2,
		name:    "add objects.version",
		stmt:    `ALTER TABLE objects ADD COLUMN version INTEGER NOT NULL DEFAULT 1`,
	},
	{
		version:  3,
		inferred: true,
		name:     "index objects by kind",
		stmt:     `CREATE INDEX IF NOT EXISTS idx_objects_kind ON objects(kind, id)`,
	},
}

// applySchema creates the schema on a fresh store or upgrades an older one.
func applySchema(ctx context.Context, db *sql.DB, opts Options) error {
	version, err := userVersion(ctx, db)
	if err != nil {
		return err
	}

	if version > currentSchemaVersion {
		return fmt.Errorf("%w: version %d, supported %d", errSchemaTooNew, version, currentSchemaVersion)
	}
	if version == currentSchemaVersion {
		return nil
	}

	fresh, err := isFresh(ctx, db)
	if err != nil {
		return err
	}
	if fresh {
		if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
		return setUserVersion(ctx, db, currentSchemaVersion)
	}

	// An unversioned store with tables predates versioning: treat as v1.
	if version == 0 {
		version = 1
	}
	return runMigrations(ctx, db, version, opts)
}

// runMigrations applies every step above from, in order, each in its own
// transaction together with the user_version bump.
func runMigrations(ctx context.Context, db *sql.DB, from int, opts Options) error {
	for _, m := range migrations {
		if m.version <= from {
			continue
		}
		if m.inferred && !opts.InferMapping {
			return fmt.Errorf("%w: %q requires mapping inference", errMigrationNotPermitted, m.name)
		}
		if !m.inferred && !opts.AutoMigrate {
			return fmt.Errorf("%w: %q requires automatic migration", errMigrationNotPermitted, m.name)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migrate to v%d: begin: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migrate to v%d: set user_version: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate to v%d: commit: %w", m.version, err)
		}
	}
	return nil
}

func isFresh(ctx context.Context, db *sql.DB) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'objects'`,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("inspect schema: %w", err)
	}
	return n == 0, nil
}

func userVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(ctx context.Context, db *sql.DB, version int) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
