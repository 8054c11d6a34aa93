// Package store is the file-backed store engine underneath cascade.
//
// A Store is one SQLite database holding a single objects table:
//
//	objects(id TEXT PRIMARY KEY, kind TEXT, attrs TEXT, version INTEGER)
//
// Attributes are persisted as RFC 8785 canonical JSON (see package record)
// so identical attribute maps always produce identical bytes.
//
// # Attach, Destroy, Errors
//
// The engine exposes three capabilities and nothing else:
//   - Open: attach (creating when absent) with migration-tolerant Options
//   - Destroy: remove the store file and its sidecars
//   - Error: every failure carries an ErrorCode (ATTACH, DESTROY, IO,
//     LOCKED, MISSING, MIGRATION); use IsIO, IsLocked, IsMissing,
//     IsMigration to classify wrapped errors
//
// An attached Store holds an exclusive flock on "<path>.lock". A second
// Open of the same path waits up to Options.LockTimeout; Destroy refuses
// to remove a store whose lock is held.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout: 5000ms unless overridden
//   - foreign_keys=ON
//   - One connection: SQLite supports a single writer
//
// # Migrations
//
// Schema versions are tracked in PRAGMA user_version. A fresh store gets the
// embedded schema.sql directly. Older stores are upgraded step by step:
// structural steps require Options.AutoMigrate, lightweight inferred steps
// (index additions) require Options.InferMapping. A store written by a newer
// schema is refused.
//
// Two drivers are supported: "sqlite3" (github.com/mattn/go-sqlite3, cgo,
// default) and "sqlite" (modernc.org/sqlite, pure Go).
package store
