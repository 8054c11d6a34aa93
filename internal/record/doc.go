// Package record defines the value model for entities managed by cascade.
//
// This package contains type definitions and serialization only. Every
// other internal package imports record; record imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - Attributes are persisted as RFC 8785 canonical JSON
//   - Strings and kind names are NFC normalized at the serialization boundary
package record
