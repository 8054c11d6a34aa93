package record

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ObjectID identifies an entity across every context and the store.
type ObjectID string

// Kind names an entity type (e.g. "note", "contact").
type Kind string

// ErrInvalidKind is returned for empty or malformed kind names.
var ErrInvalidKind = errors.New("invalid kind")

// ParseKind NFC-normalizes and validates a kind name.
// Kinds are non-empty, contain no whitespace or control characters,
// and are at most 128 bytes.
func ParseKind(s string) (Kind, error) {
	k := norm.NFC.String(strings.TrimSpace(s))
	if k == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKind)
	}
	if len(k) > 128 {
		return "", fmt.Errorf("%w: %q exceeds 128 bytes", ErrInvalidKind, k)
	}
	for _, r := range k {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", fmt.Errorf("%w: %q contains whitespace or control characters", ErrInvalidKind, k)
		}
	}
	return Kind(k), nil
}

// Row is an entity as persisted by the store.
type Row struct {
	ID      ObjectID `json:"id"`
	Kind    Kind     `json:"kind"`
	Attrs   Map      `json:"attrs"`
	Version int64    `json:"version"`
}
