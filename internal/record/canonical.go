package record

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical encodes v as RFC 8785 canonical JSON, the form
// attributes are persisted in. Equal values always encode to equal bytes:
// object keys are ordered by UTF-16 code units, strings are NFC normalized
// and nothing beyond quote, backslash and control characters is escaped.
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil:
		return errors.New("canonical JSON: nil value")
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case String:
		writeCanonicalString(buf, string(val))
	case List:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("list[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Map:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, k)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canonical JSON: unsupported type %T", v)
	}
	return nil
}

const hexDigits = "0123456789abcdef"

// writeCanonicalString quotes s. Invalid UTF-8 is replaced with U+FFFD.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	s = norm.NFC.String(s)
	buf.WriteByte('"')
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		switch {
		case r == utf8.RuneError && size == 1:
			buf.WriteRune(utf8.RuneError)
		case r == '"' || r == '\\':
			buf.WriteByte('\\')
			buf.WriteByte(byte(r))
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r < 0x20:
			buf.WriteString(`\u00`)
			buf.WriteByte(hexDigits[r>>4])
			buf.WriteByte(hexDigits[r&0xf])
		default:
			buf.WriteString(s[:size])
		}
		s = s[size:]
	}
	buf.WriteByte('"')
}

// UnmarshalMap decodes persisted attribute JSON.
func UnmarshalMap(data []byte) (Map, error) {
	var m Map
	if err := m.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	if m == nil {
		m = Map{}
	}
	return m, nil
}
