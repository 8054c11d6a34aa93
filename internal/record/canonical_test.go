package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"string", String("hello"), `"hello"`},
		{"empty string", String(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"max int64", Int(9223372036854775807), "9223372036854775807"},
		{"bool true", Bool(true), "true"},
		{"null", Null{}, "null"},
		{"empty list", List{}, "[]"},
		{"empty map", Map{}, "{}"},
		{"list of ints", List{Int(1), Int(2), Int(3)}, "[1,2,3]"},
		{"simple map", Map{"a": Int(1)}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	m := Map{
		"zebra": Int(1),
		"alpha": Int(2),
		"beta":  Map{"y": Int(1), "x": Int(2)},
	}

	result, err := MarshalCanonical(m)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":{"x":2,"y":1},"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as a surrogate pair (0xD800...) which sorts before U+E000.
	m := Map{
		"\uE000":     Int(1),
		"\U00010000": Int(2),
	}

	result, err := MarshalCanonical(m)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(String("<a & b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(result))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical(String("a\u2028b\u2029c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(result))

	// A literal backslash followed by "u2028" must stay escaped.
	result, err = MarshalCanonical(String(`x\u2028`))
	require.NoError(t, err)
	assert.Equal(t, `"x\\u2028"`, string(result))
}

func TestMarshalCanonicalControlCharacters(t *testing.T) {
	result, err := MarshalCanonical(String("a\tb\n\x01\"\\"))
	require.NoError(t, err)
	assert.Equal(t, `"a\tb\n\u0001\"\\"`, string(result))
}

func TestMarshalCanonicalInvalidUTF8(t *testing.T) {
	result, err := MarshalCanonical(String("a\xffb"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\uFFFDb\"", string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to the precomposed form.
	result, err := MarshalCanonical(String("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"\u00E9\"", string(result))
}

func TestMarshalCanonicalNil(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)
}

func TestUnmarshalMapRoundTrip(t *testing.T) {
	in := Map{
		"title": String("groceries"),
		"count": Int(3),
		"done":  Bool(false),
		"tags":  List{String("home"), String("weekly")},
		"meta":  Map{"owner": Null{}},
	}

	data, err := MarshalCanonical(in)
	require.NoError(t, err)

	out, err := UnmarshalMap(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestUnmarshalMapRejectsFloats(t *testing.T) {
	for _, in := range []string{`{"price":1.5}`, `{"n":1e3}`, `{"l":[1,2.5]}`} {
		_, err := UnmarshalMap([]byte(in))
		require.Error(t, err, in)
		assert.Contains(t, err.Error(), "floats", in)
	}
}

func TestUnmarshalMapNull(t *testing.T) {
	m, err := UnmarshalMap([]byte(`null`))
	require.NoError(t, err)
	assert.Equal(t, Map{}, m)
}

func TestUnmarshalMapInvalid(t *testing.T) {
	_, err := UnmarshalMap([]byte(`[1]`))
	assert.Error(t, err)
}
