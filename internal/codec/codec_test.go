package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Zeta  string         `json:"zeta"`
	Alpha int            `json:"alpha"`
	Tags  []string       `json:"tags,omitempty"`
	Extra map[string]any `json:"extra,omitempty"`
}

func TestByName(t *testing.T) {
	c, err := ByName("")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	c, err = ByName("canonical")
	require.NoError(t, err)
	assert.Equal(t, "canonical", c.Name())

	_, err = ByName("cereal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json, canonical")
}

func TestJSON_MarshalIsSingleLine(t *testing.T) {
	got, err := JSON{}.Marshal(sample{Zeta: "a\nb\tc", Alpha: 1})
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":"a\nb\tc","alpha":1}`, got)
	assert.NotContains(t, got, "\n")
}

func TestCanonical_SortsKeys(t *testing.T) {
	got, err := Canonical{}.Marshal(sample{Zeta: "z", Alpha: 2, Extra: map[string]any{"b": 1, "a": true}})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"extra":{"a":true,"b":1},"zeta":"z"}`, got)
}

func TestCanonical_NoHTMLEscape(t *testing.T) {
	got, err := Canonical{}.Marshal("<a & b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, got)

	plain, err := JSON{}.Marshal("<a & b>")
	require.NoError(t, err)
	assert.Equal(t, "\"\\u003ca \\u0026 b\\u003e\"", plain)
}

func TestCanonical_RejectsNonNFC(t *testing.T) {
	// "e" followed by a combining acute accent; NFC is U+00E9.
	_, err := Canonical{}.Marshal("e\xcc\x81")
	require.ErrorIs(t, err, ErrNotNFC)

	_, err = Canonical{}.Marshal(map[string]string{"e\xcc\x81": "x"})
	require.ErrorIs(t, err, ErrNotNFC)

	got, err := Canonical{}.Marshal("\xc3\xa9")
	require.NoError(t, err)
	assert.Equal(t, "\"\xc3\xa9\"", got)

	got, err = Canonical{AllowNonNFC: true}.Marshal(map[string]string{"e\xcc\x81": "x"})
	require.NoError(t, err)
	assert.Equal(t, "{\"e\xcc\x81\":\"x\"}", got)
}

func TestCanonical_LineSeparatorsLiteral(t *testing.T) {
	got, err := Canonical{}.Marshal("a\xe2\x80\xa8b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\xe2\x80\xa8b\"", got)
	assert.NotContains(t, got, "\n")

	// A literal backslash followed by the text u2028 stays escaped.
	got, err = Canonical{}.Marshal("x\\u2028")
	require.NoError(t, err)
	assert.Equal(t, `"x\\u2028"`, got)
}

func TestCanonical_UTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes as a surrogate pair (0xD83D...) which sorts before
	// U+FF61 in UTF-16 but after it in UTF-8.
	got, err := Canonical{}.Marshal(map[string]int{"｡": 1, "\U0001F600": 2})
	require.NoError(t, err)
	assert.True(t, strings.Index(got, "\U0001F600") < strings.Index(got, "｡"), got)
}

func TestCanonical_NumbersPreserved(t *testing.T) {
	got, err := Canonical{}.Marshal(map[string]any{"big": uint64(1 << 60), "f": 1.5})
	require.NoError(t, err)
	assert.Equal(t, `{"big":1152921504606846976,"f":1.5}`, got)
}

func TestCodecs_DecodeEachOther(t *testing.T) {
	in := sample{Zeta: "<é>", Alpha: 7, Tags: []string{"x", "y"}}
	for _, enc := range []Codec{JSON{}, Canonical{}} {
		for _, dec := range []Codec{JSON{}, Canonical{}} {
			data, err := enc.Marshal(in)
			require.NoError(t, err)
			var out sample
			require.NoError(t, dec.Unmarshal(data, &out), "%s -> %s", enc.Name(), dec.Name())
			assert.Equal(t, in, out)
		}
	}
}

func TestUnmarshal_Error(t *testing.T) {
	var out sample
	err := JSON{}.Unmarshal("{not json", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal payload")
}
