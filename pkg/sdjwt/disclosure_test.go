package sdjwt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedRand is a deterministic byte source for reproducible salts and
// decoys in tests.
type fixedRand struct {
	next byte
}

func (r *fixedRand) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.next
		r.next++
	}
	return len(p), nil
}

func TestObjectDisclosureEncoding(t *testing.T) {
	d, err := NewObjectDisclosure("6qMQvRL5haj", "family_name", "Möbius")
	require.NoError(t, err)

	assert.Equal(t, "WyI2cU1RdlJMNWhhaiIsICJmYW1pbHlfbmFtZSIsICJNw7ZiaXVzIl0", d.EncodedValue())

	digest, err := d.Digest("sha-256", false)
	require.NoError(t, err)
	assert.Equal(t, "uutlBuYeMDyjLLTpf6Jxi7yNkEF35jdyWMn9U7b_RYY", digest)
}

func TestArrayElementDisclosureDecoding(t *testing.T) {
	d, err := DecodeDisclosure("WyJsa2x4RjVqTVlsR1RQVW92TU5JdkNBIiwgIkZSIl0")
	require.NoError(t, err)

	assert.Equal(t, DisclosureArrayElement, d.Kind())
	assert.Equal(t, "lklxF5jMYlGTPUovMNIvCA", d.Salt())

	_, hasName := d.Name()
	assert.False(t, hasName)
	assert.Equal(t, "FR", d.Value())

	digest, err := d.Digest("sha-256", false)
	require.NoError(t, err)
	assert.Equal(t, "w0I8EKcdCtUPkGCNUrfwVp2xEgNjtoIDlOxc9-PlOhs", digest)

	// decoding keeps the input verbatim, re-encoding must not drift
	assert.Equal(t, "WyJsa2x4RjVqTVlsR1RQVW92TU5JdkNBIiwgIkZSIl0", d.EncodedValue())
}

func TestDisclosureRoundtrip(t *testing.T) {
	tts := []struct {
		name  string
		claim string
		value any
	}{
		{name: "string", claim: "given_name", value: "John"},
		{name: "integer", claim: "age", value: 42},
		{name: "boolean", claim: "over_18", value: true},
		{name: "null", claim: "middle_name", value: nil},
		{name: "object", claim: "address", value: map[string]any{"locality": "Anytown", "country": "DE"}},
		{name: "array", claim: "nationalities", value: []any{"DE", "FR"}},
		{name: "non-ascii", claim: "name", value: "山田太郎"},
		{name: "html characters", claim: "note", value: "a<b&c>d"},
	}

	for _, tt := range tts {
		t.Run(tt.name, func(t *testing.T) {
			original, err := NewObjectDisclosure("salt-value", tt.claim, tt.value)
			require.NoError(t, err)

			decoded, err := DecodeDisclosure(original.EncodedValue())
			require.NoError(t, err)

			assert.Equal(t, original.EncodedValue(), decoded.EncodedValue())
			assert.Equal(t, "salt-value", decoded.Salt())

			name, ok := decoded.Name()
			require.True(t, ok)
			assert.Equal(t, tt.claim, name)

			wantJSON, err := json.Marshal(tt.value)
			require.NoError(t, err)
			gotJSON, err := json.Marshal(decoded.Value())
			require.NoError(t, err)
			assert.JSONEq(t, string(wantJSON), string(gotJSON))
		})
	}
}

func TestDecodeDisclosureRejects(t *testing.T) {
	tts := []struct {
		name string
		have string
	}{
		{name: "not base64url", have: "!!!"},
		{name: "not json", have: B64uEncode([]byte("not json"))},
		{name: "not an array", have: B64uEncode([]byte(`{"salt": "x"}`))},
		{name: "one element", have: B64uEncode([]byte(`["salt"]`))},
		{name: "four elements", have: B64uEncode([]byte(`["salt", "name", "value", "extra"]`))},
		{name: "salt not a string", have: B64uEncode([]byte(`[1, "name", "value"]`))},
		{name: "name not a string", have: B64uEncode([]byte(`["salt", 2, "value"]`))},
	}

	for _, tt := range tts {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDisclosure(tt.have)
			assert.ErrorContains(t, err, "INVALID_DISCLOSURE")
		})
	}
}

func TestNewObjectDisclosureRejectsReservedNames(t *testing.T) {
	for _, name := range []string{"", "_sd", "..."} {
		_, err := NewObjectDisclosure("salt", name, "v")
		assert.Error(t, err, "name %q", name)
	}
}

func TestGenerateDisclosureUsesInjectedRand(t *testing.T) {
	a, err := GenerateObjectDisclosure(&fixedRand{}, "claim", "value")
	require.NoError(t, err)
	b, err := GenerateObjectDisclosure(&fixedRand{}, "claim", "value")
	require.NoError(t, err)

	// identical entropy source, identical salt and encoding
	assert.Equal(t, a.Salt(), b.Salt())
	assert.Equal(t, a.EncodedValue(), b.EncodedValue())
}

func TestDecodeDisclosureNumberTextPreserved(t *testing.T) {
	// the digest covers the exact textual form, so 1.50 must not become 1.5
	encoded := B64uEncode([]byte(`["salt", "amount", 1.50]`))

	d, err := DecodeDisclosure(encoded)
	require.NoError(t, err)

	n, ok := d.Value().(json.Number)
	require.True(t, ok)
	assert.Equal(t, "1.50", n.String())
	assert.Equal(t, encoded, d.EncodedValue())
}
