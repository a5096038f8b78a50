package sdjwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePresentationEmpty(t *testing.T) {
	p, err := ParsePresentation("a.b.c~")
	require.NoError(t, err)

	assert.Equal(t, "a.b.c", p.CredentialJWT)
	assert.Empty(t, p.Disclosures)
	assert.Empty(t, p.KeyBindingJWT)

	// re-serializes byte-identically
	assert.Equal(t, "a.b.c~", p.String())
}

func TestParsePresentationWithKeyBinding(t *testing.T) {
	p, err := ParsePresentation("a.b.c~d.e.f")
	require.NoError(t, err)

	assert.Equal(t, "a.b.c", p.CredentialJWT)
	assert.Empty(t, p.Disclosures)
	assert.Equal(t, "d.e.f", p.KeyBindingJWT)
	assert.Equal(t, "a.b.c~d.e.f", p.String())
}

func TestParsePresentationWithDisclosures(t *testing.T) {
	d1 := B64uEncode([]byte(`["s1", "a", 1]`))
	d2 := B64uEncode([]byte(`["s2", "b", 2]`))

	compact := "a.b.c~" + d1 + "~" + d2 + "~"
	p, err := ParsePresentation(compact)
	require.NoError(t, err)

	assert.Equal(t, []string{d1, d2}, p.Disclosures)
	assert.Empty(t, p.KeyBindingJWT)
	assert.Equal(t, compact, p.String())

	withKB := compact + "d.e.f"
	p, err = ParsePresentation(withKB)
	require.NoError(t, err)
	assert.Equal(t, []string{d1, d2}, p.Disclosures)
	assert.Equal(t, "d.e.f", p.KeyBindingJWT)
	assert.Equal(t, withKB, p.String())
}

func TestParsePresentationMalformed(t *testing.T) {
	tts := []struct {
		name string
		have string
	}{
		{name: "empty", have: ""},
		{name: "no trailing tilde", have: "a.b.c"},
		{name: "empty interior token", have: "a.b.c~~d.e.f"},
		{name: "empty interior token before trailing tilde", have: "a.b.c~~"},
		{name: "credential not a JWS", have: "ab~"},
		{name: "credential with two segments", have: "a.b~"},
		{name: "credential with empty segment", have: "a..c~"},
		{name: "disclosure with dot", have: "a.b.c~d.e~"},
		{name: "disclosure with invalid characters", have: "a.b.c~d+e~"},
		{name: "trailing token not a JWS", have: "a.b.c~def"},
		{name: "key binding with four segments", have: "a.b.c~d.e.f.g"},
	}

	for _, tt := range tts {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePresentation(tt.have)
			assert.ErrorContains(t, err, "MALFORMED_PRESENTATION")
		})
	}
}

func TestPresentationStructuredRoundtrip(t *testing.T) {
	d1 := B64uEncode([]byte(`["s1", "a", 1]`))

	original := &Presentation{
		CredentialJWT: "a.b.c",
		Disclosures:   []string{d1},
		KeyBindingJWT: "d.e.f",
	}

	b, err := original.MarshalStructured()
	require.NoError(t, err)

	parsed, err := ParseStructured(b)
	require.NoError(t, err)
	assert.Equal(t, original, parsed)

	// the two forms are bijective
	assert.Equal(t, original.String(), parsed.String())

	reparsed, err := ParsePresentation(parsed.String())
	require.NoError(t, err)
	assert.Equal(t, original, reparsed)
}

func TestParseStructuredRejects(t *testing.T) {
	tts := []struct {
		name string
		have string
	}{
		{name: "not json", have: "nope"},
		{name: "credential not a JWS", have: `{"credential_jwt": "ab"}`},
		{name: "bad disclosure", have: `{"credential_jwt": "a.b.c", "disclosures": ["x.y"]}`},
		{name: "bad key binding", have: `{"credential_jwt": "a.b.c", "kb_jwt": "nope"}`},
	}

	for _, tt := range tts {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStructured([]byte(tt.have))
			assert.ErrorContains(t, err, "MALFORMED_PRESENTATION")
		})
	}
}
