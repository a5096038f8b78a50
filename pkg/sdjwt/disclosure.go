package sdjwt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"sdjwt/pkg/helpers"
	"sdjwt/pkg/model"
)

// DisclosureKind tags the two disclosure shapes on the wire.
type DisclosureKind int

const (
	// DisclosureObject is the three-element [salt, name, value] form
	DisclosureObject DisclosureKind = iota

	// DisclosureArrayElement is the two-element [salt, value] form
	DisclosureArrayElement
)

// Disclosure keeps one disclosure. The encoded form is authoritative: it is
// the only thing that gets digested, and a decoded disclosure keeps the
// exact bytes it was parsed from so re-encoding cannot drift.
type Disclosure struct {
	kind    DisclosureKind
	salt    string
	name    string
	value   any
	encoded string
}

// saltSize is 128 bits, the recommended salt entropy.
const saltSize = 16

// NewObjectDisclosure builds the three-element form for an object property.
func NewObjectDisclosure(salt, name string, value any) (*Disclosure, error) {
	if salt == "" {
		return nil, helpers.NewErrorDetails(helpers.ErrInvalidDisclosure.Title, "empty salt")
	}
	if name == "" || name == model.ClaimSD || name == model.ClaimArrayElement {
		return nil, helpers.NewErrorDetails(helpers.ErrInvalidDisclosure.Title, fmt.Sprintf("claim name %q not allowed", name))
	}

	value, err := normalizeValue(value)
	if err != nil {
		return nil, err
	}

	encoded, err := encodeDisclosureArray([]any{salt, name, value})
	if err != nil {
		return nil, err
	}

	return &Disclosure{
		kind:    DisclosureObject,
		salt:    salt,
		name:    name,
		value:   value,
		encoded: encoded,
	}, nil
}

// NewArrayElementDisclosure builds the two-element form for an array element.
func NewArrayElementDisclosure(salt string, value any) (*Disclosure, error) {
	if salt == "" {
		return nil, helpers.NewErrorDetails(helpers.ErrInvalidDisclosure.Title, "empty salt")
	}

	value, err := normalizeValue(value)
	if err != nil {
		return nil, err
	}

	encoded, err := encodeDisclosureArray([]any{salt, value})
	if err != nil {
		return nil, err
	}

	return &Disclosure{
		kind:    DisclosureArrayElement,
		salt:    salt,
		value:   value,
		encoded: encoded,
	}, nil
}

// GenerateObjectDisclosure draws a fresh salt from rand and builds the
// three-element form.
func GenerateObjectDisclosure(rand io.Reader, name string, value any) (*Disclosure, error) {
	salt, err := generateSalt(rand)
	if err != nil {
		return nil, err
	}
	return NewObjectDisclosure(salt, name, value)
}

// GenerateArrayElementDisclosure draws a fresh salt from rand and builds the
// two-element form.
func GenerateArrayElementDisclosure(rand io.Reader, value any) (*Disclosure, error) {
	salt, err := generateSalt(rand)
	if err != nil {
		return nil, err
	}
	return NewArrayElementDisclosure(salt, value)
}

// DecodeDisclosure parses a base64url disclosure segment. The input string
// is kept verbatim as the encoded form.
func DecodeDisclosure(s string) (*Disclosure, error) {
	raw, err := B64uDecode(s)
	if err != nil {
		return nil, helpers.NewErrorDetails(helpers.ErrInvalidDisclosure.Title, fmt.Sprintf("not base64url: %v", err))
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var elems []any
	if err := dec.Decode(&elems); err != nil {
		return nil, helpers.NewErrorDetails(helpers.ErrInvalidDisclosure.Title, fmt.Sprintf("not a JSON array: %v", err))
	}

	salt, ok := firstString(elems)
	if !ok {
		return nil, helpers.NewErrorDetails(helpers.ErrInvalidDisclosure.Title, "salt must be a string")
	}

	switch len(elems) {
	case 2:
		return &Disclosure{
			kind:    DisclosureArrayElement,
			salt:    salt,
			value:   elems[1],
			encoded: s,
		}, nil
	case 3:
		name, ok := elems[1].(string)
		if !ok {
			return nil, helpers.NewErrorDetails(helpers.ErrInvalidDisclosure.Title, "claim name must be a string")
		}
		return &Disclosure{
			kind:    DisclosureObject,
			salt:    salt,
			name:    name,
			value:   elems[2],
			encoded: s,
		}, nil
	default:
		return nil, helpers.NewErrorDetails(helpers.ErrInvalidDisclosure.Title, fmt.Sprintf("expected 2 or 3 elements, got %d", len(elems)))
	}
}

// Kind reports the disclosure shape.
func (d *Disclosure) Kind() DisclosureKind {
	return d.kind
}

// Salt returns the disclosure salt.
func (d *Disclosure) Salt() string {
	return d.salt
}

// Name returns the claim name, absent for array elements.
func (d *Disclosure) Name() (string, bool) {
	if d.kind == DisclosureArrayElement {
		return "", false
	}
	return d.name, true
}

// Value returns the claim value.
func (d *Disclosure) Value() any {
	return d.value
}

// EncodedValue returns the canonical base64url form.
func (d *Disclosure) EncodedValue() string {
	return d.encoded
}

// Digest returns base64url(H(encoded)) under the named algorithm.
func (d *Disclosure) Digest(alg string, allowWeak bool) (string, error) {
	return Digest(alg, allowWeak, []byte(d.encoded))
}

func firstString(elems []any) (string, bool) {
	if len(elems) == 0 {
		return "", false
	}
	s, ok := elems[0].(string)
	return s, ok
}

// normalizeValue runs a value through a JSON round trip so that every
// container is map[string]any or []any and every number a json.Number,
// the shapes the canonical writer understands.
func normalizeValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func generateSalt(rand io.Reader) (string, error) {
	saltBytes := make([]byte, saltSize)
	if _, err := io.ReadFull(rand, saltBytes); err != nil {
		return "", err
	}
	return B64uEncode(saltBytes), nil
}

// encodeDisclosureArray serializes the disclosure array in the stabilized
// textual form: elements joined by comma-space, object members by
// comma-space and colon-space, object keys sorted, UTF-8 not escaped.
// Digest parity with other stacks depends on this exact form.
func encodeDisclosureArray(elems []any) (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, e := range elems {
		if i > 0 {
			buf.WriteString(", ")
		}
		if err := writeCanonicalJSON(&buf, e); err != nil {
			return "", err
		}
	}
	buf.WriteByte(']')

	return B64uEncode(buf.Bytes()), nil
}

func writeCanonicalJSON(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteString(", ")
			}
			if err := writeJSONScalar(buf, k); err != nil {
				return err
			}
			buf.WriteString(": ")
			if err := writeCanonicalJSON(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteString(", ")
			}
			if err := writeCanonicalJSON(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case json.Number:
		buf.WriteString(t.String())
	default:
		return writeJSONScalar(buf, v)
	}
	return nil
}

// writeJSONScalar emits one scalar with the standard JSON escaping rules,
// HTML escaping off so non-ASCII and &<> pass through as UTF-8.
func writeJSONScalar(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encode appends a newline
	b := buf.Bytes()
	if len(b) > 0 && b[len(b)-1] == '\n' {
		buf.Truncate(len(b) - 1)
	}
	return nil
}

// DecodeDisclosures decodes a slice of disclosure segments, reporting the
// offending index on failure.
func DecodeDisclosures(encoded []string) ([]*Disclosure, error) {
	disclosures := make([]*Disclosure, 0, len(encoded))
	for i, s := range encoded {
		d, err := DecodeDisclosure(s)
		if err != nil {
			return nil, helpers.NewErrorDetails(helpers.ErrInvalidDisclosure.Title, fmt.Sprintf("segment %d: %v", i, err))
		}
		disclosures = append(disclosures, d)
	}
	return disclosures, nil
}
