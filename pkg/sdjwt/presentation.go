package sdjwt

import (
	"encoding/json"
	"fmt"
	"strings"

	"sdjwt/pkg/helpers"
)

// Presentation is the holder-to-verifier composition: the issuer-signed
// credential, the selected disclosures in holder order, and an optional
// key binding JWT. The JSON tags give the equivalent structured form; the
// two forms round-trip without loss.
type Presentation struct {
	CredentialJWT string   `json:"credential_jwt"`
	Disclosures   []string `json:"disclosures"`
	KeyBindingJWT string   `json:"kb_jwt,omitempty"`
}

// String serializes to the compact tilde-delimited form. The trailing
// tilde is mandatory when no key binding is present; the key binding
// follows the last tilde directly.
func (p *Presentation) String() string {
	token := p.CredentialJWT + "~"
	if len(p.Disclosures) > 0 {
		token = fmt.Sprintf("%s%s~", token, strings.Join(p.Disclosures, "~"))
	}
	if p.KeyBindingJWT != "" {
		token += p.KeyBindingJWT
	}
	return token
}

// MarshalStructured serializes to the structured JSON form.
func (p *Presentation) MarshalStructured() ([]byte, error) {
	return json.Marshal(p)
}

// ParseStructured parses the structured JSON form.
func ParseStructured(b []byte) (*Presentation, error) {
	p := &Presentation{}
	if err := json.Unmarshal(b, p); err != nil {
		return nil, helpers.NewErrorDetails(helpers.ErrMalformedPresentation.Title, err.Error())
	}
	if !jwsShaped(p.CredentialJWT) {
		return nil, helpers.NewErrorDetails(helpers.ErrMalformedPresentation.Title, "credential is not a compact JWS")
	}
	for i, d := range p.Disclosures {
		if !segmentShaped(d) {
			return nil, helpers.NewErrorDetails(helpers.ErrMalformedPresentation.Title, fmt.Sprintf("disclosure segment %d is not base64url", i))
		}
	}
	if p.KeyBindingJWT != "" && !jwsShaped(p.KeyBindingJWT) {
		return nil, helpers.NewErrorDetails(helpers.ErrMalformedPresentation.Title, "key binding is not a compact JWS")
	}
	return p, nil
}

// ParsePresentation splits the compact tilde-delimited form. The first
// token is the credential JWS; an empty last token means no key binding,
// any other last token must itself be a compact JWS. Interior tokens are
// disclosure segments.
func ParsePresentation(s string) (*Presentation, error) {
	if s == "" {
		return nil, helpers.NewErrorDetails(helpers.ErrMalformedPresentation.Title, "empty presentation")
	}

	parts := strings.Split(s, "~")

	credential := parts[0]
	if !jwsShaped(credential) {
		return nil, helpers.NewErrorDetails(helpers.ErrMalformedPresentation.Title, "credential is not a compact JWS")
	}

	if len(parts) == 1 {
		return nil, helpers.NewErrorDetails(helpers.ErrMalformedPresentation.Title, "missing trailing tilde")
	}

	keyBinding := ""
	last := parts[len(parts)-1]
	if last != "" {
		if !jwsShaped(last) {
			return nil, helpers.NewErrorDetails(helpers.ErrMalformedPresentation.Title, "trailing segment is neither empty nor a compact JWS")
		}
		keyBinding = last
	}

	interior := parts[1 : len(parts)-1]
	disclosures := make([]string, 0, len(interior))
	for i, token := range interior {
		if !segmentShaped(token) {
			return nil, helpers.NewErrorDetails(helpers.ErrMalformedPresentation.Title, fmt.Sprintf("disclosure segment %d is empty or not base64url", i))
		}
		disclosures = append(disclosures, token)
	}

	return &Presentation{
		CredentialJWT: credential,
		Disclosures:   disclosures,
		KeyBindingJWT: keyBinding,
	}, nil
}

// splitUnverified decodes the header and payload of a compact JWS without
// checking the signature. Holder-side only; verifiers go through
// jose.Verify.
func splitUnverified(compact string) (map[string]any, map[string]any, error) {
	parts := strings.Split(compact, ".")
	if len(parts) != 3 {
		return nil, nil, helpers.NewErrorDetails(helpers.ErrMalformedPresentation.Title, "not a compact JWS")
	}

	headerBytes, err := B64uDecode(parts[0])
	if err != nil {
		return nil, nil, helpers.NewErrorDetails(helpers.ErrMalformedPresentation.Title, "header is not base64url")
	}
	var header map[string]any
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, nil, helpers.NewErrorDetails(helpers.ErrMalformedPresentation.Title, "header is not a JSON object")
	}

	payloadBytes, err := B64uDecode(parts[1])
	if err != nil {
		return nil, nil, helpers.NewErrorDetails(helpers.ErrMalformedPresentation.Title, "payload is not base64url")
	}
	var payload map[string]any
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, nil, helpers.NewErrorDetails(helpers.ErrMalformedPresentation.Title, "payload is not a JSON object")
	}

	return header, payload, nil
}

// jwsShaped reports whether s looks like a compact JWS: three non-empty
// base64url segments joined by dots. Internals are not parsed here.
func jwsShaped(s string) bool {
	segments := strings.Split(s, ".")
	if len(segments) != 3 {
		return false
	}
	for _, seg := range segments {
		if !segmentShaped(seg) {
			return false
		}
	}
	return true
}

// segmentShaped reports whether s is a non-empty run of base64url
// characters, the shape of a disclosure or JWS segment.
func segmentShaped(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}
