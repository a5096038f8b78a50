package sdjwt

import (
	"context"
	"time"

	"sdjwt/pkg/jose"
	"sdjwt/pkg/model"
)

// SelectDisclosures parses an issued credential and keeps only the
// disclosures the selector accepts, preserving their order. Disclosures
// not selected are simply dropped; the digests they would have resolved
// stay blinded for the verifier.
func SelectDisclosures(issued string, selector func(*Disclosure) bool) (*Presentation, error) {
	p, err := ParsePresentation(issued)
	if err != nil {
		return nil, err
	}

	selected := make([]string, 0, len(p.Disclosures))
	for _, encoded := range p.Disclosures {
		d, err := DecodeDisclosure(encoded)
		if err != nil {
			return nil, err
		}
		if selector == nil || selector(d) {
			selected = append(selected, encoded)
		}
	}

	return &Presentation{CredentialJWT: p.CredentialJWT, Disclosures: selected}, nil
}

// SelectNamed keeps the object disclosures whose claim name is in names,
// plus every array-element disclosure.
func SelectNamed(issued string, names ...string) (*Presentation, error) {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return SelectDisclosures(issued, func(d *Disclosure) bool {
		name, ok := d.Name()
		if !ok {
			return true
		}
		return set[name]
	})
}

// WithKeyBinding signs a holder proof over the presentation as it stands
// and attaches it. The hash algorithm must match the credential's _sd_alg.
func (p *Presentation) WithKeyBinding(ctx context.Context, signer jose.Signer, nonce, audience, hashAlg string, clock func() time.Time) error {
	kb, err := CreateKeyBinding(ctx, p, nonce, audience, signer, hashAlg, false, clock)
	if err != nil {
		return err
	}
	p.KeyBindingJWT = kb
	return nil
}

// HashAlgorithm reads the credential's _sd_alg without verifying the
// signature, for the holder building a key binding.
func (p *Presentation) HashAlgorithm() string {
	_, payload, err := splitUnverified(p.CredentialJWT)
	if err != nil {
		return DefaultHashAlgorithm
	}
	if alg, ok := payload[model.ClaimSDAlg].(string); ok {
		return alg
	}
	return DefaultHashAlgorithm
}
