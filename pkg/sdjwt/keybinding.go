package sdjwt

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"sdjwt/pkg/helpers"
	"sdjwt/pkg/jose"
	"sdjwt/pkg/model"
)

// KeyBindingClaims is the KB-JWT payload. It holds the four required
// claims only; CreateKeyBinding adds no caller-chosen claims.
type KeyBindingClaims struct {
	Nonce    string `json:"nonce"`
	Audience string `json:"aud"`
	IssuedAt int64  `json:"iat"`
	SDHash   string `json:"sd_hash"`
}

// KeyBindingExpectation lists what the verifier demands of a KB-JWT.
// Nonce and Audience checks run only when set; each fails closed once an
// expectation is supplied.
type KeyBindingExpectation struct {
	// Require rejects presentations without a KB-JWT
	Require bool

	// Nonce must match the KB-JWT nonce when set
	Nonce string

	// Audience must match the KB-JWT aud when set
	Audience string

	// MaxAge bounds |now - iat| on both sides when positive
	MaxAge time.Duration

	// AcceptedTypes overrides the accepted typ header values,
	// kb+jwt by default
	AcceptedTypes []string
}

// CreateKeyBinding builds and signs the holder proof for a presentation.
// The sd_hash covers the credential and the disclosures exactly as they
// will be serialized, trailing tilde included; the hash algorithm must be
// the credential's _sd_alg.
func CreateKeyBinding(ctx context.Context, p *Presentation, nonce, audience string, signer jose.Signer, hashAlg string, allowWeakHash bool, clock func() time.Time) (string, error) {
	if clock == nil {
		clock = time.Now
	}
	if hashAlg == "" {
		hashAlg = DefaultHashAlgorithm
	}

	prefix := (&Presentation{CredentialJWT: p.CredentialJWT, Disclosures: p.Disclosures}).String()
	sdHash, err := Digest(hashAlg, allowWeakHash, []byte(prefix))
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(KeyBindingClaims{
		Nonce:    nonce,
		Audience: audience,
		IssuedAt: clock().Unix(),
		SDHash:   sdHash,
	})
	if err != nil {
		return "", err
	}

	header := map[string]any{"typ": model.TypKeyBinding}

	return jose.Sign(ctx, header, payload, signer)
}

// VerifyKeyBinding validates the holder proof of a presentation against
// the verified credential claims. It returns the KB-JWT claims, or nil
// when the presentation has no key binding and none is required.
func VerifyKeyBinding(p *Presentation, credentialClaims map[string]any, expect *KeyBindingExpectation, allowWeakHash bool, clock func() time.Time) (map[string]any, error) {
	if expect == nil {
		expect = &KeyBindingExpectation{}
	}
	if clock == nil {
		clock = time.Now
	}

	if p.KeyBindingJWT == "" {
		if expect.Require {
			return nil, helpers.ErrKeyBindingMissing
		}
		return nil, nil
	}

	holderKey, err := jose.HolderKey(credentialClaims)
	if err != nil {
		return nil, err
	}

	header, payload, err := jose.Verify(p.KeyBindingJWT, jose.StaticKeyResolver(holderKey))
	if err != nil {
		return nil, err
	}

	typ, _ := header["typ"].(string)
	accepted := expect.AcceptedTypes
	if len(accepted) == 0 {
		accepted = []string{model.TypKeyBinding}
	}
	if !contains(accepted, typ) {
		return nil, helpers.NewErrorDetails(helpers.ErrPayloadMalformed.Title, fmt.Sprintf("key binding typ %q", typ))
	}

	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, helpers.NewErrorDetails(helpers.ErrPayloadMalformed.Title, "key binding payload is not a JSON object")
	}

	suppliedHash, _ := claims["sd_hash"].(string)
	if suppliedHash == "" {
		return nil, helpers.NewErrorDetails(helpers.ErrPayloadMalformed.Title, "key binding payload lacks sd_hash")
	}

	alg := DefaultHashAlgorithm
	if s, ok := credentialClaims[model.ClaimSDAlg].(string); ok {
		alg = s
	}

	prefix := (&Presentation{CredentialJWT: p.CredentialJWT, Disclosures: p.Disclosures}).String()
	expectedHash, err := Digest(alg, allowWeakHash, []byte(prefix))
	if err != nil {
		return nil, err
	}

	if !ConstantTimeEqual(suppliedHash, expectedHash) {
		return nil, helpers.ErrSdHashMismatch
	}

	if expect.Nonce != "" {
		nonce, _ := claims["nonce"].(string)
		if nonce != expect.Nonce {
			return nil, helpers.NewErrorDetails(helpers.ErrNonceMismatch.Title, fmt.Sprintf("expected %q, got %q", expect.Nonce, nonce))
		}
	}

	if expect.Audience != "" {
		aud, _ := claims["aud"].(string)
		if aud != expect.Audience {
			return nil, helpers.NewErrorDetails(helpers.ErrAudienceMismatch.Title, fmt.Sprintf("expected %q, got %q", expect.Audience, aud))
		}
	}

	if expect.MaxAge > 0 {
		iatRaw, ok := claims["iat"].(float64)
		if !ok {
			return nil, helpers.NewErrorDetails(helpers.ErrPayloadMalformed.Title, "key binding payload lacks iat")
		}
		iat := time.Unix(int64(iatRaw), 0)
		if math.Abs(clock().Sub(iat).Seconds()) > expect.MaxAge.Seconds() {
			return nil, helpers.NewErrorDetails(helpers.ErrKeyBindingExpired.Title, fmt.Sprintf("iat %s outside max age %s", iat, expect.MaxAge))
		}
	}

	return claims, nil
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
