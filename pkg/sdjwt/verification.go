package sdjwt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sdjwt/pkg/helpers"
	"sdjwt/pkg/jose"
	"sdjwt/pkg/logger"
	"sdjwt/pkg/model"
	"sdjwt/pkg/tsl"
)

// VerificationResult contains the outcome of presentation verification.
type VerificationResult struct {
	// Header is the credential JWS header
	Header map[string]any

	// Claims is the rehydrated claim object
	Claims map[string]any

	// DisclosedClaims holds only the selectively disclosed object claims
	DisclosedClaims map[string]any

	// Disclosures are the parsed disclosures in holder order
	Disclosures []*Disclosure

	// KeyBindingClaims is the verified KB-JWT payload, nil without key binding
	KeyBindingClaims map[string]any

	// Status is the status list outcome, nil when no check ran
	Status *tsl.Outcome
}

// VerifierConfig configures presentation verification.
type VerifierConfig struct {
	// KeyResolver locates the issuer key from the unverified header (REQUIRED)
	KeyResolver jose.KeyResolver `validate:"required"`

	// Policy is the verification policy, NewPolicy defaults when nil
	Policy *model.Policy

	// KeyBinding lists the holder-proof expectations
	KeyBinding *KeyBindingExpectation

	// StatusReader resolves status references; nil disables status checks
	StatusReader *tsl.Reader

	// ValidateTime turns on exp/nbf/iat validation of the credential
	ValidateTime bool

	// Clock supplies verification time, time.Now by default
	Clock func() time.Time

	// Log is optional
	Log *logger.Log
}

// Verifier validates presentations end to end: presentation syntax,
// issuer signature, claim rehydration, key binding and status.
type Verifier struct {
	cfg VerifierConfig
}

// NewVerifier creates a Verifier.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if err := helpers.Check(&cfg); err != nil {
		return nil, err
	}
	if cfg.Policy == nil {
		p, err := model.NewPolicy()
		if err != nil {
			return nil, err
		}
		cfg.Policy = p
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = logger.NewSimple("sdjwt")
	}

	return &Verifier{cfg: cfg}, nil
}

// Verify checks a compact presentation and returns the rehydrated claims.
func (v *Verifier) Verify(ctx context.Context, presentation string) (*VerificationResult, error) {
	p, err := ParsePresentation(presentation)
	if err != nil {
		return nil, err
	}
	return v.VerifyPresentation(ctx, p)
}

// VerifyPresentation checks an already-split presentation.
func (v *Verifier) VerifyPresentation(ctx context.Context, p *Presentation) (*VerificationResult, error) {
	header, payloadBytes, err := jose.Verify(p.CredentialJWT, v.cfg.KeyResolver)
	if err != nil {
		return nil, err
	}

	typ, _ := header["typ"].(string)
	if !v.cfg.Policy.TypeAccepted(typ) {
		return nil, helpers.NewErrorDetails(helpers.ErrPayloadMalformed.Title, fmt.Sprintf("credential typ %q not accepted", typ))
	}

	var payload map[string]any
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, helpers.NewErrorDetails(helpers.ErrPayloadMalformed.Title, "credential payload is not a JSON object")
	}

	if v.cfg.ValidateTime {
		if err := v.validateTimeClaims(payload); err != nil {
			return nil, err
		}
	}

	disclosures, err := DecodeDisclosures(p.Disclosures)
	if err != nil {
		return nil, err
	}

	claims, err := Rehydrate(payload, disclosures, v.cfg.Policy.AllowWeakHash)
	if err != nil {
		return nil, err
	}

	kbClaims, err := VerifyKeyBinding(p, payload, v.cfg.KeyBinding, v.cfg.Policy.AllowWeakHash, v.cfg.Clock)
	if err != nil {
		return nil, err
	}

	result := &VerificationResult{
		Header:           header,
		Claims:           claims,
		DisclosedClaims:  disclosedClaims(disclosures),
		Disclosures:      disclosures,
		KeyBindingClaims: kbClaims,
	}

	if v.cfg.StatusReader != nil {
		outcome, err := v.checkStatus(ctx, payload)
		if err != nil {
			return nil, err
		}
		result.Status = outcome
	}

	v.cfg.Log.Debug("presentation verified", "disclosures", len(disclosures), "keyBinding", kbClaims != nil)

	return result, nil
}

// validateTimeClaims checks exp, nbf and iat against the clock with the
// policy skew.
func (v *Verifier) validateTimeClaims(payload map[string]any) error {
	now := v.cfg.Clock()
	skew := v.cfg.Policy.ClockSkew

	if expFloat, ok := payload["exp"].(float64); ok {
		exp := time.Unix(int64(expFloat), 0)
		if now.After(exp.Add(skew)) {
			return helpers.NewErrorDetails(helpers.ErrCredentialExpired.Title, fmt.Sprintf("expired at %s", exp))
		}
	}

	if iatFloat, ok := payload["iat"].(float64); ok {
		iat := time.Unix(int64(iatFloat), 0)
		if now.Before(iat.Add(-skew)) {
			return helpers.NewErrorDetails(helpers.ErrCredentialExpired.Title, fmt.Sprintf("issued in the future at %s", iat))
		}
	}

	if nbfFloat, ok := payload["nbf"].(float64); ok {
		nbf := time.Unix(int64(nbfFloat), 0)
		if now.Before(nbf.Add(-skew)) {
			return helpers.NewErrorDetails(helpers.ErrCredentialExpired.Title, fmt.Sprintf("not valid before %s", nbf))
		}
	}

	return nil
}

// checkStatus resolves the credential's status reference. A missing status
// claim passes; an unavailable list rejects only under a policy that
// requires the check.
func (v *Verifier) checkStatus(ctx context.Context, payload map[string]any) (*tsl.Outcome, error) {
	raw, ok := payload[model.ClaimStatus]
	if !ok {
		return nil, nil
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return nil, helpers.NewErrorDetails(helpers.ErrPayloadMalformed.Title, "status claim")
	}
	var claim model.StatusClaim
	if err := json.Unmarshal(b, &claim); err != nil || claim.StatusList.URI == "" {
		return nil, helpers.NewErrorDetails(helpers.ErrPayloadMalformed.Title, "status claim carries no status_list reference")
	}

	outcome, err := v.cfg.StatusReader.Lookup(ctx, claim.StatusList)
	if err != nil {
		if errors.Is(err, helpers.ErrStatusUnavailable) && !v.cfg.Policy.RequireStatusCheck {
			v.cfg.Log.Debug("status unavailable, policy allows", "uri", claim.StatusList.URI)
			return &tsl.Outcome{Result: tsl.ResultUnknown}, nil
		}
		return nil, err
	}

	switch outcome.Result {
	case tsl.ResultInvalid:
		return nil, helpers.NewErrorDetails(helpers.ErrStatusRevoked.Title, claim.StatusList.URI)
	case tsl.ResultSuspended:
		return nil, helpers.NewErrorDetails(helpers.ErrStatusSuspended.Title, claim.StatusList.URI)
	default:
		return outcome, nil
	}
}

func disclosedClaims(disclosures []*Disclosure) map[string]any {
	out := make(map[string]any, len(disclosures))
	for _, d := range disclosures {
		if name, ok := d.Name(); ok {
			out[name] = d.Value()
		}
	}
	return out
}
