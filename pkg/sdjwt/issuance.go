package sdjwt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/creasty/defaults"
	"github.com/google/uuid"

	"sdjwt/pkg/helpers"
	"sdjwt/pkg/jose"
	"sdjwt/pkg/logger"
	"sdjwt/pkg/model"
)

// IssuerConfig configures credential issuance.
type IssuerConfig struct {
	// Issuer is the iss claim value
	Issuer string `validate:"required"`

	// ValidFor is the credential lifetime, one year by default
	ValidFor time.Duration `default:"8760h"`

	// Clock supplies issuance time, time.Now by default
	Clock func() time.Time

	// Log is optional
	Log *logger.Log
}

// Issuer emits signed credentials with selected claims blinded.
type Issuer struct {
	cfg    IssuerConfig
	signer jose.Signer
}

// CredentialInput describes one credential to issue.
type CredentialInput struct {
	// VCT names the credential type
	VCT string `json:"vct" validate:"required"`

	// Claims is the claim object before blinding
	Claims map[string]any `json:"claims" validate:"required"`

	// Plan selects what gets blinded, ignored when Options.BlindAll is set
	Plan *Plan `json:"-"`

	// Options tunes the blinding pass
	Options *BlindOptions `json:"-"`

	// HolderJWK is the holder public key placed in cnf for key binding
	HolderJWK map[string]any `json:"holder_jwk,omitempty"`

	// Status optionally points the credential at a status list entry
	Status *model.StatusReference `json:"status,omitempty"`
}

// NewIssuer creates an Issuer signing with the given signer.
func NewIssuer(cfg IssuerConfig, signer jose.Signer) (*Issuer, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, err
	}
	if err := helpers.Check(&cfg); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = logger.NewSimple("sdjwt")
	}

	return &Issuer{cfg: cfg, signer: signer}, nil
}

// Issue blinds the claims, signs the credential and returns the issuance
// form: the credential JWS followed by every disclosure, tilde-delimited
// with a trailing tilde.
func (i *Issuer) Issue(ctx context.Context, input *CredentialInput) (string, error) {
	if err := helpers.Check(input); err != nil {
		return "", err
	}

	result, err := Blind(input.Claims, input.Plan, input.Options)
	if err != nil {
		return "", err
	}

	now := i.cfg.Clock()
	payload := result.Payload
	payload["iss"] = i.cfg.Issuer
	payload["jti"] = uuid.NewString()
	payload["iat"] = now.Unix()
	payload["nbf"] = now.Unix()
	payload["exp"] = now.Add(i.cfg.ValidFor).Unix()
	payload[model.ClaimVCT] = input.VCT

	if input.HolderJWK != nil {
		payload[model.ClaimCNF] = map[string]any{"jwk": input.HolderJWK}
	}

	if input.Status != nil {
		payload[model.ClaimStatus] = model.StatusClaim{StatusList: *input.Status}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", helpers.NewErrorFromError(err)
	}

	header := map[string]any{"typ": model.TypSDJWT}

	credential, err := jose.Sign(ctx, header, body, i.signer)
	if err != nil {
		return "", err
	}

	encoded := make([]string, 0, len(result.Disclosures))
	for _, d := range result.Disclosures {
		encoded = append(encoded, d.EncodedValue())
	}

	i.cfg.Log.Debug("issued credential", "vct", input.VCT, "disclosures", len(encoded))

	return (&Presentation{CredentialJWT: credential, Disclosures: encoded}).String(), nil
}
