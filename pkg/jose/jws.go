package jose

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"sdjwt/pkg/helpers"
)

// KeyResolver locates the verification key for a JWS. It receives the
// unverified header, so kid or alg based lookup works across key
// rotations.
type KeyResolver func(header map[string]any) (any, error)

// Sign produces a compact JWS over the payload bytes. The alg and kid
// header values come from the signer; the caller's header entries are
// preserved otherwise.
func Sign(ctx context.Context, header map[string]any, payload []byte, signer Signer) (string, error) {
	merged := make(map[string]any, len(header)+2)
	for k, v := range header {
		merged[k] = v
	}
	merged["alg"] = signer.Algorithm()
	if signer.KeyID() != "" {
		merged["kid"] = signer.KeyID()
	}

	headerJSON, err := json.Marshal(merged)
	if err != nil {
		return "", fmt.Errorf("failed to marshal header: %w", err)
	}

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) + "." + base64.RawURLEncoding.EncodeToString(payload)

	signature, err := signer.Sign(ctx, []byte(signingInput))
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

// Verify checks a compact JWS and returns its header and payload bytes.
// The resolver picks the key from the unverified header. The none
// algorithm is always rejected.
func Verify(compact string, resolver KeyResolver) (map[string]any, []byte, error) {
	parts := strings.Split(compact, ".")
	if len(parts) != 3 {
		return nil, nil, helpers.NewErrorDetails(helpers.ErrSignatureInvalid.Title, "not a compact JWS")
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, nil, helpers.NewErrorDetails(helpers.ErrSignatureInvalid.Title, "header is not base64url")
	}

	var header map[string]any
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, nil, helpers.NewErrorDetails(helpers.ErrSignatureInvalid.Title, "header is not a JSON object")
	}

	alg, _ := header["alg"].(string)
	if alg == "" || alg == "none" {
		return nil, nil, helpers.NewErrorDetails(helpers.ErrUnsupportedAlgorithm.Title, fmt.Sprintf("alg %q", alg))
	}
	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return nil, nil, helpers.NewErrorDetails(helpers.ErrUnsupportedAlgorithm.Title, alg)
	}

	key, err := resolver(header)
	if err != nil {
		return nil, nil, helpers.NewErrorDetails(helpers.ErrSignatureInvalid.Title, fmt.Sprintf("key resolution: %v", err))
	}

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, nil, helpers.NewErrorDetails(helpers.ErrSignatureInvalid.Title, "signature is not base64url")
	}

	if err := method.Verify(parts[0]+"."+parts[1], signature, key); err != nil {
		return nil, nil, helpers.NewErrorDetails(helpers.ErrSignatureInvalid.Title, err.Error())
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, nil, helpers.NewErrorDetails(helpers.ErrSignatureInvalid.Title, "payload is not base64url")
	}

	return header, payload, nil
}

// StaticKeyResolver always returns the same key, for callers that pin a
// single issuer key.
func StaticKeyResolver(key any) KeyResolver {
	return func(_ map[string]any) (any, error) {
		return key, nil
	}
}
