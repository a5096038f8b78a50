// Package jose abstracts compact JWS signing and verification over opaque
// key handles. The core never creates keys; callers pass crypto handles or
// their own Signer implementations (HSM-backed signers plug in here).
package jose

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"sdjwt/pkg/helpers"
)

// Signer defines the interface for cryptographic signing operations.
type Signer interface {
	Sign(ctx context.Context, data []byte) ([]byte, error)
	Algorithm() string
	KeyID() string
	PublicKey() any
}

// SoftwareSigner signs with an in-memory private key.
type SoftwareSigner struct {
	key    any
	kid    string
	method jwt.SigningMethod
}

// NewSoftwareSigner wraps a private key, picking the signing method from
// the key type: ECDSA by curve, RSA by modulus size, Ed25519, or HMAC for
// a byte slice secret.
func NewSoftwareSigner(key any, kid string) (*SoftwareSigner, error) {
	method := signingMethodFromKey(key)
	if method == nil {
		return nil, helpers.NewErrorDetails(helpers.ErrUnsupportedAlgorithm.Title, fmt.Sprintf("no signing method for key type %T", key))
	}
	return &SoftwareSigner{key: key, kid: kid, method: method}, nil
}

// NewSoftwareSignerWithAlgorithm wraps a private key with an explicit
// algorithm, for the RSA-PSS variants the key type alone cannot select.
func NewSoftwareSignerWithAlgorithm(key any, kid, alg string) (*SoftwareSigner, error) {
	method := jwt.GetSigningMethod(alg)
	if method == nil || alg == "none" {
		return nil, helpers.NewErrorDetails(helpers.ErrUnsupportedAlgorithm.Title, alg)
	}
	return &SoftwareSigner{key: key, kid: kid, method: method}, nil
}

// Sign signs the input bytes.
func (s *SoftwareSigner) Sign(_ context.Context, data []byte) ([]byte, error) {
	sig, err := s.method.Sign(string(data), s.key)
	if err != nil {
		return nil, helpers.NewErrorDetails(helpers.ErrSignatureInvalid.Title, err.Error())
	}
	return sig, nil
}

// Algorithm returns the JWS alg value.
func (s *SoftwareSigner) Algorithm() string {
	return s.method.Alg()
}

// KeyID returns the kid header value, empty when unset.
func (s *SoftwareSigner) KeyID() string {
	return s.kid
}

// PublicKey returns the verification key for the wrapped private key.
func (s *SoftwareSigner) PublicKey() any {
	switch k := s.key.(type) {
	case *ecdsa.PrivateKey:
		return &k.PublicKey
	case *rsa.PrivateKey:
		return &k.PublicKey
	case ed25519.PrivateKey:
		return k.Public()
	case []byte:
		// HMAC verification shares the secret
		return k
	default:
		return nil
	}
}

// signingMethodFromKey determines the signing method from the private key type.
func signingMethodFromKey(key any) jwt.SigningMethod {
	if rsaKey, ok := key.(*rsa.PrivateKey); ok {
		keySize := rsaKey.N.BitLen()
		switch {
		case keySize >= 4096:
			return jwt.SigningMethodRS512
		case keySize >= 3072:
			return jwt.SigningMethodRS384
		default:
			return jwt.SigningMethodRS256
		}
	}

	if ecKey, ok := key.(*ecdsa.PrivateKey); ok {
		switch ecKey.Curve.Params().Name {
		case "P-256":
			return jwt.SigningMethodES256
		case "P-384":
			return jwt.SigningMethodES384
		case "P-521":
			return jwt.SigningMethodES512
		default:
			return nil
		}
	}

	if _, ok := key.(ed25519.PrivateKey); ok {
		return jwt.SigningMethodEdDSA
	}

	if _, ok := key.([]byte); ok {
		return jwt.SigningMethodHS256
	}

	return nil
}
