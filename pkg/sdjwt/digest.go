package sdjwt

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"hash"

	"golang.org/x/crypto/sha3"

	"sdjwt/pkg/helpers"
	"sdjwt/pkg/model"
)

// DefaultHashAlgorithm is used when the payload carries no _sd_alg claim.
const DefaultHashAlgorithm = model.AlgSHA256

// NewHash returns a constructor for the named hash algorithm.
// Names follow the IANA named information registry, the same registry the
// _sd_alg claim draws from. md5 and sha-1 are only available when allowWeak
// is set.
func NewHash(alg string, allowWeak bool) (func() hash.Hash, error) {
	switch alg {
	case model.AlgSHA256:
		return sha256.New, nil
	case model.AlgSHA384:
		return sha512.New384, nil
	case model.AlgSHA512:
		return sha512.New, nil
	case model.AlgSHA3_256:
		return sha3.New256, nil
	case model.AlgSHA3_512:
		return sha3.New512, nil
	case model.AlgSHA1:
		if !allowWeak {
			return nil, helpers.NewErrorDetails(helpers.ErrWeakAlgorithmRejected.Title, alg)
		}
		return sha1.New, nil
	case model.AlgMD5:
		if !allowWeak {
			return nil, helpers.NewErrorDetails(helpers.ErrWeakAlgorithmRejected.Title, alg)
		}
		return md5.New, nil
	default:
		return nil, helpers.NewErrorDetails(helpers.ErrUnsupportedAlgorithm.Title, alg)
	}
}

// Digest returns base64url(H(data)) under the named algorithm.
func Digest(alg string, allowWeak bool, data []byte) (string, error) {
	newHash, err := NewHash(alg, allowWeak)
	if err != nil {
		return "", err
	}

	h := newHash()
	if _, err := h.Write(data); err != nil {
		return "", err
	}

	return B64uEncode(h.Sum(nil)), nil
}

// B64uEncode encodes bytes as unpadded base64url.
func B64uEncode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// B64uDecode decodes base64url with or without padding.
func B64uDecode(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

// ConstantTimeEqual compares two digest strings in fixed time.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
