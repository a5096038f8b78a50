package tsl

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTTypHeader is the typ header value for status list token JWTs
const JWTTypHeader = "statuslist+jwt"

// JWTClaims represents the claims of a status list token.
type JWTClaims struct {
	jwt.RegisteredClaims

	// StatusList is the status_list claim carrying the packed list
	StatusList StatusListClaim `json:"status_list"`

	// TTL is the maximum time in seconds the token may be cached
	TTL int64 `json:"ttl,omitempty"`
}

// JWTSigningConfig holds the signing configuration for token generation.
type JWTSigningConfig struct {
	// SigningKey is the private key for signing (REQUIRED)
	SigningKey any

	// SigningMethod is the JWT signing method, e.g. jwt.SigningMethodES256 (REQUIRED)
	SigningMethod jwt.SigningMethod

	// ExpiresIn optionally bounds the token lifetime
	ExpiresIn time.Duration
}

// GenerateJWT creates a signed status list token with typ statuslist+jwt.
func (sl *StatusList) GenerateJWT(cfg JWTSigningConfig) (string, error) {
	if cfg.SigningKey == nil {
		return "", fmt.Errorf("signing key is required")
	}
	if cfg.SigningMethod == nil {
		return "", fmt.Errorf("signing method is required")
	}

	lst, err := sl.CompressAndEncode()
	if err != nil {
		return "", fmt.Errorf("failed to compress status list: %w", err)
	}

	now := time.Now()

	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  sl.Subject,
			Issuer:   sl.Issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
		StatusList: StatusListClaim{
			Bits: sl.bits,
			Lst:  lst,
		},
	}

	if cfg.ExpiresIn > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(cfg.ExpiresIn))
	}

	if sl.TTL > 0 {
		claims.TTL = sl.TTL
	}

	token := jwt.NewWithClaims(cfg.SigningMethod, claims)
	token.Header["typ"] = JWTTypHeader

	if sl.KeyID != "" {
		token.Header["kid"] = sl.KeyID
	}

	signedToken, err := token.SignedString(cfg.SigningKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign status list token: %w", err)
	}

	return signedToken, nil
}

// ParseJWT parses a status list token and validates its signature with the
// provided key function. A nil keyFunc skips signature validation, for
// callers that pin trust elsewhere.
func ParseJWT(tokenString string, keyFunc jwt.Keyfunc) (*JWTClaims, error) {
	var token *jwt.Token
	var err error

	claims := &JWTClaims{}

	if keyFunc == nil {
		parser := jwt.NewParser()
		token, _, err = parser.ParseUnverified(tokenString, claims)
	} else {
		token, err = jwt.ParseWithClaims(tokenString, claims, keyFunc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse status list token: %w", err)
	}

	if keyFunc != nil && !token.Valid {
		return nil, fmt.Errorf("invalid status list token claims")
	}

	if typ, ok := token.Header["typ"].(string); !ok || typ != JWTTypHeader {
		return nil, fmt.Errorf("invalid typ header: expected %s", JWTTypHeader)
	}

	return claims, nil
}
