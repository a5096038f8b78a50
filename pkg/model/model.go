// Package model holds the wire-level types and claim names shared by the
// sdjwt, jose and tsl packages.
package model

// Claim names and header values used on the wire.
const (
	// ClaimSD is the digest array key inside a blinded object
	ClaimSD = "_sd"

	// ClaimSDAlg is the top-level hash algorithm claim
	ClaimSDAlg = "_sd_alg"

	// ClaimArrayElement is the key of an in-array digest placeholder
	ClaimArrayElement = "..."

	// ClaimCNF carries the holder confirmation key
	ClaimCNF = "cnf"

	// ClaimStatus carries the status reference
	ClaimStatus = "status"

	// ClaimStatusList is the status_list member inside the status claim
	ClaimStatusList = "status_list"

	// ClaimVCT names the credential type
	ClaimVCT = "vct"
)

// JWS typ header values.
const (
	// TypSDJWT is the current credential typ header
	TypSDJWT = "dc+sd-jwt"

	// TypSDJWTLegacy is the legacy credential typ header, accepted on input
	TypSDJWTLegacy = "vc+sd-jwt"

	// TypKeyBinding is the KB-JWT typ header
	TypKeyBinding = "kb+jwt"

	// TypStatusList is the status list token typ header
	TypStatusList = "statuslist+jwt"
)

// Hash algorithm names per the IANA named information registry.
const (
	AlgSHA256   = "sha-256"
	AlgSHA384   = "sha-384"
	AlgSHA512   = "sha-512"
	AlgSHA3_256 = "sha3-256"
	AlgSHA3_512 = "sha3-512"
	AlgSHA1     = "sha-1"
	AlgMD5      = "md5"
)

// StatusReference points at one entry of a status list token, as carried
// in the credential's status.status_list claim.
type StatusReference struct {
	// URI locates the status list token
	URI string `json:"uri" validate:"required"`

	// Index selects the entry for this credential
	Index int `json:"idx" validate:"min=0"`
}

// StatusClaim is the status claim wrapper inside the credential payload.
type StatusClaim struct {
	StatusList StatusReference `json:"status_list"`
}

// Confirmation is the cnf claim carrying the holder's public key as a JWK.
type Confirmation struct {
	JWK map[string]any `json:"jwk"`
}
