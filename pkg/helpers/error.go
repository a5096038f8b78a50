package helpers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrUnsupportedAlgorithm is returned when a hash or signing algorithm is not registered
	ErrUnsupportedAlgorithm = NewError("UNSUPPORTED_ALGORITHM")

	// ErrWeakAlgorithmRejected is returned when a weak hash algorithm is used without opt-in
	ErrWeakAlgorithmRejected = NewError("WEAK_ALGORITHM_REJECTED")

	// ErrInvalidDisclosure is returned when a disclosure string cannot be decoded
	ErrInvalidDisclosure = NewError("INVALID_DISCLOSURE")

	// ErrPlanShapeMismatch is returned when a blinding plan addresses keys or indices absent in the claims
	ErrPlanShapeMismatch = NewError("PLAN_SHAPE_MISMATCH")

	// ErrMalformedPresentation is returned when the tilde-delimited form cannot be split
	ErrMalformedPresentation = NewError("MALFORMED_PRESENTATION")

	// ErrSignatureInvalid is returned when a JWS signature does not verify
	ErrSignatureInvalid = NewError("SIGNATURE_INVALID")

	// ErrPayloadMalformed is returned when the credential payload is not the expected JSON shape
	ErrPayloadMalformed = NewError("PAYLOAD_MALFORMED")

	// ErrDuplicateDisclosureDigest is returned when two disclosures hash to the same digest
	ErrDuplicateDisclosureDigest = NewError("DUPLICATE_DISCLOSURE_DIGEST")

	// ErrConflictingDisclosure is returned when a disclosure names a claim already present
	ErrConflictingDisclosure = NewError("CONFLICTING_DISCLOSURE")

	// ErrUnusedDisclosure is returned when a presented disclosure matches no digest
	ErrUnusedDisclosure = NewError("UNUSED_DISCLOSURE")

	// ErrKeyBindingMissing is returned when key binding is required but absent
	ErrKeyBindingMissing = NewError("KEY_BINDING_MISSING")

	// ErrKeyBindingUnbound is returned when the credential carries no holder key
	ErrKeyBindingUnbound = NewError("KEY_BINDING_UNBOUND")

	// ErrSdHashMismatch is returned when the KB-JWT sd_hash does not match the presentation
	ErrSdHashMismatch = NewError("SD_HASH_MISMATCH")

	// ErrNonceMismatch is returned when the KB-JWT nonce differs from the expected one
	ErrNonceMismatch = NewError("NONCE_MISMATCH")

	// ErrAudienceMismatch is returned when the KB-JWT aud differs from the expected one
	ErrAudienceMismatch = NewError("AUDIENCE_MISMATCH")

	// ErrKeyBindingExpired is returned when the KB-JWT iat is outside the accepted window
	ErrKeyBindingExpired = NewError("KEY_BINDING_EXPIRED")

	// ErrCredentialExpired is returned when the credential time claims do not validate
	ErrCredentialExpired = NewError("CREDENTIAL_EXPIRED")

	// ErrStatusRevoked is returned when the status list marks the credential invalid
	ErrStatusRevoked = NewError("STATUS_REVOKED")

	// ErrStatusSuspended is returned when the status list marks the credential suspended
	ErrStatusSuspended = NewError("STATUS_SUSPENDED")

	// ErrStatusUnavailable is returned when the status list cannot be fetched or the index is out of range
	ErrStatusUnavailable = NewError("STATUS_UNAVAILABLE")
)

// Error is a struct that represents an error
type Error struct {
	Title string `json:"title"`
	Err   any    `json:"details"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("Error: [%s] %+v", e.Title, e.Err)
	}
	return fmt.Sprintf("Error: [%s]", e.Title)
}

// Is matches by title so detail-carrying errors compare equal to their sentinel
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Title == t.Title
}

func NewError(title string) *Error {
	return &Error{Title: title}
}

func NewErrorDetails(title string, err any) *Error {
	return &Error{Title: title, Err: err}
}

// NewErrorFromError creates a new Error from an error
func NewErrorFromError(err error) *Error {
	if err == nil {
		return nil
	}

	if pbErr, ok := err.(*Error); ok {
		return pbErr
	}

	if jsonUnmarshalTypeError, ok := err.(*json.UnmarshalTypeError); ok {
		return &Error{Title: "json_type_error", Err: formatJSONUnmarshalTypeError(jsonUnmarshalTypeError)}
	}
	if jsonSyntaxError, ok := err.(*json.SyntaxError); ok {
		return &Error{Title: "json_syntax_error", Err: map[string]any{"position": jsonSyntaxError.Offset, "error": jsonSyntaxError.Error()}}
	}
	if validatorErr, ok := err.(validator.ValidationErrors); ok {
		return &Error{Title: "validation_error", Err: formatValidationErrors(validatorErr)}
	}

	return NewErrorDetails("internal_error", err.Error())
}

func formatValidationErrors(err validator.ValidationErrors) []map[string]any {
	v := make([]map[string]any, 0)
	for _, e := range err {
		splits := strings.SplitN(e.Namespace(), ".", 2)
		v = append(v, map[string]any{
			"field":           e.Field(),
			"namespace":       splits[1],
			"type":            e.Kind().String(),
			"validation":      e.Tag(),
			"validationParam": e.Param(),
			"value":           e.Value(),
		})
	}
	return v
}

func formatJSONUnmarshalTypeError(err *json.UnmarshalTypeError) []map[string]any {
	return []map[string]any{
		{
			"field":    err.Field,
			"expected": err.Type.Kind().String(),
			"actual":   err.Value,
		},
	}
}
