package model

import (
	"time"

	"github.com/creasty/defaults"

	"sdjwt/pkg/helpers"
)

// Policy carries the verification knobs that were process-wide constants in
// older stacks. A caller wanting different behavior per call constructs
// multiple Policy values.
type Policy struct {
	// AcceptedTypes lists the credential typ header values accepted on input
	AcceptedTypes []string `json:"accepted_types" default:"[\"dc+sd-jwt\",\"vc+sd-jwt\"]" validate:"min=1"`

	// AllowWeakHash permits md5 and sha-1 digests for legacy interop
	AllowWeakHash bool `json:"allow_weak_hash"`

	// ClockSkew is the tolerance applied to exp/nbf/iat checks
	ClockSkew time.Duration `json:"clock_skew" default:"5m"`

	// RequireStatusCheck turns a StatusUnavailable result into a rejection
	RequireStatusCheck bool `json:"require_status_check"`
}

// NewPolicy returns a validated Policy with defaults applied.
func NewPolicy() (*Policy, error) {
	p := &Policy{}
	if err := defaults.Set(p); err != nil {
		return nil, err
	}
	if err := helpers.Check(p); err != nil {
		return nil, err
	}
	return p, nil
}

// TypeAccepted reports whether typ is in the accepted set.
func (p *Policy) TypeAccepted(typ string) bool {
	for _, t := range p.AcceptedTypes {
		if t == typ {
			return true
		}
	}
	return false
}
