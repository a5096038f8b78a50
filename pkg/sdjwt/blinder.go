package sdjwt

import (
	"crypto/rand"
	"fmt"
	"io"
	"sort"

	"github.com/creasty/defaults"

	"sdjwt/pkg/helpers"
	"sdjwt/pkg/model"
)

// Plan mirrors the structure of the claim object and marks what gets
// blinded. For an object node, Fields addresses a subset of the object's
// keys; for an array node, Elements aligns with indices from the front.
// A node with Blind set is replaced by a digest at its parent; a node with
// children is descended into first, so a node that is both produces a
// recursive disclosure whose value already carries nested digests.
type Plan struct {
	// Blind replaces this node with a digest at its parent
	Blind bool

	// Fields holds nested plans for object keys
	Fields map[string]*Plan

	// Elements holds nested plans for array indices, nil entries kept clear
	Elements []*Plan
}

// BlindOptions configures a blinding pass.
type BlindOptions struct {
	// Algorithm names the digest hash
	Algorithm string `default:"sha-256"`

	// Decoys is the number of decoy digests mixed into each _sd array
	Decoys int

	// BlindAll blinds every leaf, ignoring the plan
	BlindAll bool

	// AllowWeakHash permits md5/sha-1 digests
	AllowWeakHash bool

	// Rand is the salt and decoy entropy source, crypto/rand by default
	Rand io.Reader
}

// BlindResult carries the blinded payload and the disclosures that resolve it.
type BlindResult struct {
	// Payload is the claim object with selected values replaced by digests
	Payload map[string]any

	// Disclosures resolve the digests, emitted depth-first
	Disclosures []*Disclosure
}

// Blind walks the claim object and replaces every planned value with a
// salted digest, collecting the matching disclosures. The input object is
// not modified.
func Blind(claims map[string]any, plan *Plan, opts *BlindOptions) (*BlindResult, error) {
	if opts == nil {
		opts = &BlindOptions{}
	}
	if err := defaults.Set(opts); err != nil {
		return nil, err
	}
	if opts.Rand == nil {
		opts.Rand = rand.Reader
	}

	// reject unknown or non-opted-in algorithms before touching the tree
	if _, err := NewHash(opts.Algorithm, opts.AllowWeakHash); err != nil {
		return nil, err
	}

	normalized, err := normalizeValue(claims)
	if err != nil {
		return nil, helpers.NewErrorFromError(err)
	}
	root, ok := normalized.(map[string]any)
	if !ok {
		return nil, helpers.NewErrorDetails(helpers.ErrPayloadMalformed.Title, "claims must be a JSON object")
	}

	if opts.BlindAll {
		plan = &Plan{Fields: planAllObject(root)}
	}

	b := &blinder{opts: opts}

	if plan == nil {
		plan = &Plan{}
	}
	payload, disclosures, err := b.blindObject(root, plan)
	if err != nil {
		return nil, err
	}

	if len(disclosures) > 0 {
		payload[model.ClaimSDAlg] = opts.Algorithm
	}

	return &BlindResult{Payload: payload, Disclosures: disclosures}, nil
}

type blinder struct {
	opts *BlindOptions
}

func (b *blinder) blindObject(obj map[string]any, plan *Plan) (map[string]any, []*Disclosure, error) {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = v
	}

	// deterministic emission order for reproducible tests
	keys := make([]string, 0, len(plan.Fields))
	for k := range plan.Fields {
		if _, ok := obj[k]; !ok {
			return nil, nil, helpers.NewErrorDetails(helpers.ErrPlanShapeMismatch.Title, fmt.Sprintf("plan addresses unknown key %q", k))
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var disclosures []*Disclosure
	var digests []string

	for _, k := range keys {
		sub := plan.Fields[k]
		if sub == nil {
			continue
		}

		value, childDisclosures, err := b.blindValue(obj[k], sub)
		if err != nil {
			return nil, nil, err
		}
		disclosures = append(disclosures, childDisclosures...)

		if !sub.Blind {
			out[k] = value
			continue
		}

		d, err := GenerateObjectDisclosure(b.opts.Rand, k, value)
		if err != nil {
			return nil, nil, helpers.NewErrorFromError(err)
		}
		digest, err := d.Digest(b.opts.Algorithm, b.opts.AllowWeakHash)
		if err != nil {
			return nil, nil, err
		}

		delete(out, k)
		disclosures = append(disclosures, d)
		digests = append(digests, digest)
	}

	if len(digests) > 0 {
		for i := 0; i < b.opts.Decoys; i++ {
			decoy, err := b.decoyDigest()
			if err != nil {
				return nil, nil, err
			}
			digests = append(digests, decoy)
		}

		sort.Strings(digests)
		out[model.ClaimSD] = dedupeSorted(digests)
	}

	return out, disclosures, nil
}

func (b *blinder) blindValue(v any, plan *Plan) (any, []*Disclosure, error) {
	switch {
	case plan.Fields != nil:
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, nil, helpers.NewErrorDetails(helpers.ErrPlanShapeMismatch.Title, fmt.Sprintf("plan expects an object, value is %T", v))
		}
		return b.blindObject(obj, plan)
	case plan.Elements != nil:
		arr, ok := v.([]any)
		if !ok {
			return nil, nil, helpers.NewErrorDetails(helpers.ErrPlanShapeMismatch.Title, fmt.Sprintf("plan expects an array, value is %T", v))
		}
		return b.blindArray(arr, plan)
	default:
		return v, nil, nil
	}
}

func (b *blinder) blindArray(arr []any, plan *Plan) (any, []*Disclosure, error) {
	if len(plan.Elements) > len(arr) {
		return nil, nil, helpers.NewErrorDetails(helpers.ErrPlanShapeMismatch.Title, fmt.Sprintf("plan addresses %d elements, array has %d", len(plan.Elements), len(arr)))
	}

	out := make([]any, len(arr))
	copy(out, arr)

	var disclosures []*Disclosure

	for i, sub := range plan.Elements {
		if sub == nil {
			continue
		}

		value, childDisclosures, err := b.blindValue(arr[i], sub)
		if err != nil {
			return nil, nil, err
		}
		disclosures = append(disclosures, childDisclosures...)

		if !sub.Blind {
			out[i] = value
			continue
		}

		d, err := GenerateArrayElementDisclosure(b.opts.Rand, value)
		if err != nil {
			return nil, nil, helpers.NewErrorFromError(err)
		}
		digest, err := d.Digest(b.opts.Algorithm, b.opts.AllowWeakHash)
		if err != nil {
			return nil, nil, err
		}

		out[i] = map[string]any{model.ClaimArrayElement: digest}
		disclosures = append(disclosures, d)
	}

	return out, disclosures, nil
}

// decoyDigest hashes fresh random bytes so a decoy has exactly the shape
// and length of a real digest.
func (b *blinder) decoyDigest() (string, error) {
	random := make([]byte, 32)
	if _, err := io.ReadFull(b.opts.Rand, random); err != nil {
		return "", err
	}
	return Digest(b.opts.Algorithm, b.opts.AllowWeakHash, random)
}

func dedupeSorted(sorted []string) []any {
	out := make([]any, 0, len(sorted))
	for i, s := range sorted {
		if i > 0 && sorted[i-1] == s {
			continue
		}
		out = append(out, s)
	}
	return out
}

// planAllObject marks every leaf under an object for blinding.
func planAllObject(obj map[string]any) map[string]*Plan {
	fields := make(map[string]*Plan, len(obj))
	for k, v := range obj {
		fields[k] = planAllValue(v)
	}
	return fields
}

func planAllValue(v any) *Plan {
	switch t := v.(type) {
	case map[string]any:
		return &Plan{Fields: planAllObject(t)}
	case []any:
		elements := make([]*Plan, len(t))
		for i, e := range t {
			elements[i] = planAllValue(e)
		}
		return &Plan{Elements: elements}
	default:
		return &Plan{Blind: true}
	}
}
