package sdjwt

import (
	"fmt"

	"sdjwt/pkg/helpers"
	"sdjwt/pkg/model"
)

// Rehydrate re-inserts disclosed claims into a blinded payload and returns
// the reconstructed claim object. The payload and the disclosure values are
// not modified. Every disclosure must be consumed by exactly one digest;
// digests without a matching disclosure are left alone, the verifier
// cannot tell a withheld claim from a decoy.
func Rehydrate(payload map[string]any, disclosures []*Disclosure, allowWeakHash bool) (map[string]any, error) {
	alg := DefaultHashAlgorithm
	if raw, ok := payload[model.ClaimSDAlg]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, helpers.NewErrorDetails(helpers.ErrPayloadMalformed.Title, "_sd_alg is not a string")
		}
		alg = s
	}
	if _, err := NewHash(alg, allowWeakHash); err != nil {
		return nil, err
	}

	r := &rehydrator{
		byDigest: make(map[string]*Disclosure, len(disclosures)),
		used:     make(map[string]bool, len(disclosures)),
	}

	for _, d := range disclosures {
		digest, err := d.Digest(alg, allowWeakHash)
		if err != nil {
			return nil, err
		}
		if _, ok := r.byDigest[digest]; ok {
			return nil, helpers.NewErrorDetails(helpers.ErrDuplicateDisclosureDigest.Title, digest)
		}
		r.byDigest[digest] = d
	}

	copied, err := normalizeValue(payload)
	if err != nil {
		return nil, helpers.NewErrorFromError(err)
	}
	root, ok := copied.(map[string]any)
	if !ok {
		return nil, helpers.NewErrorDetails(helpers.ErrPayloadMalformed.Title, "payload is not a JSON object")
	}

	if err := r.object(root); err != nil {
		return nil, err
	}

	delete(root, model.ClaimSDAlg)

	for _, d := range disclosures {
		digest, err := d.Digest(alg, allowWeakHash)
		if err != nil {
			return nil, err
		}
		if !r.used[digest] {
			return nil, helpers.NewErrorDetails(helpers.ErrUnusedDisclosure.Title, fmt.Sprintf("disclosure %s matches no digest", digest))
		}
	}

	return root, nil
}

type rehydrator struct {
	byDigest map[string]*Disclosure
	used     map[string]bool
}

func (r *rehydrator) object(obj map[string]any) error {
	if raw, ok := obj[model.ClaimSD]; ok {
		digests, err := sdDigests(raw)
		if err != nil {
			return err
		}
		delete(obj, model.ClaimSD)

		for _, digest := range digests {
			d, ok := r.byDigest[digest]
			if !ok {
				continue
			}
			if err := r.consume(digest); err != nil {
				return err
			}

			name, hasName := d.Name()
			if !hasName {
				return helpers.NewErrorDetails(helpers.ErrInvalidDisclosure.Title, "array-element disclosure referenced from an _sd array")
			}
			if _, exists := obj[name]; exists {
				return helpers.NewErrorDetails(helpers.ErrConflictingDisclosure.Title, name)
			}

			value, err := normalizeValue(d.Value())
			if err != nil {
				return helpers.NewErrorFromError(err)
			}
			obj[name] = value
		}
	}

	for k, v := range obj {
		if k == model.ClaimArrayElement {
			return helpers.NewErrorDetails(helpers.ErrPayloadMalformed.Title, "array placeholder outside an array")
		}

		replaced, err := r.value(v)
		if err != nil {
			return err
		}
		obj[k] = replaced
	}

	return nil
}

func (r *rehydrator) value(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		if err := r.object(t); err != nil {
			return nil, err
		}
		return t, nil
	case []any:
		return r.array(t)
	default:
		return v, nil
	}
}

func (r *rehydrator) array(arr []any) ([]any, error) {
	for i, elem := range arr {
		digest, isPlaceholder, err := placeholderDigest(elem)
		if err != nil {
			return nil, err
		}

		if !isPlaceholder {
			replaced, err := r.value(elem)
			if err != nil {
				return nil, err
			}
			arr[i] = replaced
			continue
		}

		d, ok := r.byDigest[digest]
		if !ok {
			// withheld or decoy, the placeholder stays
			continue
		}
		if err := r.consume(digest); err != nil {
			return nil, err
		}
		if _, hasName := d.Name(); hasName {
			return nil, helpers.NewErrorDetails(helpers.ErrInvalidDisclosure.Title, "object disclosure referenced from an array placeholder")
		}

		value, err := normalizeValue(d.Value())
		if err != nil {
			return nil, helpers.NewErrorFromError(err)
		}

		// nested disclosures inside the revealed value rehydrate in turn
		replaced, err := r.value(value)
		if err != nil {
			return nil, err
		}
		arr[i] = replaced
	}

	return arr, nil
}

func (r *rehydrator) consume(digest string) error {
	if r.used[digest] {
		return helpers.NewErrorDetails(helpers.ErrDuplicateDisclosureDigest.Title, fmt.Sprintf("digest %s referenced more than once", digest))
	}
	r.used[digest] = true
	return nil
}

// sdDigests reads an _sd value. The emitted form is always an array; a
// bare string is tolerated on input for interop with stacks that collapse
// single-element arrays.
func sdDigests(raw any) ([]string, error) {
	switch t := raw.(type) {
	case string:
		return []string{t}, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, helpers.NewErrorDetails(helpers.ErrPayloadMalformed.Title, "_sd entry is not a string")
			}
			out = append(out, s)
		}
		return out, nil
	case []string:
		return t, nil
	default:
		return nil, helpers.NewErrorDetails(helpers.ErrPayloadMalformed.Title, "_sd is not an array")
	}
}

// placeholderDigest recognizes the {"...": digest} array element shape.
func placeholderDigest(elem any) (string, bool, error) {
	obj, ok := elem.(map[string]any)
	if !ok {
		return "", false, nil
	}
	raw, ok := obj[model.ClaimArrayElement]
	if !ok {
		return "", false, nil
	}
	if len(obj) != 1 {
		return "", false, helpers.NewErrorDetails(helpers.ErrPayloadMalformed.Title, "array placeholder carries extra keys")
	}
	digest, ok := raw.(string)
	if !ok {
		return "", false, helpers.NewErrorDetails(helpers.ErrPayloadMalformed.Title, "array placeholder digest is not a string")
	}
	return digest, true, nil
}
