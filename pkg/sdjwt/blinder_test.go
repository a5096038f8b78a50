package sdjwt

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sdjwt/pkg/model"
)

func sdArray(t *testing.T, node map[string]any) []string {
	t.Helper()
	raw, ok := node[model.ClaimSD]
	require.True(t, ok, "node carries no _sd array")
	arr, ok := raw.([]any)
	require.True(t, ok, "_sd is %T, not an array", raw)
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		s, ok := e.(string)
		require.True(t, ok)
		out = append(out, s)
	}
	return out
}

func TestBlindSingleField(t *testing.T) {
	claims := map[string]any{
		"given_name":  "John",
		"family_name": "Doe",
	}
	plan := &Plan{Fields: map[string]*Plan{"family_name": {Blind: true}}}

	result, err := Blind(claims, plan, &BlindOptions{Rand: &fixedRand{}})
	require.NoError(t, err)

	assert.NotContains(t, result.Payload, "family_name")
	assert.Equal(t, "John", result.Payload["given_name"])
	assert.Equal(t, "sha-256", result.Payload[model.ClaimSDAlg])

	require.Len(t, result.Disclosures, 1)
	name, ok := result.Disclosures[0].Name()
	require.True(t, ok)
	assert.Equal(t, "family_name", name)

	digest, err := result.Disclosures[0].Digest("sha-256", false)
	require.NoError(t, err)
	assert.Equal(t, []string{digest}, sdArray(t, result.Payload))

	// the input object is untouched
	assert.Contains(t, claims, "family_name")
}

func TestBlindSortsDigestsAscending(t *testing.T) {
	claims := map[string]any{
		"street_address": "123 Main St",
		"locality":       "Anytown",
		"region":         "Anystate",
		"country":        "US",
	}
	plan := &Plan{Fields: map[string]*Plan{
		"street_address": {Blind: true},
		"locality":       {Blind: true},
		"region":         {Blind: true},
		"country":        {Blind: true},
	}}

	result, err := Blind(claims, plan, &BlindOptions{Rand: &fixedRand{}})
	require.NoError(t, err)

	digests := sdArray(t, result.Payload)
	assert.Len(t, digests, 4)
	assert.True(t, sort.SliceIsSorted(digests, func(i, j int) bool { return digests[i] < digests[j] }))
	for i := 1; i < len(digests); i++ {
		assert.NotEqual(t, digests[i-1], digests[i], "duplicate digest in _sd")
	}
}

func TestSortedDigestVector(t *testing.T) {
	// address field digests in issuance order, expected ascending on the wire
	have := []string{
		"9-VdSnvRTZNDo-4Bxcp3X-V9VtLOCRUkR6oLWZQl81I",
		"pEtkKwoFK_JHN7yNby0Lc_Jc10BAxCm5yXJjDbVehvU",
		"7pHe1uQ5uSClgAxXdG0E6dKnBgXcxEO1zvoQO9E5Lr4",
		"nTzPZ3Q68z1Ko_9ao9LK0mSYXY5gY6UG6KEkQ_BdqU0",
	}
	sort.Strings(have)

	assert.Equal(t, []string{
		"7pHe1uQ5uSClgAxXdG0E6dKnBgXcxEO1zvoQO9E5Lr4",
		"9-VdSnvRTZNDo-4Bxcp3X-V9VtLOCRUkR6oLWZQl81I",
		"nTzPZ3Q68z1Ko_9ao9LK0mSYXY5gY6UG6KEkQ_BdqU0",
		"pEtkKwoFK_JHN7yNby0Lc_Jc10BAxCm5yXJjDbVehvU",
	}, have)
}

func TestBlindDecoys(t *testing.T) {
	claims := map[string]any{"given_name": "John"}
	plan := &Plan{Fields: map[string]*Plan{"given_name": {Blind: true}}}

	result, err := Blind(claims, plan, &BlindOptions{Decoys: 2, Rand: &fixedRand{}})
	require.NoError(t, err)

	// one real digest plus two decoys, indistinguishable in shape
	digests := sdArray(t, result.Payload)
	assert.Len(t, digests, 3)

	realDigest, err := result.Disclosures[0].Digest("sha-256", false)
	require.NoError(t, err)
	assert.Contains(t, digests, realDigest)
	for _, d := range digests {
		assert.Len(t, d, len(realDigest))
	}
}

func TestBlindArrayElement(t *testing.T) {
	claims := map[string]any{
		"nationalities": []any{"US", "DE", "FR"},
	}
	plan := &Plan{Fields: map[string]*Plan{
		"nationalities": {Elements: []*Plan{nil, {Blind: true}}},
	}}

	result, err := Blind(claims, plan, &BlindOptions{Rand: &fixedRand{}})
	require.NoError(t, err)

	arr, ok := result.Payload["nationalities"].([]any)
	require.True(t, ok)
	require.Len(t, arr, 3)

	assert.Equal(t, "US", arr[0])
	assert.Equal(t, "FR", arr[2])

	placeholder, ok := arr[1].(map[string]any)
	require.True(t, ok, "blinded element is not a placeholder")
	require.Len(t, placeholder, 1)

	require.Len(t, result.Disclosures, 1)
	assert.Equal(t, DisclosureArrayElement, result.Disclosures[0].Kind())
	assert.Equal(t, "DE", result.Disclosures[0].Value())

	digest, err := result.Disclosures[0].Digest("sha-256", false)
	require.NoError(t, err)
	assert.Equal(t, digest, placeholder[model.ClaimArrayElement])

	// array disclosures produce no _sd array at this level
	assert.NotContains(t, result.Payload, model.ClaimSD)
}

func TestBlindRecursive(t *testing.T) {
	claims := map[string]any{
		"address": map[string]any{
			"street_address": "123 Main St",
			"locality":       "Anytown",
		},
	}
	plan := &Plan{Fields: map[string]*Plan{
		"address": {
			Blind:  true,
			Fields: map[string]*Plan{"street_address": {Blind: true}},
		},
	}}

	result, err := Blind(claims, plan, &BlindOptions{Rand: &fixedRand{}})
	require.NoError(t, err)

	// two disclosures: the inner street_address, then address itself
	require.Len(t, result.Disclosures, 2)
	assert.NotContains(t, result.Payload, "address")

	var addressDisclosure *Disclosure
	for _, d := range result.Disclosures {
		if name, ok := d.Name(); ok && name == "address" {
			addressDisclosure = d
		}
	}
	require.NotNil(t, addressDisclosure)

	// the disclosed address value carries its own _sd digest array
	inner, ok := addressDisclosure.Value().(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, inner, "street_address")
	assert.Equal(t, "Anytown", inner["locality"])
	assert.Contains(t, inner, model.ClaimSD)
}

func TestBlindAll(t *testing.T) {
	claims := map[string]any{
		"given_name": "John",
		"address": map[string]any{
			"locality": "Anytown",
		},
		"nationalities": []any{"US"},
	}

	result, err := Blind(claims, nil, &BlindOptions{BlindAll: true, Rand: &fixedRand{}})
	require.NoError(t, err)

	// every leaf blinded: given_name, address.locality, nationalities[0]
	assert.Len(t, result.Disclosures, 3)
	assert.NotContains(t, result.Payload, "given_name")

	address, ok := result.Payload["address"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, address, "locality")
	assert.Contains(t, address, model.ClaimSD)
}

func TestBlindNoPlanLeavesClaimsClear(t *testing.T) {
	claims := map[string]any{"given_name": "John"}

	result, err := Blind(claims, nil, &BlindOptions{Rand: &fixedRand{}})
	require.NoError(t, err)

	assert.Empty(t, result.Disclosures)
	assert.Equal(t, "John", result.Payload["given_name"])
	assert.NotContains(t, result.Payload, model.ClaimSDAlg)
}

func TestBlindPlanShapeMismatch(t *testing.T) {
	tts := []struct {
		name   string
		claims map[string]any
		plan   *Plan
	}{
		{
			name:   "unknown key",
			claims: map[string]any{"a": 1},
			plan:   &Plan{Fields: map[string]*Plan{"b": {Blind: true}}},
		},
		{
			name:   "plan longer than array",
			claims: map[string]any{"a": []any{1}},
			plan:   &Plan{Fields: map[string]*Plan{"a": {Elements: []*Plan{{Blind: true}, {Blind: true}}}}},
		},
		{
			name:   "object plan on scalar",
			claims: map[string]any{"a": 1},
			plan:   &Plan{Fields: map[string]*Plan{"a": {Fields: map[string]*Plan{"b": {Blind: true}}}}},
		},
		{
			name:   "array plan on object",
			claims: map[string]any{"a": map[string]any{"b": 1}},
			plan:   &Plan{Fields: map[string]*Plan{"a": {Elements: []*Plan{{Blind: true}}}}},
		},
	}

	for _, tt := range tts {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Blind(tt.claims, tt.plan, &BlindOptions{Rand: &fixedRand{}})
			assert.ErrorContains(t, err, "PLAN_SHAPE_MISMATCH")
		})
	}
}

func TestBlindWeakAlgorithmRejected(t *testing.T) {
	claims := map[string]any{"a": 1}
	plan := &Plan{Fields: map[string]*Plan{"a": {Blind: true}}}

	_, err := Blind(claims, plan, &BlindOptions{Algorithm: "sha-1", Rand: &fixedRand{}})
	assert.ErrorContains(t, err, "WEAK_ALGORITHM_REJECTED")

	result, err := Blind(claims, plan, &BlindOptions{Algorithm: "sha-1", AllowWeakHash: true, Rand: &fixedRand{}})
	require.NoError(t, err)
	assert.Equal(t, "sha-1", result.Payload[model.ClaimSDAlg])
}
