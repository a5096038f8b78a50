package jose

import (
	"encoding/json"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"sdjwt/pkg/helpers"
	"sdjwt/pkg/model"
)

// HolderKey extracts the holder's public key from the credential's cnf
// claim. A credential without a usable cnf.jwk cannot carry key binding.
func HolderKey(claims map[string]any) (any, error) {
	cnf, ok := claims[model.ClaimCNF].(map[string]any)
	if !ok {
		return nil, helpers.NewErrorDetails(helpers.ErrKeyBindingUnbound.Title, "credential carries no cnf claim")
	}

	jwkMap, ok := cnf["jwk"].(map[string]any)
	if !ok {
		return nil, helpers.NewErrorDetails(helpers.ErrKeyBindingUnbound.Title, "cnf carries no jwk")
	}

	raw, err := json.Marshal(jwkMap)
	if err != nil {
		return nil, helpers.NewErrorDetails(helpers.ErrKeyBindingUnbound.Title, err.Error())
	}

	key, err := jwk.ParseKey(raw)
	if err != nil {
		return nil, helpers.NewErrorDetails(helpers.ErrKeyBindingUnbound.Title, err.Error())
	}

	var public any
	if err := jwk.Export(key, &public); err != nil {
		return nil, helpers.NewErrorDetails(helpers.ErrKeyBindingUnbound.Title, err.Error())
	}

	return public, nil
}

// ExportJWK renders a public key as the JWK map shape the cnf claim
// carries.
func ExportJWK(publicKey any) (map[string]any, error) {
	key, err := jwk.Import(publicKey)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(key)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}

	return out, nil
}
