// Package sdjwt implements the selective disclosure JWT core: the
// disclosure codec and digest contract, the blinding transform that turns
// claim trees into _sd digest arrays with decoys, the tilde-delimited
// presentation codec, the rehydration walk that reconstructs claims from
// disclosures, and the key binding proof that ties a presentation to a
// holder, an audience and a nonce.
//
// Every operation is a pure function over its inputs. Keys stay behind
// the jose.Signer and jose.KeyResolver seams, randomness and time are
// injected, and the only suspension point in the whole flow is the
// status list fetch in pkg/tsl.
package sdjwt
