/*

Opaque identifiers shared by every engine component. A Principal is whatever
32-byte identity primitive the embedding runtime derives (account address,
program-derived address, hash); the engine never inspects it beyond equality.

*/

package types

import (
	"encoding/hex"
	"errors"
)

// Principal is an opaque 32-byte identifier for accounts, token vaults and
// pool/vault authorities. Derivation is the embedder's concern.
type Principal [32]byte

// TokenID identifies a token mint. Structurally identical to Principal.
type TokenID = Principal

// ZeroPrincipal is the sentinel value for an empty funder slot.
var ZeroPrincipal Principal

var errBadPrincipal = errors.New("principal must be 32 hex-encoded bytes")

// IsZero reports whether the principal is the all-zero sentinel.
func (p Principal) IsZero() bool {
	return p == ZeroPrincipal
}

// String returns the hex encoding of the principal.
func (p Principal) String() string {
	return hex.EncodeToString(p[:])
}

// MarshalText implements encoding.TextMarshaler so principals render as hex
// in JSON snapshots.
func (p Principal) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Principal) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(string(text))
	if err != nil || len(raw) != len(p) {
		return errBadPrincipal
	}
	copy(p[:], raw)
	return nil
}

// PrincipalFromString parses a hex-encoded principal.
func PrincipalFromString(s string) (Principal, error) {
	var p Principal
	if err := p.UnmarshalText([]byte(s)); err != nil {
		return ZeroPrincipal, err
	}
	return p, nil
}
