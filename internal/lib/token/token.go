// Package token generates the opaque identifiers and signed payloads used by
// the session and password-reset flows.
//
// Opaque tokens are random hex strings and carry no information; the signed
// session payload is a JWT stored next to the session row so that the account
// id and email it was issued for are tamper-evident.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewOpaque returns a cryptographically random hex string of 2*byteLen
// characters.
func NewOpaque(byteLen int) (string, error) {
	const op = "token.NewOpaque"
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return hex.EncodeToString(buf), nil
}
