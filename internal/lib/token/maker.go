package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the signed payload persisted with every session.
type SessionClaims struct {
	AccountUID string `json:"account_uid"`
	Email      string `json:"email"`
	jwt.RegisteredClaims
}

// Maker signs and parses session payloads.
type Maker interface {
	// GenerateSessionPayload signs a payload for the given account and email.
	GenerateSessionPayload(accountUID, email string) (string, error)
	// ParseSessionPayload verifies a signed payload and returns its claims.
	ParseSessionPayload(payload string) (*SessionClaims, error)
}

// MakerImpl implements Maker with an HMAC secret and a fixed TTL.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewMaker creates a MakerImpl from a secret key and payload TTL.
func NewMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}

// GenerateSessionPayload signs account uid, email, issued-at and expiry.
func (m *MakerImpl) GenerateSessionPayload(accountUID, email string) (string, error) {
	claims := SessionClaims{
		AccountUID: accountUID,
		Email:      email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.tokenTTL)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(m.secretKey))
}

// ParseSessionPayload verifies the signature and validity window of a payload
// and returns its claims.
func (m *MakerImpl) ParseSessionPayload(payload string) (*SessionClaims, error) {
	const op = "token.ParseSessionPayload"
	tok, err := jwt.ParseWithClaims(payload, &SessionClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(m.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := tok.Claims.(*SessionClaims)
	if !ok || !tok.Valid {
		return nil, fmt.Errorf("%s: invalid payload", op)
	}
	return claims, nil
}
