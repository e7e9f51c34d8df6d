package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpaque(t *testing.T) {
	tests := []struct {
		name    string
		byteLen int
		wantLen int
	}{
		{"session id", 16, 32},
		{"reset token", 32, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewOpaque(tt.byteLen)
			require.NoError(t, err)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestNewOpaque_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		tok, err := NewOpaque(16)
		require.NoError(t, err)
		require.False(t, seen[tok], "duplicate token generated")
		seen[tok] = true
	}
}

func TestMaker_GenerateAndParseSessionPayload(t *testing.T) {
	maker := NewMaker("test_secret_key_1234567890", 24*time.Hour)

	tests := []struct {
		name       string
		accountUID string
		email      string
	}{
		{"regular account", "4f1c2a77-9a1b-4c6e-8f0d-2b5a9c3e7d11", "billing@acme.com"},
		{"plus-address email", "a0000000-0000-0000-0000-000000000001", "ops+billing@example.io"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := maker.GenerateSessionPayload(tt.accountUID, tt.email)
			require.NoError(t, err)
			assert.NotEmpty(t, payload)

			claims, err := maker.ParseSessionPayload(payload)
			require.NoError(t, err)

			assert.Equal(t, tt.accountUID, claims.AccountUID)
			assert.Equal(t, tt.email, claims.Email)
			assert.WithinDuration(t, time.Now(), claims.IssuedAt.Time, time.Second)
			assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Second)
		})
	}
}

func TestMaker_ParseSessionPayload_Invalid(t *testing.T) {
	maker := NewMaker("test_secret_key_1234567890", 24*time.Hour)

	valid, err := maker.GenerateSessionPayload("uid", "a@b.c")
	require.NoError(t, err)

	expiredMaker := NewMaker("test_secret_key_1234567890", -time.Hour)
	expired, err := expiredMaker.GenerateSessionPayload("uid", "a@b.c")
	require.NoError(t, err)

	wrongSecret, err := NewMaker("wrong_secret", 24*time.Hour).GenerateSessionPayload("uid", "a@b.c")
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"malformed", "not.a.jwt"},
		{"expired", expired},
		{"wrong secret", wrongSecret},
		{"tampered", valid + "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := maker.ParseSessionPayload(tt.payload)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}
