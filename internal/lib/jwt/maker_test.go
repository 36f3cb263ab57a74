package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test_secret_key_1234567890"

func TestJWTMaker_GenerateAndParseToken_ValidCases(t *testing.T) {
	tokenTTL := 15 * time.Minute
	maker := NewJWTMaker(testSecret, tokenTTL, time.Hour)

	tests := []struct {
		name    string
		subject string
		role    string
	}{
		{name: "admin", subject: "7b0c4f7e-8a1e-4e53-9d8c-8cf0e8a5b001", role: "admin"},
		{name: "realtor", subject: "7b0c4f7e-8a1e-4e53-9d8c-8cf0e8a5b002", role: "realtor"},
		{name: "client", subject: "7b0c4f7e-8a1e-4e53-9d8c-8cf0e8a5b003", role: "client"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := maker.GenerateToken(tt.subject, tt.role)
			require.NoError(t, err)
			assert.NotEmpty(t, token)

			claims, err := maker.ParseToken(token)
			require.NoError(t, err)

			assert.Equal(t, tt.subject, claims.Subject)
			assert.Equal(t, tt.role, claims.Role)
			assert.Equal(t, KindUser, claims.Kind)
			assert.WithinDuration(t, time.Now(), claims.IssuedAt.Time, time.Second)
			assert.WithinDuration(t, time.Now().Add(tokenTTL), claims.ExpiresAt.Time, time.Second)
		})
	}
}

func TestJWTMaker_GuestToken(t *testing.T) {
	maker := NewJWTMaker(testSecret, time.Minute, 48*time.Hour)

	token, err := maker.GenerateGuestToken("guest-1")
	require.NoError(t, err)

	claims, err := maker.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "guest-1", claims.Subject)
	assert.Equal(t, KindGuest, claims.Kind)
	assert.WithinDuration(t, time.Now().Add(48*time.Hour), claims.ExpiresAt.Time, time.Second)
}

func TestJWTMaker_EmptySubject(t *testing.T) {
	maker := NewJWTMaker(testSecret, time.Minute, time.Minute)

	_, err := maker.GenerateToken("", "client")
	assert.Error(t, err)
}

func TestJWTMaker_ParseToken_InvalidTokens(t *testing.T) {
	maker := NewJWTMaker(testSecret, 15*time.Minute, time.Hour)

	validToken, err := maker.GenerateToken("user-1", "client")
	require.NoError(t, err)

	expired, err := NewJWTMaker(testSecret, -time.Hour, time.Hour).GenerateToken("user-1", "client")
	require.NoError(t, err)

	foreign, err := NewJWTMaker("wrong_secret_key", time.Minute, time.Hour).GenerateToken("user-1", "client")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "malformed token", token: "invalid.token.here"},
		{name: "expired token", token: expired},
		{name: "wrong secret key", token: foreign},
		{name: "tampered token", token: validToken + "tampered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := maker.ParseToken(tt.token)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}

func TestJWTMaker_TokenExpiration(t *testing.T) {
	maker := NewJWTMaker(testSecret, time.Second, time.Hour)

	token, err := maker.GenerateToken("user-1", "client")
	require.NoError(t, err)

	_, err = maker.ParseToken(token)
	require.NoError(t, err)

	time.Sleep(2100 * time.Millisecond)

	_, err = maker.ParseToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}
