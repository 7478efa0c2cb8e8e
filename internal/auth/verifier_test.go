package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
}

func TestVerifierRoundTrip(t *testing.T) {
	cfg := testConfig()
	token, err := GenerateToken(cfg, "alice", "Alice")
	require.NoError(t, err)

	user, err := NewVerifier(cfg).Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
}

func TestVerifierRejects(t *testing.T) {
	cfg := testConfig()

	expired, err := GenerateToken(&JWTConfig{Secret: cfg.Secret, Issuer: "test", Audience: "test", TTL: -time.Minute}, "alice", "")
	require.NoError(t, err)

	wrongSecret, err := GenerateToken(&JWTConfig{Secret: []byte("other"), Issuer: "test", Audience: "test", TTL: time.Hour}, "alice", "")
	require.NoError(t, err)

	wrongAudience, err := GenerateToken(&JWTConfig{Secret: cfg.Secret, Issuer: "test", Audience: "elsewhere", TTL: time.Hour}, "alice", "")
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "test",
		Audience:  jwt.ClaimStrings{"test"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}).SignedString(cfg.Secret)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "expired", token: expired},
		{name: "wrong secret", token: wrongSecret},
		{name: "wrong audience", token: wrongAudience},
		{name: "missing subject", token: noSubject},
	}

	v := NewVerifier(cfg)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestInsecureVerifier(t *testing.T) {
	user, err := InsecureVerifier{}.Verify(context.Background(), "  bob ")
	require.NoError(t, err)
	assert.Equal(t, "bob", user)

	_, err = InsecureVerifier{}.Verify(context.Background(), "   ")
	require.ErrorIs(t, err, ErrInvalidToken)
}
