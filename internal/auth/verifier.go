package auth

import (
	"context"
	"fmt"
	"strings"
)

// Verifier turns identity tokens into verified user identities.
type Verifier struct {
	cfg *JWTConfig
}

// NewVerifier creates a JWT-backed verifier.
func NewVerifier(cfg *JWTConfig) *Verifier {
	return &Verifier{cfg: cfg}
}

// Verify validates the token and returns the user identity it carries.
func (v *Verifier) Verify(_ context.Context, token string) (string, error) {
	claims, err := ValidateToken(v.cfg, token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// InsecureVerifier trusts the token as the identity. Development only.
type InsecureVerifier struct{}

// Verify returns the trimmed token as the user identity.
func (InsecureVerifier) Verify(_ context.Context, token string) (string, error) {
	user := strings.TrimSpace(token)
	if user == "" {
		return "", fmt.Errorf("%w: empty identity", ErrInvalidToken)
	}
	return user, nil
}
