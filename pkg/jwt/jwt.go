package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of ID-token claims the relay keeps for token
// bookkeeping.
type Claims struct {
	Subject string
	Email   string
	Expiry  time.Time
}

// Parse extracts claims from a Google or Firebase ID token without verifying
// the signature. The token arrived from the issuer over TLS; the claims feed
// refresh scheduling, not trust decisions.
func Parse(idToken string) (*Claims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("failed to parse id token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("failed to read exp claim: %w", err)
	}
	if exp == nil {
		return nil, fmt.Errorf("id token has no exp claim")
	}

	result := &Claims{Expiry: exp.Time}
	if sub, err := claims.GetSubject(); err == nil {
		result.Subject = sub
	}
	if email, ok := claims["email"].(string); ok {
		result.Email = email
	}

	return result, nil
}
