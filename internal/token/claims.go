package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of JWT claims the client reads from its own token.
// The signature is not verified: the gateway remains the authority.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// ParseClaims extracts claims from tok without verifying it.
// ok is false when tok is not a JWT, in which case it is treated as opaque.
func ParseClaims(tok string) (claims *Claims, ok bool) {
	claims = &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// Expired reports whether tok is a JWT whose exp claim is before now.
// Opaque tokens and JWTs without exp never expire client-side.
func Expired(tok string, now time.Time) bool {
	claims, ok := ParseClaims(tok)
	if !ok || claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Before(now)
}
