package testutil

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignToken returns an HS256 session token for sub. An empty tokenType
// leaves the claim out, as Supabase does.
func SignToken(secret, sub, email, tokenType string, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(ttl).Unix(),
	}
	if tokenType != "" {
		claims["token_type"] = tokenType
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}
	return signed
}
