package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"crm-backend/internal/server/authctx"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
)

var errInvalidToken = errors.New("invalid token")

// TokenVerifier proves a bearer token and returns the caller it belongs to.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (authctx.CurrentUser, error)
}

// HMACVerifier checks HS256 session tokens. Supabase access tokens and the
// tokens issued by the local auth service share this shape. Tokens that
// carry a token_type claim must be access tokens.
type HMACVerifier struct {
	Secret string
}

func (v HMACVerifier) Verify(_ context.Context, tokenStr string) (authctx.CurrentUser, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(v.Secret), nil
	})
	if err != nil || !token.Valid {
		return authctx.CurrentUser{}, errInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return authctx.CurrentUser{}, errInvalidToken
	}
	if tt, present := claims["token_type"]; present && tt != "access" {
		return authctx.CurrentUser{}, errInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return authctx.CurrentUser{}, errors.New("invalid subject")
	}
	email, _ := claims["email"].(string)
	return authctx.CurrentUser{ID: sub, Email: email}, nil
}

// FirebaseVerifier checks Firebase ID tokens.
type FirebaseVerifier struct {
	Client *fbauth.Client
}

func (v FirebaseVerifier) Verify(ctx context.Context, tokenStr string) (authctx.CurrentUser, error) {
	tok, err := v.Client.VerifyIDToken(ctx, tokenStr)
	if err != nil {
		return authctx.CurrentUser{}, errInvalidToken
	}
	email, _ := tok.Claims["email"].(string)
	return authctx.CurrentUser{ID: tok.UID, Email: email}, nil
}

// AuthMiddleware validates the bearer token and sets the current user in
// context. The caller's role is not taken from the token.
func AuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			user, err := verifier.Verify(r.Context(), strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, err.Error())
				return
			}
			ctx := authctx.WithCurrentUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "error",
		"message": message,
		"data":    nil,
		"error": map[string]any{
			"code":   status,
			"status": http.StatusText(status),
		},
	})
}
