package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crm-backend/internal/config"
	"crm-backend/internal/domain"
	"crm-backend/internal/handler"
	"crm-backend/internal/repository"
	"crm-backend/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type credentials map[string]*repository.IdentityRecord

func (c credentials) GetByEmail(_ context.Context, email string) (*repository.IdentityRecord, error) {
	for _, r := range c {
		if r.Email == email {
			return r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (c credentials) GetByID(_ context.Context, id string) (*repository.IdentityRecord, error) {
	if r, ok := c[id]; ok {
		return r, nil
	}
	return nil, repository.ErrNotFound
}

func (c credentials) TouchSignIn(context.Context, string) error { return nil }

func authRouter(t *testing.T) (http.Handler, credentials) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("rahasia123"), bcrypt.MinCost)
	require.NoError(t, err)
	creds := credentials{"u-1": {Identity: domain.Identity{ID: "u-1", Email: "budi@example.com"}, PasswordHash: string(hash)}}
	r := chi.NewRouter()
	handler.AuthHandler{Service: service.AuthService{
		Config:      config.Config{JWTSecret: "s", AccessTokenTTL: time.Hour, RefreshTokenTTL: time.Hour},
		Credentials: creds,
	}}.RegisterRoutes(r)
	return r, creds
}

func post(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw)))
	return rec
}

func TestAuthHandler_LoginAndRefresh(t *testing.T) {
	r, creds := authRouter(t)

	rec := post(r, "/auth/login", map[string]string{"email": "budi@example.com", "password": "rahasia123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var session struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		User         struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decode(t, rec, &session)
	assert.Equal(t, "u-1", session.User.ID)
	assert.NotEmpty(t, session.AccessToken)

	rec = post(r, "/auth/refresh", map[string]string{"refresh_token": session.RefreshToken})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = post(r, "/auth/refresh", map[string]string{"refresh_token": session.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/auth/refresh", map[string]string{}).Code)

	assert.Equal(t, http.StatusUnauthorized, post(r, "/auth/login", map[string]string{"email": "budi@example.com", "password": "nope"}).Code)
	creds["u-1"].Banned = true
	assert.Equal(t, http.StatusForbidden, post(r, "/auth/login", map[string]string{"email": "budi@example.com", "password": "rahasia123"}).Code)
}
