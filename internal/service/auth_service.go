package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"crm-backend/internal/config"
	"crm-backend/internal/domain"
	"crm-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrAccountBanned      = errors.New("account is banned")
)

// Token types carried in the token_type claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// CredentialStore is the lookup side of the local identity table.
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (*repository.IdentityRecord, error)
	GetByID(ctx context.Context, id string) (*repository.IdentityRecord, error)
	TouchSignIn(ctx context.Context, id string) error
}

// AuthService signs sessions for IDENTITY_PROVIDER=local. Tokens use the
// same claim shape as Supabase access tokens so one middleware verifies
// both.
type AuthService struct {
	Config      config.Config
	Credentials CredentialStore
	Logger      *zap.Logger
	Now         func() time.Time
}

type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         domain.Identity
	ExpiresAt    time.Time
}

type LoginInput struct {
	Email    string
	Password string
}

type RefreshInput struct {
	RefreshToken string
}

func (s AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || in.Password == "" {
		return nil, ErrInvalidCredentials
	}
	rec, err := s.Credentials.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if rec.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(in.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if rec.Banned {
		return nil, ErrAccountBanned
	}
	if err := s.Credentials.TouchSignIn(ctx, rec.ID); err != nil && s.Logger != nil {
		s.Logger.Warn("failed to record sign-in", zap.String("user_id", rec.ID), zap.Error(err))
	}
	return s.issueTokens(rec.Identity)
}

func (s AuthService) Refresh(ctx context.Context, in RefreshInput) (*AuthResult, error) {
	token, err := jwt.Parse(in.RefreshToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.Config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if claims["token_type"] != TokenTypeRefresh {
		return nil, ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, ErrInvalidToken
	}

	rec, err := s.Credentials.GetByID(ctx, sub)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if rec.Banned {
		return nil, ErrAccountBanned
	}
	return s.issueTokens(rec.Identity)
}

func (s AuthService) issueTokens(user domain.Identity) (*AuthResult, error) {
	now := nowUTC(s.Now)
	accessExp := now.Add(s.Config.AccessTokenTTL)
	refreshExp := now.Add(s.Config.RefreshTokenTTL)

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        user.ID,
		"email":      user.Email,
		"token_type": TokenTypeAccess,
		"exp":        accessExp.Unix(),
		"iat":        now.Unix(),
	}).SignedString([]byte(s.Config.JWTSecret))
	if err != nil {
		return nil, err
	}

	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        user.ID,
		"token_type": TokenTypeRefresh,
		"exp":        refreshExp.Unix(),
		"iat":        now.Unix(),
	}).SignedString([]byte(s.Config.JWTSecret))
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
		ExpiresAt:    accessExp,
	}, nil
}
