package identity

import (
	"context"
	"fmt"
	"strings"

	"crm-backend/internal/domain"
	"crm-backend/internal/ports"
	"crm-backend/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// LocalStore is the persistence used by Local.
type LocalStore interface {
	Create(ctx context.Context, email, passwordHash string, md domain.IdentityMetadata) (*repository.IdentityRecord, error)
	List(ctx context.Context) ([]repository.IdentityRecord, error)
	SetBanned(ctx context.Context, id string, banned bool) error
	UpdateMetadata(ctx context.Context, id string, md domain.IdentityMetadata) error
	SetPasswordHash(ctx context.Context, id, hash string) error
	Delete(ctx context.Context, id string) error
}

// Local keeps identities in the application database with bcrypt hashes.
type Local struct {
	Store LocalStore
}

func (l Local) List(ctx context.Context) ([]domain.Identity, error) {
	recs, err := l.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Identity, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Identity)
	}
	return out, nil
}

func (l Local) Create(ctx context.Context, in ports.NewIdentity) (*domain.Identity, error) {
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	rec, err := l.Store.Create(ctx, strings.ToLower(strings.TrimSpace(in.Email)), hash, in.Metadata)
	if err != nil {
		return nil, err
	}
	return &rec.Identity, nil
}

func (l Local) SetBanned(ctx context.Context, id string, banned bool) error {
	return l.Store.SetBanned(ctx, id, banned)
}

func (l Local) UpdateMetadata(ctx context.Context, id string, md domain.IdentityMetadata) error {
	return l.Store.UpdateMetadata(ctx, id, md)
}

func (l Local) SetPassword(ctx context.Context, id, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	return l.Store.SetPasswordHash(ctx, id, hash)
}

func (l Local) Delete(ctx context.Context, id string) error {
	return l.Store.Delete(ctx, id)
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
