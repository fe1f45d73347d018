package identity

import (
	"context"
	"testing"

	"crm-backend/internal/domain"
	"crm-backend/internal/ports"
	"crm-backend/internal/repository"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeLocalStore struct {
	recs map[string]*repository.IdentityRecord
}

func (s *fakeLocalStore) Create(_ context.Context, email, hash string, md domain.IdentityMetadata) (*repository.IdentityRecord, error) {
	rec := &repository.IdentityRecord{
		Identity:     domain.Identity{ID: "id-" + email, Email: email, Metadata: md},
		PasswordHash: hash,
	}
	s.recs[rec.ID] = rec
	return rec, nil
}

func (s *fakeLocalStore) List(context.Context) ([]repository.IdentityRecord, error) {
	var out []repository.IdentityRecord
	for _, r := range s.recs {
		out = append(out, *r)
	}
	return out, nil
}

func (s *fakeLocalStore) SetBanned(_ context.Context, id string, banned bool) error {
	r, ok := s.recs[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Banned = banned
	return nil
}

func (s *fakeLocalStore) UpdateMetadata(_ context.Context, id string, md domain.IdentityMetadata) error {
	s.recs[id].Metadata = md
	return nil
}

func (s *fakeLocalStore) SetPasswordHash(_ context.Context, id, hash string) error {
	s.recs[id].PasswordHash = hash
	return nil
}

func (s *fakeLocalStore) Delete(_ context.Context, id string) error {
	delete(s.recs, id)
	return nil
}

func TestLocal_CreateHashesPassword(t *testing.T) {
	store := &fakeLocalStore{recs: map[string]*repository.IdentityRecord{}}
	reg := Local{Store: store}

	id, err := reg.Create(context.Background(), ports.NewIdentity{
		Email:    "bdm@example.com",
		Password: "s3cret-pass",
		Metadata: domain.IdentityMetadata{FullName: "Budi", Role: domain.RoleBDM},
	})
	require.NoError(t, err)

	rec := store.recs[id.ID]
	require.NotNil(t, rec)
	assert.NotEqual(t, "s3cret-pass", rec.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte("s3cret-pass")))
}

func TestLocal_SetPasswordRehashes(t *testing.T) {
	store := &fakeLocalStore{recs: map[string]*repository.IdentityRecord{}}
	reg := Local{Store: store}
	id, err := reg.Create(context.Background(), ports.NewIdentity{Email: "a@b.co", Password: "first-pass"})
	require.NoError(t, err)

	require.NoError(t, reg.SetPassword(context.Background(), id.ID, "second-pass"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(store.recs[id.ID].PasswordHash), []byte("second-pass")))
}

func TestLocal_SetBannedMissing(t *testing.T) {
	reg := Local{Store: &fakeLocalStore{recs: map[string]*repository.IdentityRecord{}}}
	assert.ErrorIs(t, reg.SetBanned(context.Background(), "nobody", true), domain.ErrNotFound)
}

func TestIdentityFromRecord(t *testing.T) {
	rec := &fbauth.UserRecord{
		UserInfo:     &fbauth.UserInfo{UID: "uid-1", Email: "x@y.co", DisplayName: "Xena"},
		Disabled:     true,
		CustomClaims: map[string]interface{}{"role": "super_admin"},
		UserMetadata: &fbauth.UserMetadata{CreationTimestamp: 1717200000000, LastLogInTimestamp: 0},
	}

	id := identityFromRecord(rec)
	assert.Equal(t, "uid-1", id.ID)
	assert.True(t, id.Banned)
	assert.Equal(t, domain.RoleSuperAdmin, id.Metadata.Role)
	assert.Equal(t, "Xena", id.Metadata.FullName)
	assert.Nil(t, id.LastSignIn)
	assert.Equal(t, int64(1717200000), id.CreatedAt.Unix())
}
