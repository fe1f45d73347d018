// Package identity holds the identity registry backends that do not speak
// the Supabase admin API.
package identity

import (
	"context"
	"time"

	"crm-backend/internal/domain"
	"crm-backend/internal/observability"
	"crm-backend/internal/ports"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
)

const firebaseService = "firebase/auth"

var tracer = otel.Tracer("identity")

// AuthClient is the part of *auth.Client the registry uses.
type AuthClient interface {
	Users(ctx context.Context, nextPageToken string) *fbauth.UserIterator
	CreateUser(ctx context.Context, user *fbauth.UserToCreate) (*fbauth.UserRecord, error)
	UpdateUser(ctx context.Context, uid string, user *fbauth.UserToUpdate) (*fbauth.UserRecord, error)
	SetCustomUserClaims(ctx context.Context, uid string, customClaims map[string]interface{}) error
	DeleteUser(ctx context.Context, uid string) error
}

// Firebase keeps identities in Firebase Authentication. The role lives in a
// custom claim and the full name in the display name. Disabled accounts
// count as banned.
type Firebase struct {
	Client  AuthClient
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

func (f Firebase) List(ctx context.Context) ([]domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "Firebase.ListUsers")
	defer span.End()

	var out []domain.Identity
	it := f.Client.Users(ctx, "")
	for {
		rec, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, f.fail(err)
		}
		out = append(out, identityFromRecord(rec.UserRecord))
	}
	return out, nil
}

// Create uses a UUID as the UID so it can key the profile row. The role
// claim is a cache of the profile role, so failing to set it does not undo
// or fail the creation.
func (f Firebase) Create(ctx context.Context, in ports.NewIdentity) (*domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "Firebase.CreateUser")
	defer span.End()

	params := (&fbauth.UserToCreate{}).
		UID(uuid.NewString()).
		Email(in.Email).
		EmailVerified(true).
		Password(in.Password)
	if in.Metadata.FullName != "" {
		params = params.DisplayName(in.Metadata.FullName)
	}
	rec, err := f.Client.CreateUser(ctx, params)
	if err != nil {
		return nil, f.fail(err)
	}
	if in.Metadata.Role != "" {
		if err := f.Client.SetCustomUserClaims(ctx, rec.UID, roleClaims(in.Metadata.Role)); err != nil {
			f.logger().Warn("set role claim failed",
				zap.String("uid", rec.UID),
				zap.Error(f.fail(err)),
			)
		} else {
			rec.CustomClaims = roleClaims(in.Metadata.Role)
		}
	}
	id := identityFromRecord(rec)
	return &id, nil
}

func (f Firebase) SetBanned(ctx context.Context, id string, banned bool) error {
	ctx, span := tracer.Start(ctx, "Firebase.SetBanned")
	defer span.End()

	_, err := f.Client.UpdateUser(ctx, id, (&fbauth.UserToUpdate{}).Disabled(banned))
	return f.fail(err)
}

func (f Firebase) UpdateMetadata(ctx context.Context, id string, md domain.IdentityMetadata) error {
	ctx, span := tracer.Start(ctx, "Firebase.UpdateMetadata")
	defer span.End()

	if md.FullName != "" {
		if _, err := f.Client.UpdateUser(ctx, id, (&fbauth.UserToUpdate{}).DisplayName(md.FullName)); err != nil {
			return f.fail(err)
		}
	}
	if md.Role != "" {
		return f.fail(f.Client.SetCustomUserClaims(ctx, id, roleClaims(md.Role)))
	}
	return nil
}

func (f Firebase) SetPassword(ctx context.Context, id, password string) error {
	ctx, span := tracer.Start(ctx, "Firebase.SetPassword")
	defer span.End()

	_, err := f.Client.UpdateUser(ctx, id, (&fbauth.UserToUpdate{}).Password(password))
	return f.fail(err)
}

func (f Firebase) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Firebase.DeleteUser")
	defer span.End()

	return f.fail(f.Client.DeleteUser(ctx, id))
}

func (f Firebase) fail(err error) error {
	if err == nil {
		return nil
	}
	if fbauth.IsUserNotFound(err) {
		return domain.ErrNotFound
	}
	if f.Metrics != nil {
		f.Metrics.IncrExternalError(firebaseService)
	}
	return &domain.ExternalServiceError{Service: firebaseService, Err: err}
}

func (f Firebase) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}

func roleClaims(role domain.UserRole) map[string]interface{} {
	return map[string]interface{}{"role": string(role)}
}

func identityFromRecord(rec *fbauth.UserRecord) domain.Identity {
	id := domain.Identity{Banned: rec.Disabled}
	if rec.UserInfo != nil {
		id.ID = rec.UID
		id.Email = rec.Email
		id.Metadata.FullName = rec.DisplayName
	}
	if role, ok := rec.CustomClaims["role"].(string); ok {
		id.Metadata.Role = domain.UserRole(role)
	}
	if rec.UserMetadata != nil {
		id.CreatedAt = time.UnixMilli(rec.UserMetadata.CreationTimestamp).UTC()
		if ts := rec.UserMetadata.LastLogInTimestamp; ts > 0 {
			last := time.UnixMilli(ts).UTC()
			id.LastSignIn = &last
		}
	}
	return id
}
