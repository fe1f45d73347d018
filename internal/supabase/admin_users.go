package supabase

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"crm-backend/internal/domain"
	"crm-backend/internal/ports"

	"go.opentelemetry.io/otel/attribute"
)

const (
	authService = "supabase/auth"

	// GoTrue has no permanent ban; a century is close enough.
	banForever = "876000h"
	banNone    = "none"

	listPageSize = 1000
)

type gotrueUser struct {
	ID           string                  `json:"id"`
	Email        string                  `json:"email"`
	CreatedAt    time.Time               `json:"created_at"`
	LastSignInAt *time.Time              `json:"last_sign_in_at"`
	BannedUntil  *string                 `json:"banned_until"`
	UserMetadata domain.IdentityMetadata `json:"user_metadata"`
}

func (u gotrueUser) toIdentity(now time.Time) domain.Identity {
	return domain.Identity{
		ID:         u.ID,
		Email:      u.Email,
		Banned:     bannedAt(u.BannedUntil, now),
		Metadata:   u.UserMetadata,
		CreatedAt:  u.CreatedAt,
		LastSignIn: u.LastSignInAt,
	}
}

func bannedAt(until *string, now time.Time) bool {
	if until == nil || *until == "" {
		return false
	}
	t, err := time.Parse(time.RFC3339Nano, *until)
	if err != nil {
		return true
	}
	return t.After(now)
}

// List returns every identity in the project, following pagination.
func (c *Client) List(ctx context.Context) ([]domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListUsers")
	defer span.End()

	now := time.Now()
	var out []domain.Identity
	for page := 1; ; page++ {
		var resp struct {
			Users []gotrueUser `json:"users"`
		}
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(listPageSize))
		err := c.call(ctx, authService, true, func() error {
			return c.doJSON(ctx, http.MethodGet, "/auth/v1/admin/users?"+q.Encode(), nil, &resp)
		})
		if err != nil {
			return nil, err
		}
		for _, u := range resp.Users {
			out = append(out, u.toIdentity(now))
		}
		if len(resp.Users) < listPageSize {
			break
		}
	}
	span.SetAttributes(attribute.Int("users.count", len(out)))
	return out, nil
}

// Create registers a confirmed identity.
func (c *Client) Create(ctx context.Context, in ports.NewIdentity) (*domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateUser")
	defer span.End()

	var u gotrueUser
	err := c.call(ctx, authService, false, func() error {
		return c.doJSON(ctx, http.MethodPost, "/auth/v1/admin/users", map[string]any{
			"email":         in.Email,
			"password":      in.Password,
			"email_confirm": true,
			"user_metadata": in.Metadata,
		}, &u)
	})
	if err != nil {
		return nil, err
	}
	id := u.toIdentity(time.Now())
	return &id, nil
}

func (c *Client) SetBanned(ctx context.Context, id string, banned bool) error {
	ctx, span := tracer.Start(ctx, "Supabase.SetBanned")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", id), attribute.Bool("banned", banned))

	duration := banNone
	if banned {
		duration = banForever
	}
	return c.updateUser(ctx, id, map[string]any{"ban_duration": duration})
}

func (c *Client) UpdateMetadata(ctx context.Context, id string, md domain.IdentityMetadata) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateMetadata")
	defer span.End()
	return c.updateUser(ctx, id, map[string]any{"user_metadata": md})
}

func (c *Client) SetPassword(ctx context.Context, id, password string) error {
	ctx, span := tracer.Start(ctx, "Supabase.SetPassword")
	defer span.End()
	return c.updateUser(ctx, id, map[string]any{"password": password})
}

func (c *Client) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", id))

	return c.call(ctx, authService, false, func() error {
		return c.doJSON(ctx, http.MethodDelete, "/auth/v1/admin/users/"+url.PathEscape(id), nil, nil)
	})
}

func (c *Client) updateUser(ctx context.Context, id string, payload map[string]any) error {
	return c.call(ctx, authService, false, func() error {
		return c.doJSON(ctx, http.MethodPut, "/auth/v1/admin/users/"+url.PathEscape(id), payload, nil)
	})
}
