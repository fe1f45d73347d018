package testutil

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"crm-backend/internal/domain"
	"crm-backend/internal/ports"
	"crm-backend/internal/server/authctx"
)

// AsUser returns ctx carrying an authenticated caller.
func AsUser(ctx context.Context, id string) context.Context {
	return authctx.WithCurrentUser(ctx, authctx.CurrentUser{ID: id, Email: id + "@example.com"})
}

// FixedClock returns a Now func pinned to t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// Registry is an in-memory identity registry.
type Registry struct {
	mu         sync.Mutex
	seq        int
	Identities map[string]*domain.Identity
	Passwords  map[string]string
	Fail       map[string]error
}

var _ ports.IdentityRegistry = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		Identities: map[string]*domain.Identity{},
		Passwords:  map[string]string{},
		Fail:       map[string]error{},
	}
}

// Add seeds an identity.
func (r *Registry) Add(id domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Identities[id.ID] = &id
}

func (r *Registry) failed(op string) error {
	if err, ok := r.Fail[op]; ok {
		return &domain.ExternalServiceError{Service: "registry", Err: err}
	}
	return nil
}

func (r *Registry) List(context.Context) ([]domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failed("list"); err != nil {
		return nil, err
	}
	out := make([]domain.Identity, 0, len(r.Identities))
	for _, id := range r.Identities {
		out = append(out, *id)
	}
	return out, nil
}

func (r *Registry) Create(_ context.Context, in ports.NewIdentity) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failed("create"); err != nil {
		return nil, err
	}
	r.seq++
	id := &domain.Identity{ID: fmt.Sprintf("user-%d", r.seq), Email: in.Email, Metadata: in.Metadata, CreatedAt: time.Now().UTC()}
	r.Identities[id.ID] = id
	r.Passwords[id.ID] = in.Password
	out := *id
	return &out, nil
}

func (r *Registry) SetBanned(_ context.Context, id string, banned bool) error {
	return r.update("ban", id, func(i *domain.Identity) { i.Banned = banned })
}

func (r *Registry) UpdateMetadata(_ context.Context, id string, md domain.IdentityMetadata) error {
	return r.update("metadata", id, func(i *domain.Identity) {
		if md.FullName != "" {
			i.Metadata.FullName = md.FullName
		}
		if md.Role != "" {
			i.Metadata.Role = md.Role
		}
	})
}

func (r *Registry) SetPassword(_ context.Context, id, password string) error {
	return r.update("password", id, func(i *domain.Identity) { r.Passwords[i.ID] = password })
}

func (r *Registry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failed("delete"); err != nil {
		return err
	}
	if _, ok := r.Identities[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.Identities, id)
	return nil
}

func (r *Registry) update(op, id string, fn func(*domain.Identity)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failed(op); err != nil {
		return err
	}
	i, ok := r.Identities[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(i)
	return nil
}

// Objects is an in-memory object store.
type Objects struct {
	mu   sync.Mutex
	Data map[string][]byte
	Err  error
}

func NewObjects() *Objects {
	return &Objects{Data: map[string][]byte{}}
}

func (o *Objects) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	if o.Err != nil {
		return "", o.Err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Data[key] = b
	return "https://cdn.example.com/" + key, nil
}

// Places is a PlaceResolver with a canned answer.
type Places struct {
	Name string
	Err  error
}

func (p Places) Resolve(context.Context, float64, float64) (string, error) {
	if p.Err != nil {
		return "", p.Err
	}
	return p.Name, nil
}
