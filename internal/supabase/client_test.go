package supabase_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"crm-backend/internal/domain"
	"crm-backend/internal/ports"
	"crm-backend/internal/resilience"
	"crm-backend/internal/supabase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorded struct {
	Method string
	Path   string
	Body   map[string]any
	Auth   string
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*supabase.Client, *[]recorded) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization")}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			_ = json.NewDecoder(r.Body).Decode(&rec.Body)
		}
		mu.Lock()
		calls = append(calls, rec)
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c := supabase.NewClient(srv.Client(), srv.URL, "", "service-key", nil,
		resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond}, zap.NewNop(), nil)
	return c, &calls
}

func TestCreate_SendsConfirmedUserWithMetadata(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"u-1","email":"a@b.co","created_at":"2024-05-01T10:00:00Z","user_metadata":{"full_name":"Ana","role":"bdm"}}`)
	})

	id, err := c.Create(context.Background(), ports.NewIdentity{
		Email:    "a@b.co",
		Password: "secret123",
		Metadata: domain.IdentityMetadata{FullName: "Ana", Role: domain.RoleBDM},
	})
	require.NoError(t, err)
	assert.Equal(t, "u-1", id.ID)
	assert.Equal(t, domain.RoleBDM, id.Metadata.Role)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, http.MethodPost, call.Method)
	assert.Equal(t, "/auth/v1/admin/users", call.Path)
	assert.Equal(t, "Bearer service-key", call.Auth)
	assert.Equal(t, true, call.Body["email_confirm"])
}

func TestSetBanned_UsesBanDuration(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})

	require.NoError(t, c.SetBanned(context.Background(), "u-1", true))
	require.NoError(t, c.SetBanned(context.Background(), "u-1", false))

	require.Len(t, *calls, 2)
	assert.Equal(t, http.MethodPut, (*calls)[0].Method)
	assert.Equal(t, "/auth/v1/admin/users/u-1", (*calls)[0].Path)
	assert.Equal(t, "876000h", (*calls)[0].Body["ban_duration"])
	assert.Equal(t, "none", (*calls)[1].Body["ban_duration"])
}

func TestList_DecodesBanState(t *testing.T) {
	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339Nano)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"users":[
			{"id":"u-1","email":"a@b.co","created_at":"2024-05-01T10:00:00Z","banned_until":"`+future+`"},
			{"id":"u-2","email":"c@d.co","created_at":"2024-05-02T10:00:00Z","banned_until":null,"user_metadata":{"role":"admin"}}
		]}`)
	})

	users, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.True(t, users[0].Banned)
	assert.False(t, users[1].Banned)
	assert.Equal(t, domain.RoleAdmin, users[1].Metadata.Role)
}

func TestList_RetriesServerErrors(t *testing.T) {
	attempts := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"users":[]}`)
	})

	users, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Equal(t, 2, attempts)
}

func TestDelete_NotFoundMapsToDomain(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	err := c.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete_ServerErrorIsExternal(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := c.Delete(context.Background(), "u-1")
	var ext *domain.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "supabase/auth", ext.Service)
}

func TestBucketPut_ReturnsPublicURL(t *testing.T) {
	var gotPath, gotType string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		_, _ = io.WriteString(w, `{"Key":"visit-photos/u-1/1700000000000.jpg"}`)
	})

	url, err := c.Bucket("visit-photos").Put(context.Background(), "u-1/1700000000000.jpg", "image/jpeg", strings.NewReader("img"), 3)
	require.NoError(t, err)
	assert.Equal(t, "/storage/v1/object/visit-photos/u-1/1700000000000.jpg", gotPath)
	assert.Equal(t, "image/jpeg", gotType)
	assert.True(t, strings.HasSuffix(url, "/storage/v1/object/public/visit-photos/u-1/1700000000000.jpg"))
}
