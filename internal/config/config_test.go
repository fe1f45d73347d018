package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_LocalDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/crm")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("IDENTITY_PROVIDER", "local")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("RESET_PASSWORD_ROLES", "admin, super_admin")
	t.Setenv("GEOCODER_PRECISE_TIMEOUT", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageLocal, cfg.StorageDriver)
	assert.Equal(t, "visit-photos", cfg.StorageBucket)
	assert.Equal(t, []string{"admin", "super_admin"}, cfg.ResetPasswordRoles)
	assert.Equal(t, 3*time.Second, cfg.GeocoderPreciseTimeout)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
}

func TestValidate_SupabaseNeedsServiceKey(t *testing.T) {
	cfg := Config{IdentityProvider: IdentitySupabase, StorageDriver: StorageLocal, SupabaseURL: "https://x.supabase.co"}
	assert.Error(t, cfg.Validate())

	cfg.SupabaseServiceRoleKey = "service"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := Config{IdentityProvider: IdentityLocal, StorageDriver: "ftp"}
	assert.Error(t, cfg.Validate())
}
