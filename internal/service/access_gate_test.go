package service_test

import (
	"context"
	"testing"

	"crm-backend/internal/domain"
	"crm-backend/internal/service"
	"crm-backend/internal/testutil"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckPermission_SuperAdminOnly(t *testing.T) {
	h := newHarness()

	_, err := h.gate.CheckPermission(testutil.AsUser(context.Background(), adminID), domain.RoleSuperAdmin)
	var aerr *domain.AuthorizationError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, domain.RoleAdmin, aerr.Role)
	assert.False(t, aerr.Unauthenticated)

	p, err := h.gate.CheckPermission(testutil.AsUser(context.Background(), superAdminID), domain.RoleSuperAdmin)
	require.NoError(t, err)
	assert.Equal(t, superAdminID, p.ID)
}

func TestCheckPermission_MissingSessionOrProfile(t *testing.T) {
	h := newHarness()

	_, err := h.gate.CheckPermission(context.Background(), domain.RoleBDM)
	var aerr *domain.AuthorizationError
	require.ErrorAs(t, err, &aerr)
	assert.True(t, aerr.Unauthenticated)

	_, err = h.gate.CheckPermission(testutil.AsUser(context.Background(), "ghost"), domain.RoleBDM)
	require.ErrorAs(t, err, &aerr)
	assert.False(t, aerr.Unauthenticated)
	assert.Equal(t, "user profile not found", aerr.Error())
}

func TestAuthorize_UsesProfileRoleNotMetadata(t *testing.T) {
	h := newHarness()
	h.registry.Add(domain.Identity{ID: bdmID, Metadata: domain.IdentityMetadata{Role: domain.RoleSuperAdmin}})

	_, err := h.gate.Authorize(testutil.AsUser(context.Background(), bdmID), service.ActionDeleteUser)
	var aerr *domain.AuthorizationError
	assert.ErrorAs(t, err, &aerr)
}

func TestDefaultPolicy(t *testing.T) {
	h := newHarness()
	cases := []struct {
		action  service.Action
		user    string
		allowed bool
	}{
		{service.ActionCreateUser, adminID, true},
		{service.ActionCreateUser, bdmID, false},
		{service.ActionBanUser, adminID, false},
		{service.ActionBanUser, superAdminID, true},
		{service.ActionChangeRole, adminID, false},
		{service.ActionDeleteUser, superAdminID, true},
		{service.ActionResetPassword, adminID, false},
		{service.ActionResetPassword, superAdminID, true},
		{service.ActionAdminDashboard, adminID, true},
		{service.ActionViewAllRecords, bdmID, false},
		{service.Action("drop_tables"), superAdminID, false},
	}
	for _, tc := range cases {
		ctx := testutil.AsUser(context.Background(), tc.user)
		_, err := h.gate.Authorize(ctx, tc.action)
		assert.Equal(t, tc.allowed, err == nil, "%s as %s", tc.action, tc.user)
		assert.Equal(t, tc.allowed, h.gate.Allowed(ctx, tc.action), "%s as %s", tc.action, tc.user)
	}

	n, err := promtest.GatherAndCount(h.metrics.Registry, "crm_authorization_denials_total")
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestDefaultPolicy_ResetPasswordOverride(t *testing.T) {
	h := newHarness()
	h.gate.Policy = service.DefaultPolicy(service.ParseRoles([]string{"admin", "super_admin", "bogus"}))

	_, err := h.gate.Authorize(testutil.AsUser(context.Background(), adminID), service.ActionResetPassword)
	assert.NoError(t, err)
	assert.Equal(t, []domain.UserRole{domain.RoleAdmin}, service.ParseRoles([]string{"admin", "owner"}))
}
