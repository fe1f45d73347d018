package service

import (
	"context"
	"errors"

	"crm-backend/internal/domain"
	"crm-backend/internal/observability"
	"crm-backend/internal/server/authctx"

	"go.uber.org/zap"
)

// Action names an operation guarded by the access gate.
type Action string

const (
	ActionCreateUser        Action = "create_user"
	ActionBanUser           Action = "ban_user"
	ActionChangeRole        Action = "change_role"
	ActionDeleteUser        Action = "delete_user"
	ActionResetPassword     Action = "reset_password"
	ActionListUsers         Action = "list_users"
	ActionAdminDashboard    Action = "admin_dashboard"
	ActionManageAssignments Action = "manage_assignments"
	ActionViewAllRecords    Action = "view_all_records"
)

// Policy maps each guarded action to the roles allowed to perform it.
type Policy map[Action][]domain.UserRole

var (
	adminRoles     = []domain.UserRole{domain.RoleAdmin, domain.RoleSuperAdmin}
	superAdminOnly = []domain.UserRole{domain.RoleSuperAdmin}
)

// DefaultPolicy is the role table of the admin console. resetPassword
// overrides who may reset passwords; empty means super_admin only.
func DefaultPolicy(resetPassword []domain.UserRole) Policy {
	if len(resetPassword) == 0 {
		resetPassword = superAdminOnly
	}
	return Policy{
		ActionCreateUser:        adminRoles,
		ActionBanUser:           superAdminOnly,
		ActionChangeRole:        superAdminOnly,
		ActionDeleteUser:        superAdminOnly,
		ActionResetPassword:     resetPassword,
		ActionListUsers:         adminRoles,
		ActionAdminDashboard:    adminRoles,
		ActionManageAssignments: adminRoles,
		ActionViewAllRecords:    adminRoles,
	}
}

// ProfileReader is the privileged profile lookup used by the gate.
type ProfileReader interface {
	Get(ctx context.Context, id string) (*domain.Profile, error)
}

// AccessGate authorizes callers by the role on their profile row. It does
// not trust any role carried in the session token.
type AccessGate struct {
	Profiles ProfileReader
	Policy   Policy
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

// CheckPermission resolves the caller and returns their profile when its
// role is one of allowed.
func (g AccessGate) CheckPermission(ctx context.Context, allowed ...domain.UserRole) (*domain.Profile, error) {
	return g.check(ctx, "", allowed)
}

// Authorize checks the caller against the policy entry for action. An
// action missing from the policy is denied.
func (g AccessGate) Authorize(ctx context.Context, action Action) (*domain.Profile, error) {
	allowed, ok := g.Policy[action]
	if !ok {
		g.deny(action)
		return nil, &domain.AuthorizationError{Action: string(action), Reason: "action is not permitted"}
	}
	return g.check(ctx, action, allowed)
}

// Allowed is Authorize without the error, for reads that narrow instead of
// failing.
func (g AccessGate) Allowed(ctx context.Context, action Action) bool {
	allowed, ok := g.Policy[action]
	if !ok {
		return false
	}
	p, err := g.resolve(ctx)
	return err == nil && hasRole(p.Role, allowed)
}

func (g AccessGate) check(ctx context.Context, action Action, allowed []domain.UserRole) (*domain.Profile, error) {
	p, err := g.resolve(ctx)
	if err != nil {
		g.deny(action)
		return nil, err
	}
	if !hasRole(p.Role, allowed) {
		g.deny(action)
		return nil, &domain.AuthorizationError{Action: string(action), Role: p.Role, Allowed: allowed}
	}
	return p, nil
}

func (g AccessGate) resolve(ctx context.Context) (*domain.Profile, error) {
	user := authctx.FromContext(ctx)
	if user == nil || user.ID == "" {
		return nil, &domain.AuthorizationError{Reason: "not authenticated", Unauthenticated: true}
	}
	p, err := g.Profiles.Get(ctx, user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.AuthorizationError{Reason: "user profile not found"}
		}
		return nil, err
	}
	return p, nil
}

func (g AccessGate) deny(action Action) {
	if action == "" {
		action = "check_permission"
	}
	if g.Metrics != nil {
		g.Metrics.IncrAuthorizationDenial(string(action))
	}
	if g.Logger != nil {
		g.Logger.Debug("access denied", zap.String("action", string(action)))
	}
}

func hasRole(role domain.UserRole, allowed []domain.UserRole) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// ParseRoles converts configured role names, dropping unknown ones.
func ParseRoles(names []string) []domain.UserRole {
	var out []domain.UserRole
	for _, n := range names {
		if r := domain.UserRole(n); r.Valid() {
			out = append(out, r)
		}
	}
	return out
}

func currentUser(ctx context.Context) (*authctx.CurrentUser, error) {
	u := authctx.FromContext(ctx)
	if u == nil || u.ID == "" {
		return nil, &domain.AuthorizationError{Reason: "not authenticated", Unauthenticated: true}
	}
	return u, nil
}
