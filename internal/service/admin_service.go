package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crm-backend/internal/domain"
	"crm-backend/internal/observability"
	"crm-backend/internal/ports"

	"go.uber.org/zap"
)

// Steps of the admin workflows.
const (
	StepCreateIdentity = "create_identity"
	StepUpsertProfile  = "upsert_profile"
	StepUpdateRole     = "update_profile_role"
	StepUnassign       = "unassign_customers"
	StepDeleteTasks    = "delete_tasks"
	StepDetachVisits   = "detach_visits"
	StepDetachAuthor   = "detach_customer_authors"
	StepDeleteProfile  = "delete_profile"
	StepDeleteIdentity = "delete_identity"
)

const (
	minPasswordLength   = 6
	errMsgBDMNotFound   = "BDM not found"
	errMsgNotAssignable = "Selected user is not a BDM"
	errMsgAllFields     = "All fields are required"
)

type CreateUserInput struct {
	Email    string
	Password string
	FullName string
	Role     domain.UserRole
}

// AdminService is the user and assignment console. Every operation goes
// through the access gate first.
type AdminService struct {
	Gate       AccessGate
	Identities ports.IdentityRegistry
	Profiles   ports.ProfileStore
	Customers  ports.CustomerStore
	Tasks      ports.TaskStore
	Visits     ports.VisitStore
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// ListUsers merges registry identities with profile rows. The profile wins
// for name and role; identity metadata fills the gaps.
func (s AdminService) ListUsers(ctx context.Context) ([]domain.UserSummary, error) {
	if _, err := s.Gate.Authorize(ctx, ActionListUsers); err != nil {
		return nil, err
	}
	identities, err := s.Identities.List(ctx)
	if err != nil {
		return nil, err
	}
	profiles, err := s.Profiles.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	out := make([]domain.UserSummary, 0, len(identities))
	for _, id := range identities {
		p, hasProfile := byID[id.ID]
		u := domain.UserSummary{
			ID:         id.ID,
			Email:      id.Email,
			FullName:   id.Metadata.FullName,
			Role:       domain.DefaultDisplayRole,
			Banned:     id.Banned,
			CreatedAt:  id.CreatedAt,
			LastSignIn: id.LastSignIn,
		}
		if hasProfile && p.FullName != "" {
			u.FullName = p.FullName
		}
		switch {
		case hasProfile && p.Role != "":
			u.Role = string(p.Role)
		case id.Metadata.Role != "":
			u.Role = string(id.Metadata.Role)
		}
		out = append(out, u)
	}
	return out, nil
}

// CreateUser registers the identity and then makes sure a profile row with
// the chosen role exists.
func (s AdminService) CreateUser(ctx context.Context, in CreateUserInput) (*domain.Identity, error) {
	if _, err := s.Gate.Authorize(ctx, ActionCreateUser); err != nil {
		return nil, err
	}
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if in.Email == "" || in.Password == "" || in.FullName == "" || in.Role == "" {
		return nil, &domain.ValidationError{Message: errMsgAllFields}
	}
	if !in.Role.Valid() {
		return nil, &domain.ValidationError{Field: "role", Message: "unknown role"}
	}

	var created *domain.Identity
	steps := []Step{
		{Name: StepCreateIdentity, Policy: Fatal, Run: func(ctx context.Context, _ StepReport) error {
			id, err := s.Identities.Create(ctx, ports.NewIdentity{
				Email:    in.Email,
				Password: in.Password,
				Metadata: domain.IdentityMetadata{FullName: in.FullName, Role: in.Role},
			})
			created = id
			return err
		}},
		{Name: StepUpsertProfile, Policy: BestEffort, Run: func(ctx context.Context, _ StepReport) error {
			p := domain.Profile{ID: created.ID, FullName: in.FullName, Role: in.Role}
			err := s.Profiles.Update(ctx, p)
			if errors.Is(err, domain.ErrNotFound) {
				return s.Profiles.Insert(ctx, p)
			}
			return err
		}},
	}
	if _, err := s.runner("create_user").run(ctx, steps); err != nil {
		return nil, err
	}
	return created, nil
}

func (s AdminService) SetBanned(ctx context.Context, userID string, banned bool) error {
	if _, err := s.Gate.Authorize(ctx, ActionBanUser); err != nil {
		return err
	}
	if userID == "" {
		return domain.Required("user_id")
	}
	return s.Identities.SetBanned(ctx, userID, banned)
}

// UpdateRole changes the role on the profile row. The metadata copy is
// refreshed on a best-effort basis and may lag behind.
func (s AdminService) UpdateRole(ctx context.Context, userID string, role domain.UserRole) error {
	if _, err := s.Gate.Authorize(ctx, ActionChangeRole); err != nil {
		return err
	}
	if userID == "" {
		return domain.Required("user_id")
	}
	if !role.Valid() {
		return &domain.ValidationError{Field: "role", Message: "unknown role"}
	}
	steps := []Step{
		{Name: StepUpdateRole, Policy: Fatal, Run: func(ctx context.Context, _ StepReport) error {
			return s.Profiles.UpdateRole(ctx, userID, role)
		}},
		{Name: StepUpdateMetadata, Policy: BestEffort, Run: func(ctx context.Context, _ StepReport) error {
			return s.Identities.UpdateMetadata(ctx, userID, domain.IdentityMetadata{Role: role})
		}},
	}
	_, err := s.runner("update_role").run(ctx, steps)
	return err
}

// DeleteUser removes a user and detaches what they owned. Customers must
// be unassigned and the identity must be deleted; the rest is cleanup.
// A failed profile delete only stops the cascade when the user's visits
// also could not be detached.
func (s AdminService) DeleteUser(ctx context.Context, userID string) (StepReport, error) {
	if _, err := s.Gate.Authorize(ctx, ActionDeleteUser); err != nil {
		return StepReport{}, err
	}
	if userID == "" {
		return StepReport{}, domain.Required("user_id")
	}
	steps := []Step{
		{Name: StepUnassign, Policy: Fatal, Run: func(ctx context.Context, _ StepReport) error {
			if _, err := s.Customers.UnassignAllFrom(ctx, userID); err != nil {
				return fmt.Errorf("failed to unassign customers from this user: %w", err)
			}
			return nil
		}},
		{Name: StepDeleteTasks, Policy: BestEffort, Run: func(ctx context.Context, _ StepReport) error {
			_, err := s.Tasks.DeleteByUser(ctx, userID)
			return err
		}},
		{Name: StepDetachVisits, Policy: BestEffort, Run: func(ctx context.Context, _ StepReport) error {
			_, err := s.Visits.DetachUser(ctx, userID)
			return err
		}},
		{Name: StepDetachAuthor, Policy: BestEffort, Run: func(ctx context.Context, _ StepReport) error {
			_, err := s.Customers.DetachAuthor(ctx, userID)
			return err
		}},
		{Name: StepDeleteProfile, Policy: BestEffort, Run: func(ctx context.Context, prior StepReport) error {
			err := s.Profiles.Delete(ctx, userID)
			if err == nil || errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			if prior.Failed(StepDetachVisits) {
				return Escalate(domain.ErrAssociatedVisits)
			}
			return err
		}},
		{Name: StepDeleteIdentity, Policy: Fatal, Run: func(ctx context.Context, _ StepReport) error {
			return s.Identities.Delete(ctx, userID)
		}},
	}
	return s.runner("delete_user").run(ctx, steps)
}

func (s AdminService) ResetPassword(ctx context.Context, userID, password string) error {
	if _, err := s.Gate.Authorize(ctx, ActionResetPassword); err != nil {
		return err
	}
	if userID == "" {
		return domain.Required("user_id")
	}
	if len(password) < minPasswordLength {
		return &domain.ValidationError{Field: "password", Message: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}
	return s.Identities.SetPassword(ctx, userID, password)
}

func (s AdminService) ListAssignments(ctx context.Context) ([]domain.CustomerAssignment, error) {
	if _, err := s.Gate.Authorize(ctx, ActionManageAssignments); err != nil {
		return nil, err
	}
	return s.Customers.ListAssignments(ctx)
}

// AssignCustomer hands a customer to a BDM or admin and returns the
// assignee's profile.
func (s AdminService) AssignCustomer(ctx context.Context, customerID, userID string) (*domain.Profile, error) {
	if _, err := s.Gate.Authorize(ctx, ActionManageAssignments); err != nil {
		return nil, err
	}
	if customerID == "" {
		return nil, domain.Required("customer_id")
	}
	if userID == "" {
		return nil, domain.Required("user_id")
	}
	assignee, err := s.Profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.ValidationError{Message: errMsgBDMNotFound}
		}
		return nil, err
	}
	if assignee.Role != domain.RoleBDM && assignee.Role != domain.RoleAdmin {
		return nil, &domain.ValidationError{Message: errMsgNotAssignable}
	}
	if err := s.Customers.SetAssignee(ctx, customerID, &assignee.ID); err != nil {
		return nil, err
	}
	return assignee, nil
}

func (s AdminService) UnassignCustomer(ctx context.Context, customerID string) error {
	if _, err := s.Gate.Authorize(ctx, ActionManageAssignments); err != nil {
		return err
	}
	if customerID == "" {
		return domain.Required("customer_id")
	}
	return s.Customers.SetAssignee(ctx, customerID, nil)
}

func (s AdminService) runner(workflow string) stepRunner {
	return stepRunner{Workflow: workflow, Logger: s.Logger, Metrics: s.Metrics}
}
