package service

import (
	"context"
	"strings"

	"crm-backend/internal/domain"
	"crm-backend/internal/observability"
	"crm-backend/internal/ports"

	"go.uber.org/zap"
)

const (
	StepWriteProfile   = "write_profile"
	StepUpdateMetadata = "update_identity_metadata"
)

// ProfileView is the caller's profile with the email from the session.
type ProfileView struct {
	domain.Profile
	Email string
}

type ProfileService struct {
	Profiles   ports.ProfileStore
	Identities ports.IdentityRegistry
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

func (s ProfileService) Get(ctx context.Context) (*ProfileView, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.Profiles.Get(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &ProfileView{Profile: *p, Email: user.Email}, nil
}

// Update writes the caller's name and phone. The identity metadata copy of
// the name is refreshed when possible.
func (s ProfileService) Update(ctx context.Context, fullName, phone string) (*ProfileView, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, domain.Required("full_name")
	}
	phone = strings.TrimSpace(phone)

	var updated *domain.Profile
	steps := []Step{
		{Name: StepWriteProfile, Policy: Fatal, Run: func(ctx context.Context, _ StepReport) error {
			p, err := s.Profiles.UpdateContact(ctx, user.ID, fullName, phone)
			updated = p
			return err
		}},
	}
	if s.Identities != nil {
		steps = append(steps, Step{Name: StepUpdateMetadata, Policy: BestEffort, Run: func(ctx context.Context, _ StepReport) error {
			return s.Identities.UpdateMetadata(ctx, user.ID, domain.IdentityMetadata{FullName: fullName})
		}})
	}
	if _, err := (stepRunner{Workflow: "update_profile", Logger: s.Logger, Metrics: s.Metrics}).run(ctx, steps); err != nil {
		return nil, err
	}
	return &ProfileView{Profile: *updated, Email: user.Email}, nil
}
