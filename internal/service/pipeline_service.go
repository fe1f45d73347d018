package service

import (
	"context"
	"strings"

	"crm-backend/internal/domain"
	"crm-backend/internal/ports"
)

// PipelineService owns a customer's stage and meeting count.
//
// Stage writes are permissive: any target is accepted, including backward
// moves and strings outside the pipeline. Concurrent writes to one customer
// are last-write-wins.
type PipelineService struct {
	Customers ports.CustomerStore
	Gate      AccessGate
}

// Advance sets the customer's stage to target.
func (s PipelineService) Advance(ctx context.Context, customerID, target string) (*domain.Customer, error) {
	target = strings.TrimSpace(target)
	if target == "" || target == domain.KeepCurrentStage {
		return nil, &domain.ValidationError{Field: "stage", Message: "a target stage is required"}
	}
	if _, err := s.editable(ctx, customerID); err != nil {
		return nil, err
	}
	return s.Customers.UpdateStage(ctx, customerID, domain.ParseStage(target), false)
}

// AdjustMeetingCount adds delta to the meeting count, floored at zero.
func (s PipelineService) AdjustMeetingCount(ctx context.Context, customerID string, delta int) (*domain.Customer, error) {
	if delta == 0 {
		return nil, &domain.ValidationError{Field: "delta", Message: "must not be zero"}
	}
	if _, err := s.editable(ctx, customerID); err != nil {
		return nil, err
	}
	return s.Customers.AdjustMeetingCount(ctx, customerID, delta)
}

// Close moves the customer to the terminal stage. A converted Prospect
// Dealer becomes a Dealer in the same write.
func (s PipelineService) Close(ctx context.Context, customerID string, outcome domain.ClosingOutcome) (*domain.Customer, error) {
	if outcome != domain.OutcomeConverted && outcome != domain.OutcomeNotConverted {
		return nil, &domain.ValidationError{Field: "outcome", Message: "must be Converted or Not Converted"}
	}
	if _, err := s.editable(ctx, customerID); err != nil {
		return nil, err
	}
	return s.Customers.UpdateStage(ctx, customerID, domain.ClosedStage(outcome), outcome == domain.OutcomeConverted)
}

// editable loads the customer when the caller owns it or is an admin.
func (s PipelineService) editable(ctx context.Context, customerID string) (*domain.Customer, error) {
	return authorizeCustomer(ctx, s.Gate, s.Customers, customerID)
}

func authorizeCustomer(ctx context.Context, gate AccessGate, customers ports.CustomerStore, customerID string) (*domain.Customer, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if customerID == "" {
		return nil, domain.Required("customer_id")
	}
	c, err := customers.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if c.AssignedTo != nil && *c.AssignedTo == user.ID {
		return c, nil
	}
	if _, err := gate.Authorize(ctx, ActionViewAllRecords); err != nil {
		return nil, err
	}
	return c, nil
}
