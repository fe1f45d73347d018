package service

import (
	"context"
	"strings"
	"time"

	"crm-backend/internal/domain"
	"crm-backend/internal/ports"
)

type CreateTaskInput struct {
	Description string
	DueDate     *time.Time
	Priority    domain.TaskPriority
	CustomerID  string
}

type TaskService struct {
	Tasks ports.TaskStore
}

func (s TaskService) Create(ctx context.Context, in CreateTaskInput) (*domain.Task, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return nil, domain.Required("description")
	}
	if in.DueDate == nil {
		return nil, domain.Required("due_date")
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityNormal
	}
	if !in.Priority.Valid() {
		return nil, &domain.ValidationError{Field: "priority", Message: "must be High, Normal or Low"}
	}
	return s.Tasks.Create(ctx, domain.Task{
		Description: in.Description,
		DueDate:     in.DueDate,
		Priority:    in.Priority,
		UserID:      user.ID,
		CustomerID:  optional(in.CustomerID),
	})
}

// ListForDate returns the caller's open tasks due on day.
func (s TaskService) ListForDate(ctx context.Context, day time.Time) ([]domain.Task, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.Tasks.ListOpenDueOn(ctx, user.ID, day)
}
