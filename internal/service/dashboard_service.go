package service

import (
	"context"
	"time"

	"crm-backend/internal/domain"
	"crm-backend/internal/ports"

	"golang.org/x/sync/errgroup"
)

// Dashboard is the caller's home screen.
type Dashboard struct {
	PendingTasks []domain.Task
	TodayVisits  []domain.VisitEntry
	Customers    []domain.Customer
}

type DashboardService struct {
	Tasks     ports.TaskStore
	Visits    ports.VisitStore
	Customers ports.CustomerStore
	Now       func() time.Time
}

func (s DashboardService) Get(ctx context.Context) (*Dashboard, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	start, end := dayBounds(nowUTC(s.Now))

	var out Dashboard
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tasks, err := s.Tasks.ListPending(gCtx, user.ID)
		out.PendingTasks = tasks
		return err
	})
	g.Go(func() error {
		visits, err := s.Visits.List(gCtx, ports.VisitFilter{UserID: user.ID, Start: &start, End: &end})
		out.TodayVisits = visits
		return err
	})
	g.Go(func() error {
		customers, err := s.Customers.ListAssignedTo(gCtx, user.ID, ports.CustomerFilter{})
		out.Customers = customers
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

// dayBounds returns the UTC day containing t as [start, end).
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

func nowUTC(now func() time.Time) time.Time {
	if now != nil {
		return now().UTC()
	}
	return time.Now().UTC()
}
