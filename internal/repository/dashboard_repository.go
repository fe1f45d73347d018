package repository

import (
	"context"
	"time"

	"crm-backend/internal/db"
	"crm-backend/internal/domain"
	"crm-backend/internal/ports"
)

// DashboardRepository serves the aggregate reads behind the admin
// dashboard and analytics.
type DashboardRepository struct {
	DB *db.Postgres
}

func (r DashboardRepository) CountCustomers(ctx context.Context, createdSince *time.Time) (int, error) {
	var n int
	err := r.DB.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM customers WHERE $1::timestamptz IS NULL OR created_at >= $1
	`, createdSince).Scan(&n)
	return n, domain.Persistence("count customers", err)
}

func (r DashboardRepository) StageCounts(ctx context.Context) ([]ports.StageCount, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT assigned_to::text, stage, COUNT(*)
		FROM customers
		GROUP BY assigned_to, stage
	`)
	if err != nil {
		return nil, domain.Persistence("stage counts", err)
	}
	defer rows.Close()
	var items []ports.StageCount
	for rows.Next() {
		var sc ports.StageCount
		if err := rows.Scan(&sc.AssigneeID, &sc.Stage, &sc.Count); err != nil {
			return nil, domain.Persistence("stage counts", err)
		}
		items = append(items, sc)
	}
	return items, domain.Persistence("stage counts", rows.Err())
}

func (r DashboardRepository) CountVisits(ctx context.Context) (int, error) {
	var n int
	err := r.DB.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM visits`).Scan(&n)
	return n, domain.Persistence("count visits", err)
}

// DailyVisitCounts groups visits since the given instant by UTC date.
func (r DashboardRepository) DailyVisitCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT to_char(timestamp AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*)
		FROM visits
		WHERE timestamp >= $1
		GROUP BY day
	`, since)
	if err != nil {
		return nil, domain.Persistence("daily visits", err)
	}
	return collectCounts(rows, "daily visits")
}

func (r DashboardRepository) VisitCountsByUser(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT user_id::text, COUNT(*) FROM visits WHERE user_id IS NOT NULL GROUP BY user_id
	`)
	if err != nil {
		return nil, domain.Persistence("visits by user", err)
	}
	return collectCounts(rows, "visits by user")
}

func (r DashboardRepository) PendingTasksByUser(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT user_id::text, COUNT(*) FROM tasks WHERE is_completed = FALSE GROUP BY user_id
	`)
	if err != nil {
		return nil, domain.Persistence("pending tasks", err)
	}
	return collectCounts(rows, "pending tasks")
}

func collectCounts(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}, op string) (map[string]int, error) {
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, domain.Persistence(op, err)
		}
		out[key] = n
	}
	return out, domain.Persistence(op, rows.Err())
}
