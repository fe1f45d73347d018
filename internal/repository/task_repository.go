package repository

import (
	"context"
	"time"

	"crm-backend/internal/db"
	"crm-backend/internal/domain"
)

type TaskRepository struct {
	DB *db.Postgres
}

const taskColumns = `id::text, description, due_date, priority, is_completed, user_id::text, customer_id::text, created_at`

func (r TaskRepository) Create(ctx context.Context, t domain.Task) (*domain.Task, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		INSERT INTO tasks (description, due_date, priority, is_completed, user_id, customer_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6, now())
		RETURNING `+taskColumns,
		t.Description, t.DueDate, string(t.Priority), t.IsCompleted, t.UserID, t.CustomerID,
	)
	out, err := scanTask(row)
	if err != nil {
		if db.IsForeignKeyViolation(err) || db.IsInvalidText(err) {
			return nil, &domain.ValidationError{Field: "customer_id", Message: "customer does not exist"}
		}
		return nil, domain.Persistence("create task", err)
	}
	return out, nil
}

// ListOpenDueOn returns the user's incomplete tasks due on day, newest first.
func (r TaskRepository) ListOpenDueOn(ctx context.Context, userID string, day time.Time) ([]domain.Task, error) {
	return r.list(ctx, "list tasks", `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE user_id=$1 AND is_completed = FALSE AND due_date = $2::date
		ORDER BY created_at DESC
	`, userID, day.Format("2006-01-02"))
}

// ListPending returns the user's incomplete tasks by due date.
func (r TaskRepository) ListPending(ctx context.Context, userID string) ([]domain.Task, error) {
	return r.list(ctx, "list pending tasks", `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE user_id=$1 AND is_completed = FALSE
		ORDER BY due_date ASC NULLS LAST
	`, userID)
}

func (r TaskRepository) CompleteForUser(ctx context.Context, id, userID string) (bool, error) {
	tag, err := r.DB.Pool.Exec(ctx, `UPDATE tasks SET is_completed=TRUE WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		if db.IsInvalidText(err) {
			return false, nil
		}
		return false, domain.Persistence("complete task", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r TaskRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.DB.Pool.Exec(ctx, `DELETE FROM tasks WHERE user_id=$1`, userID)
	if err != nil {
		return 0, domain.Persistence("delete tasks", err)
	}
	return tag.RowsAffected(), nil
}

func (r TaskRepository) list(ctx context.Context, op, query string, args ...any) ([]domain.Task, error) {
	rows, err := r.DB.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.Persistence(op, err)
	}
	defer rows.Close()
	var items []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, domain.Persistence(op, err)
		}
		items = append(items, *t)
	}
	return items, domain.Persistence(op, rows.Err())
}

func scanTask(row interface {
	Scan(dest ...any) error
}) (*domain.Task, error) {
	var (
		t        domain.Task
		priority string
	)
	if err := row.Scan(&t.ID, &t.Description, &t.DueDate, &priority, &t.IsCompleted, &t.UserID, &t.CustomerID, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Priority = domain.TaskPriority(priority)
	return &t, nil
}
