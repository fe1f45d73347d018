package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"crm-backend/internal/db"
	"crm-backend/internal/domain"
	"crm-backend/internal/ports"
)

type VisitRepository struct {
	DB *db.Postgres
}

func (r VisitRepository) Create(ctx context.Context, v domain.Visit) (*domain.Visit, error) {
	ts := v.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	var out domain.Visit
	err := r.DB.Pool.QueryRow(ctx, `
		INSERT INTO visits (customer_id, user_id, purpose, outcome, notes, photo_url, location_lat, location_lng, location_name, timestamp)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id::text, customer_id::text, user_id::text, purpose, outcome, notes, photo_url,
			location_lat, location_lng, location_name, timestamp
	`, v.CustomerID, v.UserID, v.Purpose, v.Outcome, v.Notes, v.PhotoURL, v.LocationLat, v.LocationLng, v.LocationName, ts,
	).Scan(visitDest(&out)...)
	if err != nil {
		if db.IsForeignKeyViolation(err) || db.IsInvalidText(err) {
			return nil, &domain.ValidationError{Field: "customer_id", Message: "customer does not exist"}
		}
		return nil, domain.Persistence("create visit", err)
	}
	return &out, nil
}

// List returns visits joined with customer and user names, newest first.
func (r VisitRepository) List(ctx context.Context, f ports.VisitFilter) ([]domain.VisitEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.CustomerID != "" {
		add("v.customer_id = ?", f.CustomerID)
	}
	if f.UserID != "" {
		add("v.user_id = ?", f.UserID)
	}
	if f.Start != nil {
		add("v.timestamp >= ?", *f.Start)
	}
	if f.End != nil {
		add("v.timestamp < ?", *f.End)
	}
	query := `
		SELECT v.id::text, v.customer_id::text, v.user_id::text, v.purpose, v.outcome, v.notes, v.photo_url,
			v.location_lat, v.location_lng, v.location_name, v.timestamp,
			COALESCE(c.name, ''), COALESCE(p.full_name, '')
		FROM visits v
		LEFT JOIN customers c ON c.id = v.customer_id
		LEFT JOIN profiles p ON p.id = v.user_id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY v.timestamp DESC"

	rows, err := r.DB.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.Persistence("list visits", err)
	}
	defer rows.Close()
	var items []domain.VisitEntry
	for rows.Next() {
		var e domain.VisitEntry
		if err := rows.Scan(append(visitDest(&e.Visit), &e.CustomerName, &e.UserName)...); err != nil {
			return nil, domain.Persistence("list visits", err)
		}
		items = append(items, e)
	}
	return items, domain.Persistence("list visits", rows.Err())
}

// DetachUser clears the user reference so visits outlive their author.
func (r VisitRepository) DetachUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.DB.Pool.Exec(ctx, `UPDATE visits SET user_id=NULL WHERE user_id=$1`, userID)
	if err != nil {
		return 0, domain.Persistence("detach visits", err)
	}
	return tag.RowsAffected(), nil
}

func visitDest(v *domain.Visit) []any {
	return []any{
		&v.ID, &v.CustomerID, &v.UserID, &v.Purpose, &v.Outcome, &v.Notes, &v.PhotoURL,
		&v.LocationLat, &v.LocationLng, &v.LocationName, &v.Timestamp,
	}
}
