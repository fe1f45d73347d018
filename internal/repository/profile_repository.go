package repository

import (
	"context"
	"errors"

	"crm-backend/internal/db"
	"crm-backend/internal/domain"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = domain.ErrNotFound

// isNotFound treats a malformed id like a missing row.
func isNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || db.IsInvalidText(err)
}

// IsDuplicate reports a unique constraint violation.
func IsDuplicate(err error) bool {
	return db.IsUniqueViolation(err)
}

type ProfileRepository struct {
	DB *db.Postgres
}

const profileColumns = `id::text, full_name, phone, role, updated_at`

func (r ProfileRepository) Get(ctx context.Context, id string) (*domain.Profile, error) {
	row := r.DB.Pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id=$1`, id)
	p, err := scanProfile(row)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, domain.Persistence("get profile", err)
	}
	return p, nil
}

func (r ProfileRepository) List(ctx context.Context) ([]domain.Profile, error) {
	rows, err := r.DB.Pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY full_name ASC`)
	if err != nil {
		return nil, domain.Persistence("list profiles", err)
	}
	defer rows.Close()
	var items []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, domain.Persistence("list profiles", err)
		}
		items = append(items, *p)
	}
	return items, domain.Persistence("list profiles", rows.Err())
}

func (r ProfileRepository) Insert(ctx context.Context, p domain.Profile) error {
	_, err := r.DB.Pool.Exec(ctx, `
		INSERT INTO profiles (id, full_name, phone, role, created_at, updated_at)
		VALUES ($1,$2,$3,$4, now(), now())
	`, p.ID, p.FullName, p.Phone, string(p.Role))
	return domain.Persistence("insert profile", err)
}

func (r ProfileRepository) Update(ctx context.Context, p domain.Profile) error {
	tag, err := r.DB.Pool.Exec(ctx, `
		UPDATE profiles SET full_name=$2, phone=$3, role=$4, updated_at=now() WHERE id=$1
	`, p.ID, p.FullName, p.Phone, string(p.Role))
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return domain.Persistence("update profile", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r ProfileRepository) UpdateContact(ctx context.Context, id, fullName, phone string) (*domain.Profile, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		UPDATE profiles SET full_name=$2, phone=$3, updated_at=now() WHERE id=$1
		RETURNING `+profileColumns,
		id, fullName, phone,
	)
	p, err := scanProfile(row)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, domain.Persistence("update profile", err)
	}
	return p, nil
}

func (r ProfileRepository) UpdateRole(ctx context.Context, id string, role domain.UserRole) error {
	tag, err := r.DB.Pool.Exec(ctx, `UPDATE profiles SET role=$2, updated_at=now() WHERE id=$1`, id, string(role))
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return domain.Persistence("update role", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r ProfileRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.DB.Pool.Exec(ctx, `DELETE FROM profiles WHERE id=$1`, id)
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return domain.Persistence("delete profile", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProfile(row interface {
	Scan(dest ...any) error
}) (*domain.Profile, error) {
	var (
		p    domain.Profile
		role string
	)
	if err := row.Scan(&p.ID, &p.FullName, &p.Phone, &role, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Role = domain.UserRole(role)
	return &p, nil
}
