package repository

import (
	"context"

	"crm-backend/internal/db"
	"crm-backend/internal/domain"
)

// IdentityRepository stores self-hosted identities (IDENTITY_PROVIDER=local).
type IdentityRepository struct {
	DB *db.Postgres
}

// IdentityRecord is an identity with its password hash.
type IdentityRecord struct {
	domain.Identity
	PasswordHash string
}

const identityColumns = `id::text, email, banned, full_name, role, created_at, last_sign_in_at, password_hash`

func (r IdentityRepository) Create(ctx context.Context, email, passwordHash string, md domain.IdentityMetadata) (*IdentityRecord, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		INSERT INTO auth_identities (email, password_hash, full_name, role, created_at)
		VALUES ($1,$2,$3,$4, now())
		RETURNING `+identityColumns,
		email, passwordHash, md.FullName, string(md.Role),
	)
	rec, err := scanIdentity(row)
	if err != nil {
		if IsDuplicate(err) {
			return nil, &domain.ValidationError{Field: "email", Message: "already registered"}
		}
		return nil, domain.Persistence("create identity", err)
	}
	return rec, nil
}

func (r IdentityRepository) GetByEmail(ctx context.Context, email string) (*IdentityRecord, error) {
	return r.getOne(ctx, `SELECT `+identityColumns+` FROM auth_identities WHERE email=$1`, email)
}

func (r IdentityRepository) GetByID(ctx context.Context, id string) (*IdentityRecord, error) {
	return r.getOne(ctx, `SELECT `+identityColumns+` FROM auth_identities WHERE id=$1`, id)
}

func (r IdentityRepository) List(ctx context.Context) ([]IdentityRecord, error) {
	rows, err := r.DB.Pool.Query(ctx, `SELECT `+identityColumns+` FROM auth_identities ORDER BY created_at ASC`)
	if err != nil {
		return nil, domain.Persistence("list identities", err)
	}
	defer rows.Close()
	var items []IdentityRecord
	for rows.Next() {
		rec, err := scanIdentity(rows)
		if err != nil {
			return nil, domain.Persistence("list identities", err)
		}
		items = append(items, *rec)
	}
	return items, domain.Persistence("list identities", rows.Err())
}

func (r IdentityRepository) SetBanned(ctx context.Context, id string, banned bool) error {
	return r.exec(ctx, "ban identity", `UPDATE auth_identities SET banned=$2 WHERE id=$1`, id, banned)
}

func (r IdentityRepository) UpdateMetadata(ctx context.Context, id string, md domain.IdentityMetadata) error {
	return r.exec(ctx, "update identity metadata", `
		UPDATE auth_identities
		SET full_name = COALESCE(NULLIF($2, ''), full_name), role = COALESCE(NULLIF($3, ''), role)
		WHERE id=$1
	`, id, md.FullName, string(md.Role))
}

func (r IdentityRepository) SetPasswordHash(ctx context.Context, id, hash string) error {
	return r.exec(ctx, "set password", `UPDATE auth_identities SET password_hash=$2 WHERE id=$1`, id, hash)
}

func (r IdentityRepository) TouchSignIn(ctx context.Context, id string) error {
	return r.exec(ctx, "record sign in", `UPDATE auth_identities SET last_sign_in_at=now() WHERE id=$1`, id)
}

func (r IdentityRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, "delete identity", `DELETE FROM auth_identities WHERE id=$1`, id)
}

func (r IdentityRepository) getOne(ctx context.Context, query string, arg any) (*IdentityRecord, error) {
	rec, err := scanIdentity(r.DB.Pool.QueryRow(ctx, query, arg))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, domain.Persistence("get identity", err)
	}
	return rec, nil
}

func (r IdentityRepository) exec(ctx context.Context, op, query string, args ...any) error {
	tag, err := r.DB.Pool.Exec(ctx, query, args...)
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return domain.Persistence(op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanIdentity(row interface {
	Scan(dest ...any) error
}) (*IdentityRecord, error) {
	var (
		rec  IdentityRecord
		role string
	)
	if err := row.Scan(&rec.ID, &rec.Email, &rec.Banned, &rec.Metadata.FullName, &role,
		&rec.CreatedAt, &rec.LastSignIn, &rec.PasswordHash); err != nil {
		return nil, err
	}
	rec.Metadata.Role = domain.UserRole(role)
	return &rec, nil
}
