package repository

import (
	"context"

	"crm-backend/internal/db"
	"crm-backend/internal/domain"
	"crm-backend/internal/ports"

	"github.com/jackc/pgx/v5"
)

type CustomerRepository struct {
	DB *db.Postgres
}

const customerColumns = `
	c.id::text, c.name, c.type, c.stage, c.meeting_count, c.assigned_to::text,
	c.contact_person, c.phone, c.address, c.city, c.site_description, c.site_photo_url,
	c.architect_id::text, c.builder_id::text, c.dealer_id::text, c.profession,
	c.location_lat, c.location_lng, c.created_by::text, c.created_at,
	c.last_edited_by::text, c.last_edited_at`

func (r CustomerRepository) Create(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		INSERT INTO customers AS c (
			name, type, stage, meeting_count, assigned_to, contact_person, phone, address, city,
			site_description, site_photo_url, architect_id, builder_id, dealer_id, profession,
			location_lat, location_lng, created_by, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18, now())
		RETURNING `+customerColumns,
		c.Name, string(c.Type), c.Stage.String(), c.MeetingCount, c.AssignedTo, c.ContactPerson, c.Phone,
		c.Address, c.City, c.SiteDescription, c.SitePhotoURL, c.ArchitectID, c.BuilderID, c.DealerID,
		c.Profession, c.LocationLat, c.LocationLng, c.CreatedBy,
	)
	out, err := scanCustomer(row)
	return out, domain.Persistence("create customer", err)
}

func (r CustomerRepository) Get(ctx context.Context, id string) (*domain.Customer, error) {
	row := r.DB.Pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers c WHERE c.id = $1`, id)
	out, err := scanCustomer(row)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, domain.Persistence("get customer", err)
	}
	return out, nil
}

func (r CustomerRepository) GetDetail(ctx context.Context, id string) (*domain.CustomerDetail, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		SELECT `+customerColumns+`, COALESCE(cb.full_name, ''), COALESCE(eb.full_name, '')
		FROM customers c
		LEFT JOIN profiles cb ON cb.id = c.created_by
		LEFT JOIN profiles eb ON eb.id = c.last_edited_by
		WHERE c.id = $1
	`, id)
	var d domain.CustomerDetail
	var stage, typ string
	err := row.Scan(append(customerDest(&d.Customer, &typ, &stage), &d.CreatedByName, &d.LastEditedByName)...)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, domain.Persistence("get customer", err)
	}
	d.Type = domain.CustomerType(typ)
	d.Stage = domain.ParseStage(stage)
	return &d, nil
}

func (r CustomerRepository) ListAssignedTo(ctx context.Context, userID string, f ports.CustomerFilter) ([]domain.Customer, error) {
	var typ *string
	if f.Type != "" {
		t := string(f.Type)
		typ = &t
	}
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT `+customerColumns+`
		FROM customers c
		WHERE c.assigned_to = $1 AND ($2::text IS NULL OR c.type = $2)
		ORDER BY c.name ASC
	`, userID, typ)
	if err != nil {
		return nil, domain.Persistence("list customers", err)
	}
	defer rows.Close()
	var items []domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, domain.Persistence("list customers", err)
		}
		if f.Bucket != "" && !c.Stage.InBucket(f.Bucket) {
			continue
		}
		items = append(items, *c)
	}
	return items, domain.Persistence("list customers", rows.Err())
}

func (r CustomerRepository) ListAssignments(ctx context.Context) ([]domain.CustomerAssignment, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT `+customerColumns+`, COALESCE(p.full_name, ''), COALESCE(p.role, '')
		FROM customers c
		LEFT JOIN profiles p ON p.id = c.assigned_to
		ORDER BY c.name ASC
	`)
	if err != nil {
		return nil, domain.Persistence("list assignments", err)
	}
	defer rows.Close()
	var items []domain.CustomerAssignment
	for rows.Next() {
		var a domain.CustomerAssignment
		var stage, typ, role string
		if err := rows.Scan(append(customerDest(&a.Customer, &typ, &stage), &a.AssigneeName, &role)...); err != nil {
			return nil, domain.Persistence("list assignments", err)
		}
		a.Type = domain.CustomerType(typ)
		a.Stage = domain.ParseStage(stage)
		a.AssigneeRole = domain.UserRole(role)
		items = append(items, a)
	}
	return items, domain.Persistence("list assignments", rows.Err())
}

func (r CustomerRepository) UpdateDetails(ctx context.Context, id string, d ports.CustomerDetails, editorID string) (*domain.Customer, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		UPDATE customers AS c
		SET name=$2, contact_person=$3, phone=$4, address=$5, city=$6, last_edited_by=$7, last_edited_at=now()
		WHERE c.id=$1
		RETURNING `+customerColumns,
		id, d.Name, d.ContactPerson, d.Phone, d.Address, d.City, editorID,
	)
	return r.scanUpdated(row, "update customer")
}

func (r CustomerRepository) UpdateStage(ctx context.Context, id string, stage domain.Stage, promoteProspect bool) (*domain.Customer, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		UPDATE customers AS c
		SET stage=$2,
			type = CASE WHEN $3 AND c.type = $4 THEN $5 ELSE c.type END
		WHERE c.id=$1
		RETURNING `+customerColumns,
		id, stage.String(), promoteProspect, string(domain.CustomerProspectDealer), string(domain.CustomerDealer),
	)
	return r.scanUpdated(row, "update stage")
}

func (r CustomerRepository) AdjustMeetingCount(ctx context.Context, id string, delta int) (*domain.Customer, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		UPDATE customers AS c
		SET meeting_count = GREATEST(0, c.meeting_count + $2)
		WHERE c.id=$1
		RETURNING `+customerColumns,
		id, delta,
	)
	return r.scanUpdated(row, "update meeting count")
}

func (r CustomerRepository) SetAssignee(ctx context.Context, id string, userID *string) error {
	tag, err := r.DB.Pool.Exec(ctx, `UPDATE customers SET assigned_to=$2 WHERE id=$1`, id, userID)
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return domain.Persistence("assign customer", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r CustomerRepository) UnassignAllFrom(ctx context.Context, userID string) (int64, error) {
	tag, err := r.DB.Pool.Exec(ctx, `UPDATE customers SET assigned_to=NULL WHERE assigned_to=$1`, userID)
	if err != nil {
		return 0, domain.Persistence("unassign customers", err)
	}
	return tag.RowsAffected(), nil
}

// DetachAuthor clears created_by and last_edited_by where they point at
// userID. Both columns reference profiles.
func (r CustomerRepository) DetachAuthor(ctx context.Context, userID string) (int64, error) {
	tag, err := r.DB.Pool.Exec(ctx, `
		UPDATE customers
		SET created_by = CASE WHEN created_by = $1 THEN NULL ELSE created_by END,
		    last_edited_by = CASE WHEN last_edited_by = $1 THEN NULL ELSE last_edited_by END
		WHERE created_by = $1 OR last_edited_by = $1`, userID)
	if err != nil {
		return 0, domain.Persistence("detach customer authors", err)
	}
	return tag.RowsAffected(), nil
}

func (r CustomerRepository) scanUpdated(row pgx.Row, op string) (*domain.Customer, error) {
	out, err := scanCustomer(row)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, domain.Persistence(op, err)
	}
	return out, nil
}

func customerDest(c *domain.Customer, typ, stage *string) []any {
	return []any{
		&c.ID, &c.Name, typ, stage, &c.MeetingCount, &c.AssignedTo,
		&c.ContactPerson, &c.Phone, &c.Address, &c.City, &c.SiteDescription, &c.SitePhotoURL,
		&c.ArchitectID, &c.BuilderID, &c.DealerID, &c.Profession,
		&c.LocationLat, &c.LocationLng, &c.CreatedBy, &c.CreatedAt,
		&c.LastEditedBy, &c.LastEditedAt,
	}
}

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var c domain.Customer
	var typ, stage string
	if err := row.Scan(customerDest(&c, &typ, &stage)...); err != nil {
		return nil, err
	}
	c.Type = domain.CustomerType(typ)
	c.Stage = domain.ParseStage(stage)
	return &c, nil
}
