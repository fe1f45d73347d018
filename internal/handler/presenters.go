package handler

import (
	"time"

	"crm-backend/internal/domain"
	"crm-backend/internal/service"
)

type customerPayload struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Type             string     `json:"type"`
	PipelineStage    string     `json:"pipeline_stage"`
	MeetingCount     int        `json:"meeting_count"`
	AssignedTo       *string    `json:"assigned_to"`
	ContactPerson    string     `json:"contact_person"`
	Phone            string     `json:"phone"`
	Address          string     `json:"address"`
	City             string     `json:"city"`
	SiteDescription  string     `json:"site_description,omitempty"`
	SitePhotoURL     *string    `json:"site_photo_url"`
	ArchitectID      *string    `json:"architect_id"`
	BuilderID        *string    `json:"builder_id"`
	DealerID         *string    `json:"dealer_id"`
	Profession       string     `json:"profession,omitempty"`
	LocationLat      *float64   `json:"location_lat"`
	LocationLng      *float64   `json:"location_lng"`
	CreatedBy        *string    `json:"created_by"`
	CreatedAt        time.Time  `json:"created_at"`
	LastEditedBy     *string    `json:"last_edited_by"`
	LastEditedAt     *time.Time `json:"last_edited_at"`
	CreatedByName    string     `json:"created_by_name,omitempty"`
	LastEditedByName string     `json:"last_edited_by_name,omitempty"`
	Progress         *int       `json:"progress,omitempty"`
	AssigneeName     string     `json:"assignee_name,omitempty"`
	AssigneeRole     string     `json:"assignee_role,omitempty"`
}

func toCustomerPayload(c domain.Customer) customerPayload {
	return customerPayload{
		ID:              c.ID,
		Name:            c.Name,
		Type:            string(c.Type),
		PipelineStage:   c.Stage.String(),
		MeetingCount:    c.MeetingCount,
		AssignedTo:      c.AssignedTo,
		ContactPerson:   c.ContactPerson,
		Phone:           c.Phone,
		Address:         c.Address,
		City:            c.City,
		SiteDescription: c.SiteDescription,
		SitePhotoURL:    c.SitePhotoURL,
		ArchitectID:     c.ArchitectID,
		BuilderID:       c.BuilderID,
		DealerID:        c.DealerID,
		Profession:      c.Profession,
		LocationLat:     c.LocationLat,
		LocationLng:     c.LocationLng,
		CreatedBy:       c.CreatedBy,
		CreatedAt:       c.CreatedAt,
		LastEditedBy:    c.LastEditedBy,
		LastEditedAt:    c.LastEditedAt,
	}
}

func toCustomerList(items []domain.Customer) []customerPayload {
	out := make([]customerPayload, 0, len(items))
	for _, c := range items {
		out = append(out, toCustomerPayload(c))
	}
	return out
}

func toCustomerView(v *service.CustomerView) customerPayload {
	p := toCustomerPayload(v.Customer)
	p.CreatedByName = v.CreatedByName
	p.LastEditedByName = v.LastEditedByName
	progress := v.Progress
	p.Progress = &progress
	return p
}

func toAssignmentList(items []domain.CustomerAssignment) []customerPayload {
	out := make([]customerPayload, 0, len(items))
	for _, a := range items {
		p := toCustomerPayload(a.Customer)
		p.AssigneeName = a.AssigneeName
		p.AssigneeRole = string(a.AssigneeRole)
		out = append(out, p)
	}
	return out
}

type visitPayload struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customer_id"`
	UserID       *string   `json:"user_id"`
	Purpose      string    `json:"purpose"`
	Outcome      string    `json:"outcome"`
	Notes        string    `json:"notes"`
	PhotoURL     *string   `json:"photo_url"`
	LocationLat  *float64  `json:"location_lat"`
	LocationLng  *float64  `json:"location_lng"`
	LocationName *string   `json:"location_name"`
	Timestamp    time.Time `json:"timestamp"`
	CustomerName string    `json:"customer_name,omitempty"`
	UserName     string    `json:"user_name,omitempty"`
}

func toVisitPayload(v domain.Visit) visitPayload {
	return visitPayload{
		ID:           v.ID,
		CustomerID:   v.CustomerID,
		UserID:       v.UserID,
		Purpose:      v.Purpose,
		Outcome:      v.Outcome,
		Notes:        v.Notes,
		PhotoURL:     v.PhotoURL,
		LocationLat:  v.LocationLat,
		LocationLng:  v.LocationLng,
		LocationName: v.LocationName,
		Timestamp:    v.Timestamp,
	}
}

func toVisitEntries(items []domain.VisitEntry) []visitPayload {
	out := make([]visitPayload, 0, len(items))
	for _, e := range items {
		p := toVisitPayload(e.Visit)
		p.CustomerName = e.CustomerName
		p.UserName = e.UserName
		out = append(out, p)
	}
	return out
}

type taskPayload struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	DueDate     *string    `json:"due_date"`
	Priority    string     `json:"priority"`
	IsCompleted bool       `json:"is_completed"`
	UserID      string     `json:"user_id"`
	CustomerID  *string    `json:"customer_id"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

func toTaskPayload(t domain.Task) taskPayload {
	p := taskPayload{
		ID:          t.ID,
		Description: t.Description,
		Priority:    string(t.Priority),
		IsCompleted: t.IsCompleted,
		UserID:      t.UserID,
		CustomerID:  t.CustomerID,
	}
	if t.DueDate != nil {
		d := t.DueDate.Format(dateLayout)
		p.DueDate = &d
	}
	if !t.CreatedAt.IsZero() {
		created := t.CreatedAt
		p.CreatedAt = &created
	}
	return p
}

func toTaskList(items []domain.Task) []taskPayload {
	out := make([]taskPayload, 0, len(items))
	for _, t := range items {
		out = append(out, toTaskPayload(t))
	}
	return out
}

type profilePayload struct {
	ID        string     `json:"id"`
	FullName  string     `json:"full_name"`
	Phone     string     `json:"phone"`
	Role      string     `json:"role"`
	Email     string     `json:"email,omitempty"`
	UpdatedAt *time.Time `json:"updated_at"`
}

func toProfilePayload(p domain.Profile, email string) profilePayload {
	return profilePayload{
		ID:        p.ID,
		FullName:  p.FullName,
		Phone:     p.Phone,
		Role:      string(p.Role),
		Email:     email,
		UpdatedAt: p.UpdatedAt,
	}
}
