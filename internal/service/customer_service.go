package service

import (
	"context"
	"strings"
	"time"

	"crm-backend/internal/domain"
	"crm-backend/internal/observability"
	"crm-backend/internal/ports"
	"crm-backend/internal/storage"

	"go.uber.org/zap"
)

const (
	StepUploadSitePhoto = "upload_site_photo"
	StepInsertCustomer  = "insert_customer"
)

type CreateCustomerInput struct {
	Name            string
	Type            domain.CustomerType
	ContactPerson   string
	Phone           string
	Address         string
	City            string
	SiteDescription string
	Profession      string
	ArchitectID     string
	BuilderID       string
	DealerID        string
	Latitude        *float64
	Longitude       *float64
	SitePhoto       *Upload
}

// CustomerView is a customer detail with its position in the pipeline.
// Progress is -1 for customers outside the pipeline.
type CustomerView struct {
	domain.CustomerDetail
	Progress int
}

type CustomerService struct {
	Customers ports.CustomerStore
	Visits    ports.VisitStore
	Photos    ports.ObjectStore
	Gate      AccessGate
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Now       func() time.Time
}

// Create adds a customer owned by the caller.
func (s CustomerService) Create(ctx context.Context, in CreateCustomerInput) (*domain.Customer, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, domain.Required("name")
	}
	if in.Type == "" {
		return nil, domain.Required("type")
	}
	if !in.Type.Valid() {
		return nil, &domain.ValidationError{Field: "type", Message: "must be Prospect Dealer, Professional or Site"}
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return nil, &domain.ValidationError{Field: "location", Message: "latitude and longitude must be sent together"}
	}

	c := domain.Customer{
		Name:            in.Name,
		Type:            in.Type,
		Stage:           in.Type.InitialStage(),
		MeetingCount:    0,
		AssignedTo:      &user.ID,
		CreatedBy:       &user.ID,
		ContactPerson:   strings.TrimSpace(in.ContactPerson),
		Phone:           strings.TrimSpace(in.Phone),
		Address:         strings.TrimSpace(in.Address),
		City:            strings.TrimSpace(in.City),
		SiteDescription: strings.TrimSpace(in.SiteDescription),
		Profession:      strings.TrimSpace(in.Profession),
		ArchitectID:     optional(in.ArchitectID),
		BuilderID:       optional(in.BuilderID),
		DealerID:        optional(in.DealerID),
		LocationLat:     in.Latitude,
		LocationLng:     in.Longitude,
	}

	var steps []Step
	if in.SitePhoto != nil && s.Photos != nil {
		now := s.now()
		steps = append(steps, Step{Name: StepUploadSitePhoto, Policy: BestEffort, Run: func(ctx context.Context, _ StepReport) error {
			url, err := s.Photos.Put(ctx, storage.PhotoKey(user.ID, in.SitePhoto.Filename, now), in.SitePhoto.ContentType, in.SitePhoto.Body, in.SitePhoto.Size)
			if err != nil {
				return err
			}
			c.SitePhotoURL = &url
			return nil
		}})
	}
	var created *domain.Customer
	steps = append(steps, Step{Name: StepInsertCustomer, Policy: Fatal, Run: func(ctx context.Context, _ StepReport) error {
		out, err := s.Customers.Create(ctx, c)
		created = out
		return err
	}})

	if _, err := (stepRunner{Workflow: "create_customer", Logger: s.Logger, Metrics: s.Metrics}).run(ctx, steps); err != nil {
		return nil, err
	}
	return created, nil
}

// Update changes the contact fields and stamps the editor.
func (s CustomerService) Update(ctx context.Context, id string, d ports.CustomerDetails) (*domain.Customer, error) {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return nil, domain.Required("name")
	}
	if _, err := authorizeCustomer(ctx, s.Gate, s.Customers, id); err != nil {
		return nil, err
	}
	user, _ := currentUser(ctx)
	return s.Customers.UpdateDetails(ctx, id, d, user.ID)
}

func (s CustomerService) Get(ctx context.Context, id string) (*CustomerView, error) {
	if _, err := authorizeCustomer(ctx, s.Gate, s.Customers, id); err != nil {
		return nil, err
	}
	detail, err := s.Customers.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CustomerView{CustomerDetail: *detail, Progress: detail.Stage.Index()}, nil
}

// ListMine returns the caller's customers ordered by name.
func (s CustomerService) ListMine(ctx context.Context, f ports.CustomerFilter) ([]domain.Customer, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.Customers.ListAssignedTo(ctx, user.ID, f)
}

// ListVisits lists a customer's visits, newest first.
func (s CustomerService) ListVisits(ctx context.Context, id string) ([]domain.VisitEntry, error) {
	if _, err := authorizeCustomer(ctx, s.Gate, s.Customers, id); err != nil {
		return nil, err
	}
	return s.Visits.List(ctx, ports.VisitFilter{CustomerID: id})
}

func (s CustomerService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
