package ports

import (
	"context"
	"io"
	"time"

	"crm-backend/internal/domain"
)

// HealthChecker is used to probe dependencies.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// CustomerFilter narrows a customer listing.
type CustomerFilter struct {
	Type   domain.CustomerType
	Bucket domain.PipelineStage
}

// CustomerDetails are the fields editable after creation.
type CustomerDetails struct {
	Name          string
	ContactPerson string
	Phone         string
	Address       string
	City          string
}

type CustomerStore interface {
	Create(ctx context.Context, c domain.Customer) (*domain.Customer, error)
	Get(ctx context.Context, id string) (*domain.Customer, error)
	GetDetail(ctx context.Context, id string) (*domain.CustomerDetail, error)
	ListAssignedTo(ctx context.Context, userID string, f CustomerFilter) ([]domain.Customer, error)
	ListAssignments(ctx context.Context) ([]domain.CustomerAssignment, error)
	UpdateDetails(ctx context.Context, id string, d CustomerDetails, editorID string) (*domain.Customer, error)
	// UpdateStage writes stage and, when promoteProspect is set, turns a
	// Prospect Dealer into a Dealer in the same statement.
	UpdateStage(ctx context.Context, id string, stage domain.Stage, promoteProspect bool) (*domain.Customer, error)
	AdjustMeetingCount(ctx context.Context, id string, delta int) (*domain.Customer, error)
	SetAssignee(ctx context.Context, id string, userID *string) error
	UnassignAllFrom(ctx context.Context, userID string) (int64, error)
	DetachAuthor(ctx context.Context, userID string) (int64, error)
}

// VisitFilter narrows a visit listing. Zero values mean no constraint.
type VisitFilter struct {
	CustomerID string
	UserID     string
	Start      *time.Time
	End        *time.Time
}

type VisitStore interface {
	Create(ctx context.Context, v domain.Visit) (*domain.Visit, error)
	List(ctx context.Context, f VisitFilter) ([]domain.VisitEntry, error)
	DetachUser(ctx context.Context, userID string) (int64, error)
}

type TaskStore interface {
	Create(ctx context.Context, t domain.Task) (*domain.Task, error)
	ListOpenDueOn(ctx context.Context, userID string, day time.Time) ([]domain.Task, error)
	ListPending(ctx context.Context, userID string) ([]domain.Task, error)
	// CompleteForUser marks the task done only when it belongs to userID.
	CompleteForUser(ctx context.Context, id, userID string) (bool, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type ProfileStore interface {
	Get(ctx context.Context, id string) (*domain.Profile, error)
	List(ctx context.Context) ([]domain.Profile, error)
	Insert(ctx context.Context, p domain.Profile) error
	// Update writes name, phone and role; ErrNotFound when the row is missing.
	Update(ctx context.Context, p domain.Profile) error
	UpdateContact(ctx context.Context, id, fullName, phone string) (*domain.Profile, error)
	UpdateRole(ctx context.Context, id string, role domain.UserRole) error
	Delete(ctx context.Context, id string) error
}

// StageCount is the number of customers of one assignee at one stored stage.
type StageCount struct {
	AssigneeID *string
	Stage      string
	Count      int
}

type StatsStore interface {
	CountCustomers(ctx context.Context, createdSince *time.Time) (int, error)
	StageCounts(ctx context.Context) ([]StageCount, error)
	CountVisits(ctx context.Context) (int, error)
	DailyVisitCounts(ctx context.Context, since time.Time) (map[string]int, error)
	VisitCountsByUser(ctx context.Context) (map[string]int, error)
	PendingTasksByUser(ctx context.Context) (map[string]int, error)
}

// NewIdentity is the input for IdentityRegistry.Create.
type NewIdentity struct {
	Email    string
	Password string
	Metadata domain.IdentityMetadata
}

// IdentityRegistry is the administrative API of the auth provider.
type IdentityRegistry interface {
	List(ctx context.Context) ([]domain.Identity, error)
	Create(ctx context.Context, in NewIdentity) (*domain.Identity, error)
	SetBanned(ctx context.Context, id string, banned bool) error
	UpdateMetadata(ctx context.Context, id string, md domain.IdentityMetadata) error
	SetPassword(ctx context.Context, id, password string) error
	Delete(ctx context.Context, id string) error
}

// ObjectStore keeps uploaded photos and returns their public URL.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

// PlaceResolver turns coordinates into a human-readable place name.
type PlaceResolver interface {
	Resolve(ctx context.Context, lat, lng float64) (string, error)
}
