package domain

import "time"

// Enumerations
const (
	RoleBDM        UserRole = "bdm"
	RoleAdmin      UserRole = "admin"
	RoleSuperAdmin UserRole = "super_admin"

	CustomerProspectDealer CustomerType = "Prospect Dealer"
	CustomerProfessional   CustomerType = "Professional"
	CustomerSite           CustomerType = "Site"
	CustomerDealer         CustomerType = "Dealer"

	PriorityHigh   TaskPriority = "High"
	PriorityNormal TaskPriority = "Normal"
	PriorityLow    TaskPriority = "Low"
)

// DefaultDisplayRole is reported for identities that have neither a profile
// role nor a metadata role.
const DefaultDisplayRole = "user"

type UserRole string
type CustomerType string
type TaskPriority string

// Valid reports whether r is one of the three known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleBDM, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsLead reports whether customers of this type move through the pipeline.
func (t CustomerType) IsLead() bool {
	return t == CustomerProspectDealer
}

// Valid reports whether t can be chosen when creating a customer.
// Dealer is only reached by promotion.
func (t CustomerType) Valid() bool {
	switch t {
	case CustomerProspectDealer, CustomerProfessional, CustomerSite:
		return true
	}
	return false
}

// InitialStage is the stage a new customer of this type starts in.
func (t CustomerType) InitialStage() Stage {
	if t.IsLead() {
		return NewStage(StageNewLead)
	}
	return ActiveStage()
}

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

type Profile struct {
	ID        string
	FullName  string
	Phone     string
	Role      UserRole
	UpdatedAt *time.Time
}

type Customer struct {
	ID              string
	Name            string
	Type            CustomerType
	Stage           Stage
	MeetingCount    int
	AssignedTo      *string
	ContactPerson   string
	Phone           string
	Address         string
	City            string
	SiteDescription string
	SitePhotoURL    *string
	ArchitectID     *string
	BuilderID       *string
	DealerID        *string
	Profession      string
	LocationLat     *float64
	LocationLng     *float64
	CreatedBy       *string
	CreatedAt       time.Time
	LastEditedBy    *string
	LastEditedAt    *time.Time
}

// CustomerDetail is a customer with the names of the users who touched it.
type CustomerDetail struct {
	Customer
	CreatedByName    string
	LastEditedByName string
}

// CustomerAssignment is the admin view of who owns a customer.
type CustomerAssignment struct {
	Customer
	AssigneeName string
	AssigneeRole UserRole
}

type Visit struct {
	ID           string
	CustomerID   string
	UserID       *string
	Purpose      string
	Outcome      string
	Notes        string
	PhotoURL     *string
	LocationLat  *float64
	LocationLng  *float64
	LocationName *string
	Timestamp    time.Time
}

// VisitEntry is a visit joined with display names for audit listings.
type VisitEntry struct {
	Visit
	CustomerName string
	UserName     string
}

type Task struct {
	ID          string
	Description string
	DueDate     *time.Time
	Priority    TaskPriority
	IsCompleted bool
	UserID      string
	CustomerID  *string
	CreatedAt   time.Time
}

// Identity is an account in the identity registry.
type Identity struct {
	ID         string
	Email      string
	Banned     bool
	Metadata   IdentityMetadata
	CreatedAt  time.Time
	LastSignIn *time.Time
}

// IdentityMetadata mirrors profile fields on the identity record. It is a
// cache of the profile row and may be stale.
type IdentityMetadata struct {
	FullName string   `json:"full_name,omitempty"`
	Role     UserRole `json:"role,omitempty"`
}

// UserSummary is one row of the admin user listing.
type UserSummary struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	FullName   string     `json:"full_name"`
	Role       string     `json:"role"`
	Banned     bool       `json:"banned"`
	CreatedAt  time.Time  `json:"created_at"`
	LastSignIn *time.Time `json:"last_sign_in_at"`
}
