package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrganizationID is a value object for organization identity.
type OrganizationID struct{ uuid.UUID }

// NewOrganizationID creates a new OrganizationID from uuid.
func NewOrganizationID(id uuid.UUID) OrganizationID { return OrganizationID{UUID: id} }

// String returns the canonical string form.
func (o OrganizationID) String() string { return o.UUID.String() }

// IsZero reports whether the id is unset.
func (o OrganizationID) IsZero() bool { return o.UUID == uuid.UUID{} }

// Organization scopes projects, runs and API keys. Slug is unique.
type Organization struct {
	ID        OrganizationID
	Name      string
	Slug      string
	CreatedAt time.Time
}

// Membership roles.
const (
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
	RoleViewer = "VIEWER"
)

// Membership links a user to an organization with a role. There is at most
// one membership per (organization, user).
type Membership struct {
	OrganizationID OrganizationID
	UserID         UserID
	Role           string
	CreatedAt      time.Time
}
