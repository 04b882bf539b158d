package domain

import (
	"time"

	"github.com/google/uuid"
)

// APIKeyID is a value object for API key identity.
type APIKeyID struct{ uuid.UUID }

// NewAPIKeyID creates a new APIKeyID from uuid.
func NewAPIKeyID(id uuid.UUID) APIKeyID { return APIKeyID{UUID: id} }

// String returns the canonical string form.
func (k APIKeyID) String() string { return k.UUID.String() }

// APIKey is an org-scoped machine credential presented as
// "<prefix>.<secret>". The prefix is public and indexed; only the sha256 of
// the secret is stored. UserID is set when the key acts on behalf of a
// specific user rather than the whole organization.
type APIKey struct {
	ID         APIKeyID
	Name       string
	Prefix     string
	SecretHash string
	OrgID      OrganizationID
	UserID     *UserID
	RevokedAt  *time.Time
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// Revoked reports whether the key has been revoked.
func (k *APIKey) Revoked() bool { return k.RevokedAt != nil }

// Expired reports whether the key has an expiry and it has passed.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}
