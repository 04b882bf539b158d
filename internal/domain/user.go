package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserID is a value object for user identity.
type UserID struct{ uuid.UUID }

// NewUserID creates a new UserID from uuid.
func NewUserID(id uuid.UUID) UserID { return UserID{UUID: id} }

// String returns the canonical string form.
func (u UserID) String() string { return u.UUID.String() }

// IsZero reports whether the id is unset.
func (u UserID) IsZero() bool { return u.UUID == uuid.UUID{} }

// User is an account holder. Email is stored case-normalized (lowercase,
// trimmed). PasswordHash is empty for OAuth-only users. GitHubID is set once
// the account is linked to a GitHub identity and is unique across users.
type User struct {
	ID              UserID
	Email           string
	PasswordHash    string
	Name            string
	Nickname        string
	GitHubID        *int64
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EmailVerified reports whether the user's email has been verified.
func (u *User) EmailVerified() bool { return u.EmailVerifiedAt != nil }
