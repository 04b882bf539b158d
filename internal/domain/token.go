package domain

import (
	"time"

	"github.com/google/uuid"
)

// TokenID is a value object for single-use token identity.
type TokenID struct{ uuid.UUID }

// NewTokenID creates a new TokenID from uuid.
func NewTokenID(id uuid.UUID) TokenID { return TokenID{UUID: id} }

// TokenKind discriminates the single-use token families.
type TokenKind string

const (
	TokenKindEmailVerification TokenKind = "email_verification"
	TokenKindPasswordReset     TokenKind = "password_reset"
)

// Token is a single-use, expiring credential sent out in an email link. Only
// the sha256 of the raw value is stored. ConsumedAt is set exactly once;
// redeeming any token of a kind force-consumes the user's other pending
// tokens of that kind.
type Token struct {
	ID         TokenID
	UserID     UserID
	Kind       TokenKind
	TokenHash  string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}
