package domain

import "time"

// Session is a browser login. Its ID is the raw opaque token; only the signed
// cookie wrapping it ever leaves the server. Revocation is a tombstone, never
// a row delete, so a revoked session stays distinguishable from an unknown one.
type Session struct {
	ID             string
	UserID         UserID
	OrganizationID OrganizationID
	ExpiresAt      time.Time
	RevokedAt      *time.Time
	LastSeenAt     time.Time
	CreatedAt      time.Time
}

// Revoked reports whether the session has been tombstoned.
func (s *Session) Revoked() bool { return s.RevokedAt != nil }

// Expired reports whether the session has passed its expiry at the given time.
func (s *Session) Expired(now time.Time) bool { return !s.ExpiresAt.After(now) }
