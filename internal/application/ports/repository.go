package ports

import (
	"context"
	"time"

	"github.com/testpulse-io/testpulse/internal/domain"
)

// UserRepository defines persistence for users.
type UserRepository interface {
	// Create persists a new user. Returns domerrors.ErrUserExists when the
	// email is already taken.
	Create(ctx context.Context, user *domain.User) error
	// GetByEmail returns the user for a case-normalized email, or nil.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, userID domain.UserID) (*domain.User, error)
	// ResolveGitHubUser runs the federation account-resolution step in one
	// transaction: find by GitHub id; else find by email and link the id;
	// else create a new user from the profile.
	ResolveGitHubUser(ctx context.Context, githubID int64, email, name, nickname string) (*domain.User, error)
}

// OrganizationRepository defines persistence for organizations and memberships.
type OrganizationRepository interface {
	// CreateWithAdmin creates the organization and an ADMIN membership for
	// userID in one transaction. Returns domerrors.ErrSlugTaken on slug
	// collision so the caller can retry with a suffixed slug.
	CreateWithAdmin(ctx context.Context, org *domain.Organization, userID domain.UserID) error
	GetByID(ctx context.Context, orgID domain.OrganizationID) (*domain.Organization, error)
	// FirstMembership returns the user's oldest membership, or nil.
	FirstMembership(ctx context.Context, userID domain.UserID) (*domain.Membership, error)
}

// SessionStore defines persistence for login sessions.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error
	// Get returns the session row, or nil when absent.
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	// Touch updates last_seen_at. Best-effort; callers fire and forget.
	Touch(ctx context.Context, sessionID string, at time.Time) error
	Revoke(ctx context.Context, sessionID string) error
	RevokeAllForUser(ctx context.Context, userID domain.UserID) error
}

// APIKeyStore defines read access to provisioned API keys.
type APIKeyStore interface {
	// GetByPrefix returns the key row for a public prefix, or nil.
	GetByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error)
	// TouchLastUsed updates last_used_at. Best-effort; callers fire and forget.
	TouchLastUsed(ctx context.Context, keyID domain.APIKeyID, at time.Time) error
}

// TokenStore defines persistence for single-use tokens. Redemption is
// transactional: validity is re-checked under lock, the token's effect is
// applied, the token is consumed, every other still-pending token of the same
// kind for the same user is force-consumed, and (for password reset) all of
// the user's sessions are revoked — in a single transaction.
type TokenStore interface {
	Create(ctx context.Context, token *domain.Token) error
	// RedeemEmailVerification marks the owning user's email verified.
	// Returns domerrors.ErrTokenInvalid, ErrTokenExpired or ErrTokenConsumed.
	RedeemEmailVerification(ctx context.Context, tokenHash string) (domain.UserID, error)
	// RedeemPasswordReset sets the owning user's password hash and revokes
	// all their sessions. Same error contract as RedeemEmailVerification.
	RedeemPasswordReset(ctx context.Context, tokenHash, newPasswordHash string) (domain.UserID, error)
}
