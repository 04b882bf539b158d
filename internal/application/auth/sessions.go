package auth

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/testpulse-io/testpulse/internal/application/ports"
	"github.com/testpulse-io/testpulse/internal/domain"
	domerrors "github.com/testpulse-io/testpulse/internal/domain/errors"
	"github.com/testpulse-io/testpulse/internal/infrastructure/security"
)

// DefaultSessionTTL is the session lifetime when none is configured.
const DefaultSessionTTL = 30 * 24 * time.Hour

const touchTimeout = 5 * time.Second

// SessionManager creates, validates and revokes login sessions. The session
// id is an opaque token stored raw server-side; callers wrap it in a signed
// cookie.
type SessionManager struct {
	sessions ports.SessionStore
	ttl      time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewSessionManager builds the manager. ttl <= 0 falls back to 30 days.
func NewSessionManager(sessions ports.SessionStore, ttl time.Duration, log zerolog.Logger) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{sessions: sessions, ttl: ttl, log: log, now: time.Now}
}

// TTL returns the configured session lifetime.
func (m *SessionManager) TTL() time.Duration { return m.ttl }

// Create persists a new session for the user in the org.
func (m *SessionManager) Create(ctx context.Context, userID domain.UserID, orgID domain.OrganizationID) (*domain.Session, error) {
	id, err := security.GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}
	now := m.now()
	session := &domain.Session{
		ID:             id,
		UserID:         userID,
		OrganizationID: orgID,
		ExpiresAt:      now.Add(m.ttl),
		LastSeenAt:     now,
		CreatedAt:      now,
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Validate checks a presented session id. Any error means the caller must
// clear the cookie: ErrSessionNotFound, ErrSessionRevoked or
// ErrSessionExpired. A valid session gets a fire-and-forget last_seen_at
// touch; a failed touch is logged, never fatal.
func (m *SessionManager) Validate(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domerrors.ErrSessionNotFound
	}
	if session.Revoked() {
		return nil, domerrors.ErrSessionRevoked
	}
	if session.Expired(m.now()) {
		return nil, domerrors.ErrSessionExpired
	}
	go func(id string) {
		touchCtx, cancel := context.WithTimeout(context.Background(), touchTimeout)
		defer cancel()
		if err := m.sessions.Touch(touchCtx, id, time.Now()); err != nil {
			m.log.Warn().Err(err).Msg("session last_seen touch failed")
		}
	}(session.ID)
	return session, nil
}

// Revoke marks one session revoked (logout).
func (m *SessionManager) Revoke(ctx context.Context, sessionID string) error {
	return m.sessions.Revoke(ctx, sessionID)
}

// RevokeAllForUser revokes every session of the user (password reset).
func (m *SessionManager) RevokeAllForUser(ctx context.Context, userID domain.UserID) error {
	return m.sessions.RevokeAllForUser(ctx, userID)
}
