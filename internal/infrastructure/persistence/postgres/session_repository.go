package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/testpulse-io/testpulse/internal/application/ports"
	"github.com/testpulse-io/testpulse/internal/domain"
)

const (
	createSessionSQL = `INSERT INTO sessions (id, user_id, organization_id, expires_at, revoked_at, last_seen_at, created_at)
		VALUES ($1, $2, $3, $4, NULL, $5, $6)`
	getSessionSQL = `SELECT id, user_id, organization_id, expires_at, revoked_at, last_seen_at, created_at
		FROM sessions WHERE id = $1`
	touchSessionSQL     = `UPDATE sessions SET last_seen_at = $1 WHERE id = $2`
	revokeSessionSQL    = `UPDATE sessions SET revoked_at = COALESCE(revoked_at, NOW()) WHERE id = $1`
	revokeAllForUserSQL = `UPDATE sessions SET revoked_at = COALESCE(revoked_at, NOW()) WHERE user_id = $1`
)

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	_, err := r.pool.Exec(ctx, createSessionSQL,
		session.ID, session.UserID.UUID, session.OrganizationID.UUID,
		session.ExpiresAt, session.LastSeenAt, session.CreatedAt)
	return err
}

func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	var (
		session   domain.Session
		userID    uuid.UUID
		orgID     uuid.UUID
		revokedAt *time.Time
	)
	err := r.pool.QueryRow(ctx, getSessionSQL, sessionID).Scan(
		&session.ID, &userID, &orgID, &session.ExpiresAt, &revokedAt, &session.LastSeenAt, &session.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	session.UserID = domain.NewUserID(userID)
	session.OrganizationID = domain.NewOrganizationID(orgID)
	session.RevokedAt = revokedAt
	return &session, nil
}

func (r *SessionRepository) Touch(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.pool.Exec(ctx, touchSessionSQL, at, sessionID)
	return err
}

func (r *SessionRepository) Revoke(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx, revokeSessionSQL, sessionID)
	return err
}

func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID domain.UserID) error {
	_, err := r.pool.Exec(ctx, revokeAllForUserSQL, userID.UUID)
	return err
}

var _ ports.SessionStore = (*SessionRepository)(nil)
