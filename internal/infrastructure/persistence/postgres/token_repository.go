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
	domerrors "github.com/testpulse-io/testpulse/internal/domain/errors"
)

const (
	createTokenSQL = `INSERT INTO auth_tokens (id, user_id, kind, token_hash, expires_at, consumed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NULL, $6)`
	// FOR UPDATE serializes concurrent redemption attempts on the same row.
	lockTokenSQL = `SELECT id, user_id, expires_at, consumed_at FROM auth_tokens
		WHERE token_hash = $1 AND kind = $2 FOR UPDATE`
	consumeKindForUserSQL = `UPDATE auth_tokens SET consumed_at = NOW()
		WHERE user_id = $1 AND kind = $2 AND consumed_at IS NULL`
	setEmailVerifiedSQL  = `UPDATE users SET email_verified_at = COALESCE(email_verified_at, NOW()), updated_at = NOW() WHERE id = $1`
	setPasswordHashSQL   = `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`
	revokeUserSessionSQL = `UPDATE sessions SET revoked_at = COALESCE(revoked_at, NOW()) WHERE user_id = $1`
)

// TokenRepository persists single-use tokens and performs transactional
// redemption: validity re-check under row lock, effect, consumption and
// bulk invalidation of sibling tokens in one transaction.
type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func (r *TokenRepository) Create(ctx context.Context, token *domain.Token) error {
	_, err := r.pool.Exec(ctx, createTokenSQL,
		token.ID.UUID, token.UserID.UUID, string(token.Kind), token.TokenHash,
		token.ExpiresAt, token.CreatedAt)
	return err
}

func (r *TokenRepository) RedeemEmailVerification(ctx context.Context, tokenHash string) (domain.UserID, error) {
	return r.redeem(ctx, domain.TokenKindEmailVerification, tokenHash, func(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
		_, err := tx.Exec(ctx, setEmailVerifiedSQL, userID)
		return err
	})
}

func (r *TokenRepository) RedeemPasswordReset(ctx context.Context, tokenHash, newPasswordHash string) (domain.UserID, error) {
	return r.redeem(ctx, domain.TokenKindPasswordReset, tokenHash, func(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
		if _, err := tx.Exec(ctx, setPasswordHashSQL, newPasswordHash, userID); err != nil {
			return err
		}
		// A password change invalidates every existing login.
		_, err := tx.Exec(ctx, revokeUserSessionSQL, userID)
		return err
	})
}

func (r *TokenRepository) redeem(ctx context.Context, kind domain.TokenKind, tokenHash string, effect func(context.Context, pgx.Tx, uuid.UUID) error) (domain.UserID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.UserID{}, err
	}
	defer tx.Rollback(ctx)

	var (
		id         uuid.UUID
		userID     uuid.UUID
		expiresAt  time.Time
		consumedAt *time.Time
	)
	err = tx.QueryRow(ctx, lockTokenSQL, tokenHash, string(kind)).Scan(&id, &userID, &expiresAt, &consumedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserID{}, domerrors.ErrTokenInvalid
		}
		return domain.UserID{}, err
	}
	if !expiresAt.After(time.Now()) {
		return domain.UserID{}, domerrors.ErrTokenExpired
	}
	if consumedAt != nil {
		return domain.UserID{}, domerrors.ErrTokenConsumed
	}
	if err := effect(ctx, tx, userID); err != nil {
		return domain.UserID{}, err
	}
	// Consumes the redeemed token and force-consumes every other pending
	// token of the same kind for the user: older links cannot be replayed.
	if _, err := tx.Exec(ctx, consumeKindForUserSQL, userID, string(kind)); err != nil {
		return domain.UserID{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.UserID{}, err
	}
	return domain.NewUserID(userID), nil
}

var _ ports.TokenStore = (*TokenRepository)(nil)
