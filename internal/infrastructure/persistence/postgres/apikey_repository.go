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
	getAPIKeyByPrefixSQL = `SELECT id, name, prefix, secret_hash, organization_id, user_id, revoked_at, expires_at, last_used_at, created_at
		FROM api_keys WHERE prefix = $1`
	touchAPIKeySQL = `UPDATE api_keys SET last_used_at = $1 WHERE id = $2`
)

// APIKeyRepository reads provisioned API keys. Keys are created out of band;
// the auth core only authenticates against them.
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

func (r *APIKeyRepository) GetByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error) {
	var (
		key    domain.APIKey
		id     uuid.UUID
		orgID  uuid.UUID
		userID *uuid.UUID
	)
	err := r.pool.QueryRow(ctx, getAPIKeyByPrefixSQL, prefix).Scan(
		&id, &key.Name, &key.Prefix, &key.SecretHash, &orgID, &userID,
		&key.RevokedAt, &key.ExpiresAt, &key.LastUsedAt, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	key.ID = domain.NewAPIKeyID(id)
	key.OrgID = domain.NewOrganizationID(orgID)
	if userID != nil {
		uid := domain.NewUserID(*userID)
		key.UserID = &uid
	}
	return &key, nil
}

func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, keyID domain.APIKeyID, at time.Time) error {
	_, err := r.pool.Exec(ctx, touchAPIKeySQL, at, keyID.UUID)
	return err
}

var _ ports.APIKeyStore = (*APIKeyRepository)(nil)
