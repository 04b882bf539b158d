package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/testpulse-io/testpulse/internal/application/ports"
	"github.com/testpulse-io/testpulse/internal/domain"
	domerrors "github.com/testpulse-io/testpulse/internal/domain/errors"
)

const (
	createOrganizationSQL = `INSERT INTO organizations (id, name, slug, created_at) VALUES ($1, $2, $3, $4)`
	createMembershipSQL   = `INSERT INTO memberships (organization_id, user_id, role, created_at) VALUES ($1, $2, $3, $4)`
	getOrganizationSQL    = `SELECT id, name, slug, created_at FROM organizations WHERE id = $1`
	firstMembershipSQL    = `SELECT organization_id, user_id, role, created_at FROM memberships
		WHERE user_id = $1 ORDER BY created_at ASC LIMIT 1`
)

type OrganizationRepository struct {
	pool *pgxpool.Pool
}

func NewOrganizationRepository(pool *pgxpool.Pool) *OrganizationRepository {
	return &OrganizationRepository{pool: pool}
}

// CreateWithAdmin inserts org and ADMIN membership in one transaction. A
// slug unique violation maps to ErrSlugTaken so the provisioner can retry.
func (r *OrganizationRepository) CreateWithAdmin(ctx context.Context, org *domain.Organization, userID domain.UserID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, createOrganizationSQL, org.ID.UUID, org.Name, org.Slug, org.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domerrors.ErrSlugTaken
		}
		return err
	}
	if _, err := tx.Exec(ctx, createMembershipSQL, org.ID.UUID, userID.UUID, domain.RoleAdmin, org.CreatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *OrganizationRepository) GetByID(ctx context.Context, orgID domain.OrganizationID) (*domain.Organization, error) {
	var (
		id  uuid.UUID
		org domain.Organization
	)
	err := r.pool.QueryRow(ctx, getOrganizationSQL, orgID.UUID).Scan(&id, &org.Name, &org.Slug, &org.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	org.ID = domain.NewOrganizationID(id)
	return &org, nil
}

func (r *OrganizationRepository) FirstMembership(ctx context.Context, userID domain.UserID) (*domain.Membership, error) {
	var (
		orgID     uuid.UUID
		uID       uuid.UUID
		role      string
		createdAt time.Time
	)
	err := r.pool.QueryRow(ctx, firstMembershipSQL, userID.UUID).Scan(&orgID, &uID, &role, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.Membership{
		OrganizationID: domain.NewOrganizationID(orgID),
		UserID:         domain.NewUserID(uID),
		Role:           role,
		CreatedAt:      createdAt,
	}, nil
}

var _ ports.OrganizationRepository = (*OrganizationRepository)(nil)
