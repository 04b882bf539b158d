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

const uniqueViolation = "23505"

const (
	createUserSQL = `INSERT INTO users (id, email, password_hash, name, nickname, github_id, email_verified_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	selectUserSQL = `SELECT id, email, password_hash, name, nickname, github_id, email_verified_at, created_at, updated_at FROM users`
	getUserByEmailSQL    = selectUserSQL + ` WHERE email = $1`
	getUserByIDSQL       = selectUserSQL + ` WHERE id = $1`
	getUserByGitHubIDSQL = selectUserSQL + ` WHERE github_id = $1`
	linkGitHubSQL        = `UPDATE users SET github_id = $1, updated_at = NOW() WHERE id = $2`
	syncProfileSQL       = `UPDATE users SET name = $1, nickname = $2, updated_at = NOW() WHERE id = $3`
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.pool.Exec(ctx, createUserSQL,
		user.ID.UUID, user.Email, user.PasswordHash, user.Name, user.Nickname,
		user.GitHubID, user.EmailVerifiedAt, user.CreatedAt, user.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domerrors.ErrUserExists
	}
	return err
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, r.pool, getUserByEmailSQL, email)
}

func (r *UserRepository) GetByID(ctx context.Context, userID domain.UserID) (*domain.User, error) {
	return r.getOne(ctx, r.pool, getUserByIDSQL, userID.UUID)
}

// ResolveGitHubUser runs the federation account-resolution step in one
// transaction: match by GitHub id (syncing profile fields), else link the id
// to the user owning the email, else create a new user. Provider emails are
// verified by GitHub, so created and linked accounts count as verified.
func (r *UserRepository) ResolveGitHubUser(ctx context.Context, githubID int64, email, name, nickname string) (*domain.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	user, err := r.getOne(ctx, tx, getUserByGitHubIDSQL, githubID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		if user.Name != name || user.Nickname != nickname {
			if _, err := tx.Exec(ctx, syncProfileSQL, name, nickname, user.ID.UUID); err != nil {
				return nil, err
			}
			user.Name, user.Nickname = name, nickname
		}
		return user, tx.Commit(ctx)
	}

	user, err = r.getOne(ctx, tx, getUserByEmailSQL, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		if _, err := tx.Exec(ctx, linkGitHubSQL, githubID, user.ID.UUID); err != nil {
			return nil, err
		}
		user.GitHubID = &githubID
		return user, tx.Commit(ctx)
	}

	now := time.Now()
	user = &domain.User{
		ID:              domain.NewUserID(uuid.New()),
		Email:           email,
		Name:            name,
		Nickname:        nickname,
		GitHubID:        &githubID,
		EmailVerifiedAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := tx.Exec(ctx, createUserSQL,
		user.ID.UUID, user.Email, user.PasswordHash, user.Name, user.Nickname,
		user.GitHubID, user.EmailVerifiedAt, user.CreatedAt, user.UpdatedAt); err != nil {
		return nil, err
	}
	return user, tx.Commit(ctx)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *UserRepository) getOne(ctx context.Context, q queryRower, sql string, arg any) (*domain.User, error) {
	var (
		id              uuid.UUID
		user            domain.User
		githubID        *int64
		emailVerifiedAt *time.Time
	)
	err := q.QueryRow(ctx, sql, arg).Scan(
		&id, &user.Email, &user.PasswordHash, &user.Name, &user.Nickname,
		&githubID, &emailVerifiedAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.ID = domain.NewUserID(id)
	user.GitHubID = githubID
	user.EmailVerifiedAt = emailVerifiedAt
	return &user, nil
}

var _ ports.UserRepository = (*UserRepository)(nil)
