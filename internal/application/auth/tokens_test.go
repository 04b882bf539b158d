package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testpulse-io/testpulse/internal/domain"
	domerrors "github.com/testpulse-io/testpulse/internal/domain/errors"
	"github.com/testpulse-io/testpulse/internal/infrastructure/persistence/memory"
)

func seedUser(t *testing.T, store *memory.Store, email string) *domain.User {
	t.Helper()
	now := time.Now()
	user := &domain.User{
		ID:           domain.NewUserID(uuid.New()),
		Email:        email,
		PasswordHash: "x",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, store.Users().Create(context.Background(), user))
	return user
}

func TestTokenIssueAndConsumeVerification(t *testing.T) {
	store := memory.NewStore()
	lc := NewTokenLifecycle(store.Tokens())
	ctx := context.Background()
	user := seedUser(t, store, "alice@example.com")

	raw, err := lc.Issue(ctx, user.ID, domain.TokenKindEmailVerification, time.Hour)
	require.NoError(t, err)
	assert.Len(t, raw, 64)

	userID, err := lc.ConsumeEmailVerification(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	got, err := store.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.EmailVerified())
}

func TestTokenConsumeUnknown(t *testing.T) {
	store := memory.NewStore()
	lc := NewTokenLifecycle(store.Tokens())

	_, err := lc.ConsumeEmailVerification(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, domerrors.ErrTokenInvalid)
}

func TestTokenKindsDoNotCross(t *testing.T) {
	store := memory.NewStore()
	lc := NewTokenLifecycle(store.Tokens())
	ctx := context.Background()
	user := seedUser(t, store, "alice@example.com")

	raw, err := lc.Issue(ctx, user.ID, domain.TokenKindPasswordReset, time.Hour)
	require.NoError(t, err)

	// A reset token must not verify an email.
	_, err = lc.ConsumeEmailVerification(ctx, raw)
	assert.ErrorIs(t, err, domerrors.ErrTokenInvalid)
}

func TestTokenExpired(t *testing.T) {
	store := memory.NewStore()
	lc := NewTokenLifecycle(store.Tokens())
	ctx := context.Background()
	user := seedUser(t, store, "alice@example.com")

	raw, err := lc.Issue(ctx, user.ID, domain.TokenKindEmailVerification, -time.Minute)
	require.NoError(t, err)

	_, err = lc.ConsumeEmailVerification(ctx, raw)
	assert.ErrorIs(t, err, domerrors.ErrTokenExpired)
}

func TestTokenSingleUse(t *testing.T) {
	store := memory.NewStore()
	lc := NewTokenLifecycle(store.Tokens())
	ctx := context.Background()
	user := seedUser(t, store, "alice@example.com")

	raw, err := lc.Issue(ctx, user.ID, domain.TokenKindEmailVerification, time.Hour)
	require.NoError(t, err)

	_, err = lc.ConsumeEmailVerification(ctx, raw)
	require.NoError(t, err)
	_, err = lc.ConsumeEmailVerification(ctx, raw)
	assert.ErrorIs(t, err, domerrors.ErrTokenConsumed)
}

func TestRedeemingForcesOutSiblingTokens(t *testing.T) {
	store := memory.NewStore()
	lc := NewTokenLifecycle(store.Tokens())
	ctx := context.Background()
	user := seedUser(t, store, "alice@example.com")

	older, err := lc.Issue(ctx, user.ID, domain.TokenKindEmailVerification, time.Hour)
	require.NoError(t, err)
	newer, err := lc.Issue(ctx, user.ID, domain.TokenKindEmailVerification, time.Hour)
	require.NoError(t, err)

	_, err = lc.ConsumeEmailVerification(ctx, newer)
	require.NoError(t, err)

	// The older link is dead too: redeeming one consumes all of that kind.
	_, err = lc.ConsumeEmailVerification(ctx, older)
	assert.ErrorIs(t, err, domerrors.ErrTokenConsumed)
}

func TestPasswordResetRevokesAllSessions(t *testing.T) {
	store := memory.NewStore()
	lc := NewTokenLifecycle(store.Tokens())
	mgr := NewSessionManager(store.Sessions(), time.Hour, testLogger())
	ctx := context.Background()
	user := seedUser(t, store, "alice@example.com")

	orgID := domain.NewOrganizationID(uuid.New())
	session, err := mgr.Create(ctx, user.ID, orgID)
	require.NoError(t, err)

	raw, err := lc.Issue(ctx, user.ID, domain.TokenKindPasswordReset, time.Hour)
	require.NoError(t, err)

	userID, err := lc.ConsumePasswordReset(ctx, raw, "new-hash")
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	got, err := store.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)

	_, err = mgr.Validate(ctx, session.ID)
	assert.ErrorIs(t, err, domerrors.ErrSessionRevoked)
}
