package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/testpulse-io/testpulse/internal/domain/errors"
	"github.com/testpulse-io/testpulse/internal/infrastructure/persistence/memory"
)

func newRegister(store *memory.Store, mail *captureMail, signupEnabled bool) *RegisterUser {
	return NewRegisterUser(store.Users(), testHasher(), NewOrgProvisioner(store.Organizations()),
		NewTokenLifecycle(store.Tokens()), mail, "http://api.local", signupEnabled)
}

func TestRegisterSuccess(t *testing.T) {
	store := memory.NewStore()
	mail := &captureMail{}
	uc := newRegister(store, mail, true)
	ctx := context.Background()

	result, err := uc.Execute(ctx, RegisterUserInput{
		Email:    "alice@example.com",
		Password: "a long password",
		Name:     "Alice",
	})
	require.NoError(t, err)
	assert.False(t, result.User.EmailVerified(), "new accounts start unverified")

	// Registration provisions the default org up front.
	m, err := store.Organizations().FirstMembership(ctx, result.User.ID)
	require.NoError(t, err)
	require.NotNil(t, m)

	msg, ok := mail.lastVerification()
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", msg.Email)
	assert.True(t, strings.HasPrefix(msg.LinkURL, "http://api.local/auth/verify-email?token="))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := memory.NewStore()
	uc := newRegister(store, &captureMail{}, true)
	ctx := context.Background()

	_, err := uc.Execute(ctx, RegisterUserInput{Email: "alice@example.com", Password: "a long password"})
	require.NoError(t, err)
	_, err = uc.Execute(ctx, RegisterUserInput{Email: "alice@example.com", Password: "another password"})
	assert.ErrorIs(t, err, domerrors.ErrUserExists)
}

func TestRegisterSignupsDisabled(t *testing.T) {
	store := memory.NewStore()
	uc := newRegister(store, &captureMail{}, false)

	_, err := uc.Execute(context.Background(), RegisterUserInput{Email: "alice@example.com", Password: "a long password"})
	assert.ErrorIs(t, err, domerrors.ErrSignupsDisabled)
}

func TestRegisterRejectsBadEmail(t *testing.T) {
	store := memory.NewStore()
	uc := newRegister(store, &captureMail{}, true)

	_, err := uc.Execute(context.Background(), RegisterUserInput{Email: "not-an-email", Password: "a long password"})
	assert.ErrorIs(t, err, domerrors.ErrInvalidCredentials)
}
