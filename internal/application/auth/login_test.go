package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testpulse-io/testpulse/internal/application/ports"
	domerrors "github.com/testpulse-io/testpulse/internal/domain/errors"
	"github.com/testpulse-io/testpulse/internal/infrastructure/persistence/memory"
	"github.com/testpulse-io/testpulse/internal/infrastructure/ratelimit"
)

type loginFixture struct {
	store *memory.Store
	mail  *captureMail
	login *Login
}

func newLoginFixture(t *testing.T, limiterOverride ...ports.RateLimiter) *loginFixture {
	t.Helper()
	store := memory.NewStore()
	mail := &captureMail{}
	hasher := testHasher()
	mgr := NewSessionManager(store.Sessions(), time.Hour, testLogger())
	lc := NewTokenLifecycle(store.Tokens())
	prov := NewOrgProvisioner(store.Organizations())

	var limiter ports.RateLimiter = allowAllLimiter{}
	if len(limiterOverride) > 0 {
		limiter = limiterOverride[0]
	}
	login := NewLogin(store.Users(), hasher, mgr, prov, lc, mail, limiter, "http://api.local")
	return &loginFixture{store: store, mail: mail, login: login}
}

func registerVerifiedUser(t *testing.T, f *loginFixture, email, password string) {
	t.Helper()
	register := NewRegisterUser(f.store.Users(), testHasher(), NewOrgProvisioner(f.store.Organizations()),
		NewTokenLifecycle(f.store.Tokens()), f.mail, "http://api.local", true)
	_, err := register.Execute(context.Background(), RegisterUserInput{Email: email, Password: password})
	require.NoError(t, err)

	msg, ok := f.mail.lastVerification()
	require.True(t, ok, "registration should mail a verification link")
	raw := tokenFromLink(t, msg.LinkURL)
	_, err = NewVerifyEmail(NewTokenLifecycle(f.store.Tokens())).Execute(context.Background(), VerifyEmailInput{Token: raw})
	require.NoError(t, err)
}

func tokenFromLink(t *testing.T, linkURL string) string {
	t.Helper()
	i := strings.Index(linkURL, "token=")
	require.GreaterOrEqual(t, i, 0, "link %q should carry a token", linkURL)
	return linkURL[i+len("token="):]
}

func TestLoginSuccess(t *testing.T) {
	f := newLoginFixture(t)
	registerVerifiedUser(t, f, "alice@example.com", "correct horse battery")

	result, err := f.login.Execute(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: "correct horse battery",
		RemoteIP: "1.2.3.4",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", result.User.Email)
	assert.NotEmpty(t, result.Session.ID)
	assert.False(t, result.Session.OrganizationID.IsZero())
}

func TestLoginWrongPassword(t *testing.T) {
	f := newLoginFixture(t)
	registerVerifiedUser(t, f, "alice@example.com", "correct horse battery")

	_, err := f.login.Execute(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: "wrong",
		RemoteIP: "1.2.3.4",
	})
	assert.ErrorIs(t, err, domerrors.ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	f := newLoginFixture(t)

	_, err := f.login.Execute(context.Background(), LoginInput{
		Email:    "nobody@example.com",
		Password: "whatever",
		RemoteIP: "1.2.3.4",
	})
	assert.ErrorIs(t, err, domerrors.ErrInvalidCredentials)
}

func TestLoginUnverifiedReissuesToken(t *testing.T) {
	f := newLoginFixture(t)
	register := NewRegisterUser(f.store.Users(), testHasher(), NewOrgProvisioner(f.store.Organizations()),
		NewTokenLifecycle(f.store.Tokens()), f.mail, "http://api.local", true)
	_, err := register.Execute(context.Background(), RegisterUserInput{
		Email:    "bob@example.com",
		Password: "a long password",
	})
	require.NoError(t, err)
	sent := len(f.mail.verifications)

	_, err = f.login.Execute(context.Background(), LoginInput{
		Email:    "bob@example.com",
		Password: "a long password",
		RemoteIP: "1.2.3.4",
	})
	assert.ErrorIs(t, err, domerrors.ErrEmailNotVerified)
	assert.Len(t, f.mail.verifications, sent+1, "a fresh verification link should be mailed")
}

func TestLoginRateLimited(t *testing.T) {
	f := newLoginFixture(t, denyAllLimiter{})
	registerVerifiedUser(t, f, "alice@example.com", "correct horse battery")

	_, err := f.login.Execute(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: "correct horse battery",
		RemoteIP: "1.2.3.4",
	})
	assert.ErrorIs(t, err, domerrors.ErrRateLimited)
}

func TestLoginRateLimitCountsFailures(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(map[string]ratelimit.Policy{
		ActionLogin: {Limit: 10, Window: time.Minute},
	})
	f := newLoginFixture(t, limiter)
	registerVerifiedUser(t, f, "alice@example.com", "correct horse battery")

	for i := 0; i < 10; i++ {
		_, err := f.login.Execute(context.Background(), LoginInput{
			Email:    "alice@example.com",
			Password: "wrong",
			RemoteIP: "1.2.3.4",
		})
		assert.ErrorIs(t, err, domerrors.ErrInvalidCredentials)
	}
	// The 11th attempt is throttled even with correct credentials.
	_, err := f.login.Execute(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: "correct horse battery",
		RemoteIP: "1.2.3.4",
	})
	assert.ErrorIs(t, err, domerrors.ErrRateLimited)

	// A different IP is unaffected.
	_, err = f.login.Execute(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: "correct horse battery",
		RemoteIP: "5.6.7.8",
	})
	assert.NoError(t, err)
}
