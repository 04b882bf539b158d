package auth

import (
	"context"
	"fmt"

	"github.com/testpulse-io/testpulse/internal/application/ports"
	"github.com/testpulse-io/testpulse/internal/domain"
	domerrors "github.com/testpulse-io/testpulse/internal/domain/errors"
)

// Rate-limited actions, keyed by client IP.
const (
	ActionLogin          = "login"
	ActionForgotPassword = "forgot_password"
)

type LoginInput struct {
	Email    string
	Password string
	// RemoteIP identifies the caller for rate limiting.
	RemoteIP string
}

type LoginResult struct {
	User    *domain.User
	Session *domain.Session
}

// Login verifies credentials and issues a session. Unverified accounts are
// rejected with ErrEmailNotVerified and silently get a fresh verification
// token mailed to them. Attempts are rate limited per IP before any
// credential check.
type Login struct {
	users         ports.UserRepository
	hasher        ports.PasswordHasher
	sessions      *SessionManager
	provisioner   *OrgProvisioner
	tokens        *TokenLifecycle
	mail          ports.MailEnqueuer
	limiter       ports.RateLimiter
	publicBaseURL string
}

func NewLogin(users ports.UserRepository, hasher ports.PasswordHasher, sessions *SessionManager, provisioner *OrgProvisioner, tokens *TokenLifecycle, mail ports.MailEnqueuer, limiter ports.RateLimiter, publicBaseURL string) *Login {
	return &Login{
		users:         users,
		hasher:        hasher,
		sessions:      sessions,
		provisioner:   provisioner,
		tokens:        tokens,
		mail:          mail,
		limiter:       limiter,
		publicBaseURL: publicBaseURL,
	}
}

func (uc *Login) Execute(ctx context.Context, input LoginInput) (*LoginResult, error) {
	if !uc.limiter.Allow(ActionLogin, input.RemoteIP) {
		return nil, domerrors.ErrRateLimited
	}
	user, err := uc.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" || !uc.hasher.Verify(input.Password, user.PasswordHash) {
		return nil, domerrors.ErrInvalidCredentials
	}
	if !user.EmailVerified() {
		if raw, err := uc.tokens.Issue(ctx, user.ID, domain.TokenKindEmailVerification, EmailVerificationTTL); err == nil {
			linkURL := fmt.Sprintf("%s/auth/verify-email?token=%s", uc.publicBaseURL, raw)
			_ = uc.mail.EnqueueVerificationEmail(ctx, user.Email, linkURL)
		}
		return nil, domerrors.ErrEmailNotVerified
	}
	membership, err := uc.provisioner.EnsureMembership(ctx, user)
	if err != nil {
		return nil, err
	}
	session, err := uc.sessions.Create(ctx, user.ID, membership.OrganizationID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Session: session}, nil
}
