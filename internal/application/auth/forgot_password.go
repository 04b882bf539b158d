package auth

import (
	"context"
	"fmt"

	"github.com/testpulse-io/testpulse/internal/application/ports"
	"github.com/testpulse-io/testpulse/internal/domain"
)

type ForgotPasswordInput struct {
	Email    string
	RemoteIP string
}

// ForgotPasswordResult is empty: the endpoint reports success no matter what.
type ForgotPasswordResult struct{}

// ForgotPassword issues a reset token and enqueues the email. Unknown emails
// and rate-limited callers get the same success result — the endpoint must
// not act as an account oracle.
type ForgotPassword struct {
	users     ports.UserRepository
	tokens    *TokenLifecycle
	mail      ports.MailEnqueuer
	limiter   ports.RateLimiter
	webAppURL string
}

func NewForgotPassword(users ports.UserRepository, tokens *TokenLifecycle, mail ports.MailEnqueuer, limiter ports.RateLimiter, webAppURL string) *ForgotPassword {
	return &ForgotPassword{
		users:     users,
		tokens:    tokens,
		mail:      mail,
		limiter:   limiter,
		webAppURL: webAppURL,
	}
}

func (uc *ForgotPassword) Execute(ctx context.Context, input ForgotPasswordInput) (*ForgotPasswordResult, error) {
	if !uc.limiter.Allow(ActionForgotPassword, input.RemoteIP) {
		return &ForgotPasswordResult{}, nil
	}
	user, err := uc.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return &ForgotPasswordResult{}, nil
	}
	raw, err := uc.tokens.Issue(ctx, user.ID, domain.TokenKindPasswordReset, PasswordResetTTL)
	if err != nil {
		return nil, err
	}
	linkURL := fmt.Sprintf("%s/reset-password?token=%s", uc.webAppURL, raw)
	_ = uc.mail.EnqueuePasswordResetEmail(ctx, user.Email, linkURL)
	return &ForgotPasswordResult{}, nil
}
