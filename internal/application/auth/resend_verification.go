package auth

import (
	"context"
	"fmt"

	"github.com/testpulse-io/testpulse/internal/application/ports"
	"github.com/testpulse-io/testpulse/internal/domain"
)

type ResendVerificationInput struct {
	Email string
}

// ResendVerificationResult is empty: unknown or already-verified emails get
// the same silent success as the happy path.
type ResendVerificationResult struct{}

// ResendVerification issues a fresh verification token for an unverified
// account and enqueues the email.
type ResendVerification struct {
	users         ports.UserRepository
	tokens        *TokenLifecycle
	mail          ports.MailEnqueuer
	publicBaseURL string
}

func NewResendVerification(users ports.UserRepository, tokens *TokenLifecycle, mail ports.MailEnqueuer, publicBaseURL string) *ResendVerification {
	return &ResendVerification{
		users:         users,
		tokens:        tokens,
		mail:          mail,
		publicBaseURL: publicBaseURL,
	}
}

func (uc *ResendVerification) Execute(ctx context.Context, input ResendVerificationInput) (*ResendVerificationResult, error) {
	user, err := uc.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.EmailVerified() {
		return &ResendVerificationResult{}, nil
	}
	raw, err := uc.tokens.Issue(ctx, user.ID, domain.TokenKindEmailVerification, EmailVerificationTTL)
	if err != nil {
		return nil, err
	}
	linkURL := fmt.Sprintf("%s/auth/verify-email?token=%s", uc.publicBaseURL, raw)
	_ = uc.mail.EnqueueVerificationEmail(ctx, user.Email, linkURL)
	return &ResendVerificationResult{}, nil
}
