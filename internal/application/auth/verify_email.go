package auth

import (
	"context"

	"github.com/testpulse-io/testpulse/internal/domain"
)

type VerifyEmailInput struct {
	Token string
}

type VerifyEmailResult struct {
	UserID domain.UserID
}

// VerifyEmail consumes a verification token, marking the owner's email
// verified and force-consuming any older pending verification tokens.
type VerifyEmail struct {
	tokens *TokenLifecycle
}

func NewVerifyEmail(tokens *TokenLifecycle) *VerifyEmail {
	return &VerifyEmail{tokens: tokens}
}

func (uc *VerifyEmail) Execute(ctx context.Context, input VerifyEmailInput) (*VerifyEmailResult, error) {
	userID, err := uc.tokens.ConsumeEmailVerification(ctx, input.Token)
	if err != nil {
		return nil, err
	}
	return &VerifyEmailResult{UserID: userID}, nil
}
