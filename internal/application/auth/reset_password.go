package auth

import (
	"context"

	"github.com/testpulse-io/testpulse/internal/application/ports"
	"github.com/testpulse-io/testpulse/internal/domain"
)

type ResetPasswordInput struct {
	Token       string
	NewPassword string
}

type ResetPasswordResult struct {
	UserID domain.UserID
}

// ResetPassword consumes a reset token and sets the new password. The store
// transaction also force-consumes other pending reset tokens and revokes
// every session of the user: a password change invalidates all logins.
type ResetPassword struct {
	tokens *TokenLifecycle
	hasher ports.PasswordHasher
}

func NewResetPassword(tokens *TokenLifecycle, hasher ports.PasswordHasher) *ResetPassword {
	return &ResetPassword{tokens: tokens, hasher: hasher}
}

func (uc *ResetPassword) Execute(ctx context.Context, input ResetPasswordInput) (*ResetPasswordResult, error) {
	newHash, err := uc.hasher.Hash(input.NewPassword)
	if err != nil {
		return nil, err
	}
	userID, err := uc.tokens.ConsumePasswordReset(ctx, input.Token, newHash)
	if err != nil {
		return nil, err
	}
	return &ResetPasswordResult{UserID: userID}, nil
}
