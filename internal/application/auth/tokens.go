package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/testpulse-io/testpulse/internal/application/ports"
	"github.com/testpulse-io/testpulse/internal/domain"
	"github.com/testpulse-io/testpulse/internal/infrastructure/security"
)

// Token lifetimes.
const (
	EmailVerificationTTL = 24 * time.Hour
	PasswordResetTTL     = time.Hour
)

// TokenLifecycle issues and consumes single-use, expiring tokens. Only the
// sha256 of the raw value is stored; the raw value is returned once to be
// embedded in a link. Consumption is transactional in the store: the effect
// is applied, the token consumed, and all other pending tokens of the same
// kind for the user force-consumed, so only the most recently redeemed
// token's side effect is ever trusted.
type TokenLifecycle struct {
	tokens ports.TokenStore
	now    func() time.Time
}

// NewTokenLifecycle builds the lifecycle.
func NewTokenLifecycle(tokens ports.TokenStore) *TokenLifecycle {
	return &TokenLifecycle{tokens: tokens, now: time.Now}
}

// Issue generates a raw token, stores its hash with the expiry, and returns
// the raw value. The raw value is never persisted.
func (l *TokenLifecycle) Issue(ctx context.Context, userID domain.UserID, kind domain.TokenKind, ttl time.Duration) (string, error) {
	raw, err := security.GenerateOpaqueToken()
	if err != nil {
		return "", err
	}
	now := l.now()
	token := &domain.Token{
		ID:        domain.NewTokenID(uuid.New()),
		UserID:    userID,
		Kind:      kind,
		TokenHash: security.HashOpaque(raw),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := l.tokens.Create(ctx, token); err != nil {
		return "", err
	}
	return raw, nil
}

// ConsumeEmailVerification redeems a raw verification token, marking the
// owner's email verified. Fails with ErrTokenInvalid, ErrTokenExpired or
// ErrTokenConsumed.
func (l *TokenLifecycle) ConsumeEmailVerification(ctx context.Context, raw string) (domain.UserID, error) {
	return l.tokens.RedeemEmailVerification(ctx, security.HashOpaque(raw))
}

// ConsumePasswordReset redeems a raw reset token, setting the owner's
// password hash and revoking all of their sessions in the same transaction.
func (l *TokenLifecycle) ConsumePasswordReset(ctx context.Context, raw, newPasswordHash string) (domain.UserID, error) {
	return l.tokens.RedeemPasswordReset(ctx, security.HashOpaque(raw), newPasswordHash)
}
