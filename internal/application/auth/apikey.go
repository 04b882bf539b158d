package auth

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/testpulse-io/testpulse/internal/application/ports"
	"github.com/testpulse-io/testpulse/internal/domain"
	domerrors "github.com/testpulse-io/testpulse/internal/domain/errors"
	"github.com/testpulse-io/testpulse/internal/infrastructure/security"
)

// APIKeyAuthenticator verifies `<prefix>.<secret>` credentials from the
// x-api-key header. Every failure reason maps to the same generic 401 so a
// caller cannot probe for valid prefixes.
type APIKeyAuthenticator struct {
	keys ports.APIKeyStore
	log  zerolog.Logger
	now  func() time.Time
}

// NewAPIKeyAuthenticator builds the authenticator.
func NewAPIKeyAuthenticator(keys ports.APIKeyStore, log zerolog.Logger) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{keys: keys, log: log, now: time.Now}
}

// Authenticate verifies a presented key. Errors: ErrAPIKeyMalformed,
// ErrAPIKeyUnknown, ErrAPIKeyRevoked, ErrAPIKeyExpired, ErrAPIKeyMismatch.
// On success last_used_at is updated fire-and-forget.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, presented string) (*domain.APIKey, error) {
	prefix, secret, ok := security.ParseAPIKey(presented)
	if !ok {
		return nil, domerrors.ErrAPIKeyMalformed
	}
	key, err := a.keys.GetByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, domerrors.ErrAPIKeyUnknown
	}
	if key.Revoked() {
		return nil, domerrors.ErrAPIKeyRevoked
	}
	if key.Expired(a.now()) {
		return nil, domerrors.ErrAPIKeyExpired
	}
	if !security.ConstantTimeEqualHex(security.HashOpaque(secret), key.SecretHash) {
		return nil, domerrors.ErrAPIKeyMismatch
	}
	go func(id domain.APIKeyID) {
		touchCtx, cancel := context.WithTimeout(context.Background(), touchTimeout)
		defer cancel()
		if err := a.keys.TouchLastUsed(touchCtx, id, time.Now()); err != nil {
			a.log.Warn().Err(err).Msg("api key last_used touch failed")
		}
	}(key.ID)
	return key, nil
}
