package auth

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/testpulse-io/testpulse/internal/infrastructure/security"
)

// captureMail records enqueued emails instead of delivering them. Link URLs
// carry the raw tokens the tests need.
type captureMail struct {
	mu            sync.Mutex
	verifications []capturedMsg
	resets        []capturedMsg
}

type capturedMsg struct {
	Email   string
	LinkURL string
}

func (c *captureMail) EnqueueVerificationEmail(ctx context.Context, email, linkURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verifications = append(c.verifications, capturedMsg{Email: email, LinkURL: linkURL})
	return nil
}

func (c *captureMail) EnqueuePasswordResetEmail(ctx context.Context, email, linkURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets = append(c.resets, capturedMsg{Email: email, LinkURL: linkURL})
	return nil
}

func (c *captureMail) lastVerification() (capturedMsg, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.verifications) == 0 {
		return capturedMsg{}, false
	}
	return c.verifications[len(c.verifications)-1], true
}

func (c *captureMail) lastReset() (capturedMsg, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.resets) == 0 {
		return capturedMsg{}, false
	}
	return c.resets[len(c.resets)-1], true
}

type allowAllLimiter struct{}

func (allowAllLimiter) Allow(action, identifier string) bool { return true }

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(action, identifier string) bool { return false }

func testHasher() *security.Argon2Hasher {
	return security.NewArgon2Hasher(security.Argon2Params{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
}

func testLogger() zerolog.Logger { return zerolog.Nop() }
