package queue

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/testpulse-io/testpulse/internal/application/ports"
)

// LogEnqueuer stands in when Redis is not configured. In development it logs
// the link so the flow can be exercised end to end; outside development the
// link is withheld — it embeds a live credential.
type LogEnqueuer struct {
	log zerolog.Logger
	dev bool
}

func NewLogEnqueuer(log zerolog.Logger, dev bool) *LogEnqueuer {
	return &LogEnqueuer{log: log, dev: dev}
}

func (q *LogEnqueuer) EnqueueVerificationEmail(ctx context.Context, email, linkURL string) error {
	ev := q.log.Info().Str("email", email)
	if q.dev {
		ev = ev.Str("verify_url", linkURL)
	}
	ev.Msg("verification email (log only; configure REDIS_URL for queued delivery)")
	return nil
}

func (q *LogEnqueuer) EnqueuePasswordResetEmail(ctx context.Context, email, linkURL string) error {
	ev := q.log.Info().Str("email", email)
	if q.dev {
		ev = ev.Str("reset_url", linkURL)
	}
	ev.Msg("password reset email (log only; configure REDIS_URL for queued delivery)")
	return nil
}

var _ ports.MailEnqueuer = (*LogEnqueuer)(nil)
