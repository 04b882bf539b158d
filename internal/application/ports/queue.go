package ports

import "context"

// MailEnqueuer enqueues async email deliveries. Link URLs embed raw
// single-use tokens and must never be logged outside development.
type MailEnqueuer interface {
	EnqueueVerificationEmail(ctx context.Context, email, linkURL string) error
	EnqueuePasswordResetEmail(ctx context.Context, email, linkURL string) error
}
