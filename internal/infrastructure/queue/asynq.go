package queue

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/testpulse-io/testpulse/internal/application/ports"
)

const (
	TypeSendEmailVerification = "email:email_verification"
	TypeSendPasswordReset     = "email:password_reset"
)

// TaskEnqueuer pushes email deliveries onto the Asynq queue. Payloads carry
// raw token links, so they are never logged here.
type TaskEnqueuer struct {
	client *asynq.Client
	log    zerolog.Logger
}

func NewAsynqEnqueuer(redisOpt asynq.RedisClientOpt, log zerolog.Logger) *TaskEnqueuer {
	return &TaskEnqueuer{client: asynq.NewClient(redisOpt), log: log}
}

func (q *TaskEnqueuer) Close() error {
	return q.client.Close()
}

func (q *TaskEnqueuer) EnqueueVerificationEmail(ctx context.Context, email, linkURL string) error {
	payload, _ := json.Marshal(map[string]string{
		"email":      email,
		"verify_url": linkURL,
	})
	task := asynq.NewTask(TypeSendEmailVerification, payload)
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		q.log.Warn().Err(err).Str("email", email).Msg("enqueue email verification failed")
		return err
	}
	return nil
}

func (q *TaskEnqueuer) EnqueuePasswordResetEmail(ctx context.Context, email, linkURL string) error {
	payload, _ := json.Marshal(map[string]string{
		"email":     email,
		"reset_url": linkURL,
	})
	task := asynq.NewTask(TypeSendPasswordReset, payload)
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		q.log.Warn().Err(err).Str("email", email).Msg("enqueue password reset email failed")
		return err
	}
	return nil
}

var _ ports.MailEnqueuer = (*TaskEnqueuer)(nil)
