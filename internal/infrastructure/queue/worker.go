package queue

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// verificationPayload matches the JSON enqueued by EnqueueVerificationEmail.
type verificationPayload struct {
	Email     string `json:"email"`
	VerifyURL string `json:"verify_url"`
}

// passwordResetPayload matches the JSON enqueued by EnqueuePasswordResetEmail.
type passwordResetPayload struct {
	Email    string `json:"email"`
	ResetURL string `json:"reset_url"`
}

// Worker runs Asynq task handlers for email delivery.
type Worker struct {
	srv *asynq.Server
	mux *asynq.ServeMux
	log zerolog.Logger
	dev bool
}

// NewWorker creates an Asynq server and registers handlers. Call Run() to
// start. dev gates whether link URLs (live credentials) may be logged.
func NewWorker(redisOpt asynq.RedisClientOpt, log zerolog.Logger, dev bool) *Worker {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		LogLevel:    asynq.InfoLevel,
	})
	mux := asynq.NewServeMux()
	w := &Worker{srv: srv, mux: mux, log: log, dev: dev}
	mux.HandleFunc(TypeSendEmailVerification, w.handleSendEmailVerification)
	mux.HandleFunc(TypeSendPasswordReset, w.handleSendPasswordReset)
	return w
}

func (w *Worker) handleSendEmailVerification(ctx context.Context, t *asynq.Task) error {
	var p verificationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		w.log.Error().Err(err).Msg("email verification task payload invalid")
		return err
	}
	ev := w.log.Info().Str("email", p.Email)
	if w.dev {
		ev = ev.Str("verify_url", p.VerifyURL)
	}
	ev.Msg("verification email (log only; configure SMTP for real email)")
	return nil
}

func (w *Worker) handleSendPasswordReset(ctx context.Context, t *asynq.Task) error {
	var p passwordResetPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		w.log.Error().Err(err).Msg("password reset task payload invalid")
		return err
	}
	ev := w.log.Info().Str("email", p.Email)
	if w.dev {
		ev = ev.Str("reset_url", p.ResetURL)
	}
	ev.Msg("password reset email (log only; configure SMTP for real email)")
	return nil
}

// Run blocks until shutdown. Use Shutdown for graceful stop.
func (w *Worker) Run() error {
	return w.srv.Run(w.mux)
}

// Shutdown stops the worker.
func (w *Worker) Shutdown() {
	w.srv.Shutdown()
}
