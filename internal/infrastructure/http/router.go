package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/testpulse-io/testpulse/internal/infrastructure/http/handlers"
	"github.com/testpulse-io/testpulse/internal/infrastructure/http/middleware"
)

type RouterConfig struct {
	AuthHandler   *handlers.AuthHandler
	OAuthHandler  *handlers.OAuthHandler
	HealthHandler *handlers.HealthHandler
	Resolver      *middleware.AuthResolver
	Log           zerolog.Logger
	Secure        func(http.Handler) http.Handler
	CORS          func(http.Handler) http.Handler
	IPRateLimit   func(http.Handler) http.Handler
	Metrics       bool // expose /metrics
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimid.RequestID)
	r.Use(chimid.RealIP)
	r.Use(loggerMiddleware(cfg.Log))
	r.Use(chimid.Recoverer)
	if cfg.Metrics {
		r.Use(middleware.PrometheusMiddleware)
	}
	if cfg.Secure != nil {
		r.Use(cfg.Secure)
	}
	if cfg.CORS != nil {
		r.Use(cfg.CORS)
	}
	if cfg.IPRateLimit != nil {
		r.Use(cfg.IPRateLimit)
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.ServeHTTP)
	} else {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
	}
	if cfg.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Get("/config", cfg.AuthHandler.Config)
		r.Post("/register", cfg.AuthHandler.Register)
		r.Post("/login", cfg.AuthHandler.Login)
		r.Get("/verify-email", cfg.AuthHandler.VerifyEmail)
		r.Post("/resend-verification", cfg.AuthHandler.ResendVerification)
		r.Post("/password/forgot", cfg.AuthHandler.ForgotPassword)
		r.Post("/password/reset", cfg.AuthHandler.ResetPassword)
		if cfg.OAuthHandler != nil {
			r.Get("/github/login", cfg.OAuthHandler.GitHubLogin)
			r.Get("/github/callback", cfg.OAuthHandler.GitHubCallback)
		}
		// Routes that need a resolved principal.
		r.Group(func(r chi.Router) {
			r.Use(cfg.Resolver.Handler)
			r.Get("/me", cfg.AuthHandler.Me)
			r.Post("/logout", cfg.AuthHandler.Logout)
		})
	})

	return r
}

func loggerMiddleware(log zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := chimid.GetReqID(r.Context())
			log.Info().
				Str("request_id", reqID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("request")
			next.ServeHTTP(w, r)
		})
	}
}
