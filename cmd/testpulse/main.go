package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/testpulse-io/testpulse/internal/application/auth"
	"github.com/testpulse-io/testpulse/internal/application/ports"
	"github.com/testpulse-io/testpulse/internal/config"
	"github.com/testpulse-io/testpulse/internal/infrastructure/cookies"
	httprouter "github.com/testpulse-io/testpulse/internal/infrastructure/http"
	"github.com/testpulse-io/testpulse/internal/infrastructure/http/handlers"
	"github.com/testpulse-io/testpulse/internal/infrastructure/http/middleware"
	"github.com/testpulse-io/testpulse/internal/infrastructure/oauth"
	"github.com/testpulse-io/testpulse/internal/infrastructure/persistence/memory"
	"github.com/testpulse-io/testpulse/internal/infrastructure/persistence/postgres"
	"github.com/testpulse-io/testpulse/internal/infrastructure/queue"
	"github.com/testpulse-io/testpulse/internal/infrastructure/ratelimit"
	"github.com/testpulse-io/testpulse/internal/infrastructure/security"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx := context.Background()

	var (
		pool     *pgxpool.Pool
		users    ports.UserRepository
		orgs     ports.OrganizationRepository
		sessions ports.SessionStore
		apiKeys  ports.APIKeyStore
		tokens   ports.TokenStore
	)
	if cfg.Database.URL != "" {
		pool, err = pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect to database")
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("ping database")
		}
		users = postgres.NewUserRepository(pool)
		orgs = postgres.NewOrganizationRepository(pool)
		sessions = postgres.NewSessionRepository(pool)
		apiKeys = postgres.NewAPIKeyRepository(pool)
		tokens = postgres.NewTokenRepository(pool)
	} else {
		if !cfg.IsDevelopment() {
			log.Fatal().Msg("DATABASE_URL is required outside development")
		}
		log.Warn().Msg("no DATABASE_URL; using in-memory store (data is lost on restart)")
		store := memory.NewStore()
		users = store.Users()
		orgs = store.Organizations()
		sessions = store.Sessions()
		apiKeys = store.APIKeys()
		tokens = store.Tokens()
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("parse REDIS_URL")
		}
		redisClient = redis.NewClient(opt)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis ping failed; continuing without redis")
			redisClient = nil
		}
	}

	var mail ports.MailEnqueuer
	var worker *queue.Worker
	if redisClient != nil {
		redisOpt, _ := redis.ParseURL(cfg.Redis.URL)
		asynqOpt := asynq.RedisClientOpt{Addr: redisOpt.Addr, Password: redisOpt.Password, DB: redisOpt.DB}
		enq := queue.NewAsynqEnqueuer(asynqOpt, log)
		defer enq.Close()
		mail = enq
		worker = queue.NewWorker(asynqOpt, log, cfg.IsDevelopment())
		go func() {
			if err := worker.Run(); err != nil {
				log.Warn().Err(err).Msg("asynq worker stopped")
			}
		}()
	} else {
		mail = queue.NewLogEnqueuer(log, cfg.IsDevelopment())
	}

	hasher := security.NewArgon2Hasher(security.Argon2Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  16,
		KeyLength:   32,
	})

	limiter := ratelimit.NewMemoryLimiter(map[string]ratelimit.Policy{
		auth.ActionLogin:          {Limit: 10, Window: time.Minute},
		auth.ActionForgotPassword: {Limit: 5, Window: time.Minute},
	})

	sessionTTL := time.Duration(cfg.Auth.SessionTTLHours) * time.Hour
	codec := cookies.New(cfg.Cookie.Name, cfg.Cookie.Secret, cfg.SecureCookies(), sessionTTL)

	sessionMgr := auth.NewSessionManager(sessions, sessionTTL, log)
	tokenLifecycle := auth.NewTokenLifecycle(tokens)
	provisioner := auth.NewOrgProvisioner(orgs)
	apiKeyAuth := auth.NewAPIKeyAuthenticator(apiKeys, log)

	registerUC := auth.NewRegisterUser(users, hasher, provisioner, tokenLifecycle, mail, cfg.Server.PublicBaseURL, cfg.Auth.SignupEnabled)
	loginUC := auth.NewLogin(users, hasher, sessionMgr, provisioner, tokenLifecycle, mail, limiter, cfg.Server.PublicBaseURL)
	verifyEmailUC := auth.NewVerifyEmail(tokenLifecycle)
	resendUC := auth.NewResendVerification(users, tokenLifecycle, mail, cfg.Server.PublicBaseURL)
	forgotUC := auth.NewForgotPassword(users, tokenLifecycle, mail, limiter, cfg.Server.WebAppURL)
	resetUC := auth.NewResetPassword(tokenLifecycle, hasher)

	github := oauth.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.Server.PublicBaseURL)
	githubCallbackUC := auth.NewGitHubCallback(github, users, provisioner, sessionMgr)

	resolver := middleware.NewAuthResolver(sessionMgr, apiKeyAuth, codec, log)

	authHandler := handlers.NewAuthHandler(
		registerUC, loginUC, verifyEmailUC, resendUC, forgotUC, resetUC,
		sessionMgr, users, orgs, codec, log,
		cfg.Server.WebAppURL, cfg.Auth.SignupEnabled, github.Enabled())
	oauthHandler := handlers.NewOAuthHandler(github, githubCallbackUC, codec, log, cfg.Server.WebAppURL)
	healthHandler := handlers.NewHealthHandler(pool, redisClient)

	ipLimit, err := middleware.NewIPRateLimiter(cfg.RateLimit.RatePerIP)
	if err != nil {
		log.Fatal().Err(err).Msg("parse RATE_PER_IP")
	}

	router := httprouter.NewRouter(httprouter.RouterConfig{
		AuthHandler:   authHandler,
		OAuthHandler:  oauthHandler,
		HealthHandler: healthHandler,
		Resolver:      resolver,
		Log:           log,
		Secure:        middleware.NewSecure(middleware.SecureOptions(cfg.IsDevelopment())),
		CORS:          middleware.CORS(cfg.Server.CORSOrigins, nil, nil),
		IPRateLimit:   ipLimit,
		Metrics:       true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	if worker != nil {
		worker.Shutdown()
	}
}
