package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/testpulse-io/testpulse/internal/application/auth"
	"github.com/testpulse-io/testpulse/internal/domain"
	httprouter "github.com/testpulse-io/testpulse/internal/infrastructure/http"
	"github.com/testpulse-io/testpulse/internal/infrastructure/cookies"
	"github.com/testpulse-io/testpulse/internal/infrastructure/http/handlers"
	"github.com/testpulse-io/testpulse/internal/infrastructure/http/middleware"
	"github.com/testpulse-io/testpulse/internal/infrastructure/oauth"
	"github.com/testpulse-io/testpulse/internal/infrastructure/persistence/memory"
	"github.com/testpulse-io/testpulse/internal/infrastructure/ratelimit"
	"github.com/testpulse-io/testpulse/internal/infrastructure/security"
)

const (
	apiBaseURL = "http://api.local"
	webAppURL  = "http://app.local"
)

// captureMail records enqueued emails so tests can pull raw token links.
type captureMail struct {
	mu            sync.Mutex
	verifications []string
	resets        []string
}

func (c *captureMail) EnqueueVerificationEmail(ctx context.Context, email, linkURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verifications = append(c.verifications, linkURL)
	return nil
}

func (c *captureMail) EnqueuePasswordResetEmail(ctx context.Context, email, linkURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets = append(c.resets, linkURL)
	return nil
}

func (c *captureMail) lastVerificationToken(t *testing.T) string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.verifications, "expected a verification email")
	return tokenFromLink(t, c.verifications[len(c.verifications)-1])
}

func (c *captureMail) lastResetToken(t *testing.T) string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.resets, "expected a password reset email")
	return tokenFromLink(t, c.resets[len(c.resets)-1])
}

func tokenFromLink(t *testing.T, linkURL string) string {
	t.Helper()
	i := strings.Index(linkURL, "token=")
	require.GreaterOrEqual(t, i, 0, "link %q should carry a token", linkURL)
	return linkURL[i+len("token="):]
}

type serverOptions struct {
	signupEnabled bool
	loginLimit    int
	github        *oauth.GitHubProvider
}

type testServer struct {
	store    *memory.Store
	mail     *captureMail
	codec    *cookies.Codec
	sessions *auth.SessionManager
	router   http.Handler
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	log := zerolog.Nop()
	store := memory.NewStore()
	mail := &captureMail{}
	hasher := security.NewArgon2Hasher(security.Argon2Params{
		Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})

	loginLimit := opts.loginLimit
	if loginLimit == 0 {
		loginLimit = 10
	}
	limiter := ratelimit.NewMemoryLimiter(map[string]ratelimit.Policy{
		auth.ActionLogin:          {Limit: loginLimit, Window: time.Minute},
		auth.ActionForgotPassword: {Limit: 5, Window: time.Minute},
	})

	codec := cookies.New("tp_session", "0123456789abcdef0123456789abcdef", false, time.Hour)
	sessions := auth.NewSessionManager(store.Sessions(), time.Hour, log)
	tokens := auth.NewTokenLifecycle(store.Tokens())
	provisioner := auth.NewOrgProvisioner(store.Organizations())
	apiKeys := auth.NewAPIKeyAuthenticator(store.APIKeys(), log)

	registerUC := auth.NewRegisterUser(store.Users(), hasher, provisioner, tokens, mail, apiBaseURL, opts.signupEnabled)
	loginUC := auth.NewLogin(store.Users(), hasher, sessions, provisioner, tokens, mail, limiter, apiBaseURL)
	verifyEmailUC := auth.NewVerifyEmail(tokens)
	resendUC := auth.NewResendVerification(store.Users(), tokens, mail, apiBaseURL)
	forgotUC := auth.NewForgotPassword(store.Users(), tokens, mail, limiter, webAppURL)
	resetUC := auth.NewResetPassword(tokens, hasher)

	github := opts.github
	if github == nil {
		github = oauth.NewGitHubProvider("", "", apiBaseURL)
	}
	githubCallbackUC := auth.NewGitHubCallback(github, store.Users(), provisioner, sessions)

	resolver := middleware.NewAuthResolver(sessions, apiKeys, codec, log)
	authHandler := handlers.NewAuthHandler(
		registerUC, loginUC, verifyEmailUC, resendUC, forgotUC, resetUC,
		sessions, store.Users(), store.Organizations(), codec, log,
		webAppURL, opts.signupEnabled, github.Enabled())
	oauthHandler := handlers.NewOAuthHandler(github, githubCallbackUC, codec, log, webAppURL)

	router := httprouter.NewRouter(httprouter.RouterConfig{
		AuthHandler:  authHandler,
		OAuthHandler: oauthHandler,
		Resolver:     resolver,
		Log:          log,
	})

	return &testServer{store: store, mail: mail, codec: codec, sessions: sessions, router: router}
}

func (s *testServer) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doWithAPIKey(method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("x-api-key", key)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func seedTestAPIKey(s *testServer, secret string) {
	s.store.AddAPIKey(&domain.APIKey{
		ID:         domain.NewAPIKeyID(uuid.New()),
		Name:       "ci uploader",
		Prefix:     "tp_ci0001",
		SecretHash: security.HashOpaque(secret),
		OrgID:      domain.NewOrganizationID(uuid.New()),
		CreatedAt:  time.Now(),
	})
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "tp_session" && ck.MaxAge >= 0 && ck.Value != "" {
			return ck
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

// rawSessionID unsigns a session cookie back to the stored session id.
func (s *testServer) rawSessionID(t *testing.T, ck *http.Cookie) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(ck)
	id, err := s.codec.ReadSession(req)
	require.NoError(t, err)
	return id
}
