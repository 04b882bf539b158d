package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testpulse-io/testpulse/internal/application/auth"
	"github.com/testpulse-io/testpulse/internal/domain"
	"github.com/testpulse-io/testpulse/internal/infrastructure/cookies"
	"github.com/testpulse-io/testpulse/internal/infrastructure/persistence/memory"
	"github.com/testpulse-io/testpulse/internal/infrastructure/security"
)

type resolverFixture struct {
	store    *memory.Store
	sessions *auth.SessionManager
	codec    *cookies.Codec
	handler  http.Handler
	seen     *domain.AuthContext
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	store := memory.NewStore()
	log := zerolog.Nop()
	sessions := auth.NewSessionManager(store.Sessions(), time.Hour, log)
	apiKeys := auth.NewAPIKeyAuthenticator(store.APIKeys(), log)
	codec := cookies.New("tp_session", "0123456789abcdef0123456789abcdef", false, time.Hour)
	resolver := NewAuthResolver(sessions, apiKeys, codec, log)

	f := &resolverFixture{store: store, sessions: sessions, codec: codec}
	f.handler = resolver.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, _ := AuthContextFrom(r.Context())
		f.seen = &ac
		w.WriteHeader(http.StatusOK)
	}))
	return f
}

func (f *resolverFixture) sessionCookie(t *testing.T, sessionID string) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, f.codec.SetSession(rec, sessionID))
	cks := rec.Result().Cookies()
	require.Len(t, cks, 1)
	return cks[0]
}

func TestResolverAnonymousWithoutCredentials(t *testing.T) {
	f := newResolverFixture(t)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.seen)
	assert.Equal(t, domain.AuthKindAnonymous, f.seen.Kind)
}

func TestResolverValidSessionCookie(t *testing.T) {
	f := newResolverFixture(t)
	userID := domain.NewUserID(uuid.New())
	orgID := domain.NewOrganizationID(uuid.New())
	session, err := f.sessions.Create(context.Background(), userID, orgID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(f.sessionCookie(t, session.ID))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.seen)
	assert.Equal(t, domain.AuthKindSession, f.seen.Kind)
	assert.Equal(t, userID, f.seen.UserID)
	assert.Equal(t, orgID, f.seen.OrganizationID)
}

func TestResolverStaleCookieDegradesToAnonymous(t *testing.T) {
	f := newResolverFixture(t)

	// Well-signed cookie for a session that no longer exists.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(f.sessionCookie(t, "gone-session"))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.seen)
	assert.Equal(t, domain.AuthKindAnonymous, f.seen.Kind)

	// And the cookie is cleared so the browser stops presenting it.
	var cleared bool
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "tp_session" && ck.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "stale session cookie should be cleared")
}

func TestResolverForgedCookieDegradesToAnonymous(t *testing.T) {
	f := newResolverFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "tp_session", Value: "not-a-signed-value"})
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.seen)
	assert.Equal(t, domain.AuthKindAnonymous, f.seen.Kind)
}

func TestResolverValidAPIKey(t *testing.T) {
	f := newResolverFixture(t)
	secret := "0123456789abcdef0123456789abcdef"
	orgID := domain.NewOrganizationID(uuid.New())
	f.store.AddAPIKey(&domain.APIKey{
		ID:         domain.NewAPIKeyID(uuid.New()),
		Name:       "ci",
		Prefix:     "tp_ci0001",
		SecretHash: security.HashOpaque(secret),
		OrgID:      orgID,
		CreatedAt:  time.Now(),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(APIKeyHeader, "tp_ci0001."+secret)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.seen)
	assert.Equal(t, domain.AuthKindAPIKey, f.seen.Kind)
	assert.Equal(t, orgID, f.seen.OrganizationID)
}

func TestResolverInvalidAPIKeyHardFails(t *testing.T) {
	f := newResolverFixture(t)

	tests := []struct {
		name string
		key  string
	}{
		{"malformed", "garbage"},
		{"unknown prefix", "tp_zz9999.0123456789abcdef0123456789abcdef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.seen = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(APIKeyHeader, tt.key)
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, f.seen, "handler must not run on a rejected key")
			assert.Contains(t, rec.Body.String(), "invalid API key")
		})
	}
}

func TestResolverSessionWinsOverAPIKey(t *testing.T) {
	f := newResolverFixture(t)
	userID := domain.NewUserID(uuid.New())
	orgID := domain.NewOrganizationID(uuid.New())
	session, err := f.sessions.Create(context.Background(), userID, orgID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(f.sessionCookie(t, session.ID))
	req.Header.Set(APIKeyHeader, "tp_zz9999.0123456789abcdef0123456789abcdef")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	// The valid cookie resolves first; the bad header is never consulted.
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.seen)
	assert.Equal(t, domain.AuthKindSession, f.seen.Kind)
}

func TestRequireAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := RequireAuth(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := WithAuthContext(req.Context(), domain.AuthContext{Kind: domain.AuthKindSession})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)
}
