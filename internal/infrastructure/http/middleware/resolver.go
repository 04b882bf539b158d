package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/testpulse-io/testpulse/internal/application/auth"
	"github.com/testpulse-io/testpulse/internal/domain"
	"github.com/testpulse-io/testpulse/internal/infrastructure/cookies"
)

// APIKeyHeader carries machine credentials as "<prefix>.<secret>".
const APIKeyHeader = "x-api-key"

// AuthResolver turns request credentials into a domain.AuthContext. Order:
// an already-resolved context wins; then the signed session cookie; then the
// x-api-key header; else anonymous. A bad cookie degrades to anonymous and
// clears the cookie. A bad API key is an explicit credential, so it hard-fails
// with a generic 401 rather than degrading.
type AuthResolver struct {
	sessions *auth.SessionManager
	apiKeys  *auth.APIKeyAuthenticator
	cookies  *cookies.Codec
	log      zerolog.Logger
}

func NewAuthResolver(sessions *auth.SessionManager, apiKeys *auth.APIKeyAuthenticator, codec *cookies.Codec, log zerolog.Logger) *AuthResolver {
	return &AuthResolver{sessions: sessions, apiKeys: apiKeys, cookies: codec, log: log}
}

func (m *AuthResolver) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := AuthContextFrom(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}

		if sessionID, err := m.cookies.ReadSession(r); err == nil {
			session, err := m.sessions.Validate(r.Context(), sessionID)
			if err != nil {
				// Stale or forged cookie. Clear it and continue anonymous.
				m.cookies.ClearSession(w)
			} else {
				ac := domain.AuthContext{
					Kind:           domain.AuthKindSession,
					UserID:         session.UserID,
					OrganizationID: session.OrganizationID,
					Session:        session,
				}
				next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), ac)))
				return
			}
		}

		if presented := r.Header.Get(APIKeyHeader); presented != "" {
			key, err := m.apiKeys.Authenticate(r.Context(), presented)
			if err != nil {
				m.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("api key rejected")
				RecordAuthAttempt("api_key", false)
				writeResolverErr(w, http.StatusUnauthorized, "unauthorized", "invalid API key")
				return
			}
			RecordAuthAttempt("api_key", true)
			ac := domain.AuthContext{
				Kind:           domain.AuthKindAPIKey,
				OrganizationID: key.OrgID,
				APIKey:         key,
			}
			if key.UserID != nil {
				ac.UserID = *key.UserID
			}
			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), ac)))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), domain.Anonymous)))
	})
}

// RequireAuth rejects anonymous requests. Use after AuthResolver.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, _ := AuthContextFrom(r.Context())
		if !ac.Authenticated() {
			writeResolverErr(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeResolverErr(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": errCode, "message": message})
}
