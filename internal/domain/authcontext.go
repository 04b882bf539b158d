package domain

// AuthKind says how a request was authenticated.
type AuthKind string

const (
	AuthKindAnonymous AuthKind = "anonymous"
	AuthKindSession   AuthKind = "session"
	AuthKindAPIKey    AuthKind = "api_key"
)

// AuthContext is the per-request authentication result. Exactly one of
// Session or APIKey is set for authenticated requests; both are nil for
// anonymous ones.
type AuthContext struct {
	Kind           AuthKind
	UserID         UserID
	OrganizationID OrganizationID
	Session        *Session
	APIKey         *APIKey
}

// Anonymous is the resolver's fallback when no credential is presented.
var Anonymous = AuthContext{Kind: AuthKindAnonymous}

// Authenticated reports whether the context carries a verified principal.
func (a AuthContext) Authenticated() bool { return a.Kind != AuthKindAnonymous }
