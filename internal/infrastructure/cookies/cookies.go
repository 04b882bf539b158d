package cookies

import (
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

// StateTTL bounds the OAuth CSRF state cookie.
const StateTTL = 10 * time.Minute

// Codec signs and reads the session cookie and the short-lived OAuth state
// cookie (`<name>_state`). A stolen cookie without the signing key is
// useless: values are HMAC-signed with the cookie secret.
type Codec struct {
	name       string
	session    *securecookie.SecureCookie
	state      *securecookie.SecureCookie
	secure     bool
	sessionTTL time.Duration
}

// New builds a codec. secure mirrors whether the public base URL is https.
func New(name, secret string, secure bool, sessionTTL time.Duration) *Codec {
	s := securecookie.New([]byte(secret), nil)
	s.MaxAge(int(sessionTTL.Seconds()))
	st := securecookie.New([]byte(secret), nil)
	st.MaxAge(int(StateTTL.Seconds()))
	return &Codec{
		name:       name,
		session:    s,
		state:      st,
		secure:     secure,
		sessionTTL: sessionTTL,
	}
}

// Name returns the session cookie name.
func (c *Codec) Name() string { return c.name }

// StateName returns the OAuth state cookie name.
func (c *Codec) StateName() string { return c.name + "_state" }

// SetSession wraps the session id in a signed cookie.
func (c *Codec) SetSession(w http.ResponseWriter, sessionID string) error {
	encoded, err := c.session.Encode(c.name, sessionID)
	if err != nil {
		return err
	}
	http.SetCookie(w, c.cookie(c.name, encoded, int(c.sessionTTL.Seconds())))
	return nil
}

// ReadSession unsigns the session cookie. Returns the session id, or an
// error when the cookie is absent or its signature invalid.
func (c *Codec) ReadSession(r *http.Request) (string, error) {
	ck, err := r.Cookie(c.name)
	if err != nil {
		return "", err
	}
	var sessionID string
	if err := c.session.Decode(c.name, ck.Value, &sessionID); err != nil {
		return "", err
	}
	return sessionID, nil
}

// ClearSession expires the session cookie.
func (c *Codec) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(c.name, "", -1))
}

// SetState wraps the OAuth CSRF state in a signed, short-lived cookie.
func (c *Codec) SetState(w http.ResponseWriter, state string) error {
	encoded, err := c.state.Encode(c.StateName(), state)
	if err != nil {
		return err
	}
	http.SetCookie(w, c.cookie(c.StateName(), encoded, int(StateTTL.Seconds())))
	return nil
}

// ReadState unsigns the state cookie.
func (c *Codec) ReadState(r *http.Request) (string, error) {
	ck, err := r.Cookie(c.StateName())
	if err != nil {
		return "", err
	}
	var state string
	if err := c.state.Decode(c.StateName(), ck.Value, &state); err != nil {
		return "", err
	}
	return state, nil
}

// ClearState expires the state cookie. The state is single use.
func (c *Codec) ClearState(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(c.StateName(), "", -1))
}

func (c *Codec) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
