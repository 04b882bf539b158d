package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/testpulse-io/testpulse/internal/application/auth"
	"github.com/testpulse-io/testpulse/internal/application/ports"
	domerrors "github.com/testpulse-io/testpulse/internal/domain/errors"
	"github.com/testpulse-io/testpulse/internal/infrastructure/cookies"
	"github.com/testpulse-io/testpulse/internal/infrastructure/http/middleware"
	"github.com/testpulse-io/testpulse/internal/infrastructure/security"
)

// OAuthHandler runs the GitHub federation flow. CSRF protection is a signed,
// single-use state cookie: set on login, read and cleared on callback, then
// compared byte for byte with the state echoed by the provider.
type OAuthHandler struct {
	provider  ports.OAuthProvider
	callback  *auth.GitHubCallback
	cookies   *cookies.Codec
	log       zerolog.Logger
	webAppURL string
}

func NewOAuthHandler(provider ports.OAuthProvider, callback *auth.GitHubCallback, codec *cookies.Codec, log zerolog.Logger, webAppURL string) *OAuthHandler {
	return &OAuthHandler{
		provider:  provider,
		callback:  callback,
		cookies:   codec,
		log:       log,
		webAppURL: webAppURL,
	}
}

func (h *OAuthHandler) GitHubLogin(w http.ResponseWriter, r *http.Request) {
	if !h.provider.Enabled() {
		writeErr(w, http.StatusNotFound, "", "github login not configured")
		return
	}
	state, err := security.GenerateOpaqueToken()
	if err != nil {
		h.log.Error().Err(err).Msg("state generation failed")
		writeErr(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	if err := h.cookies.SetState(w, state); err != nil {
		h.log.Error().Err(err).Msg("state cookie encode failed")
		writeErr(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

func (h *OAuthHandler) GitHubCallback(w http.ResponseWriter, r *http.Request) {
	if !h.provider.Enabled() {
		writeErr(w, http.StatusNotFound, "", "github login not configured")
		return
	}
	expected, err := h.cookies.ReadState(r)
	// The state is single use: clear the cookie before any comparison.
	h.cookies.ClearState(w)
	if err != nil {
		AuditLog(h.log, r, "user.oauth_github", "", false, "missing or unreadable state cookie")
		middleware.RecordAuthAttempt("oauth_github", false)
		writeErr(w, http.StatusUnauthorized, "", domerrors.ErrOAuthStateMismatch.Error())
		return
	}
	got := r.URL.Query().Get("state")
	if subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
		AuditLog(h.log, r, "user.oauth_github", "", false, domerrors.ErrOAuthStateMismatch.Error())
		middleware.RecordAuthAttempt("oauth_github", false)
		writeErr(w, http.StatusUnauthorized, "", domerrors.ErrOAuthStateMismatch.Error())
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeErr(w, http.StatusUnauthorized, "", "missing authorization code")
		return
	}
	result, err := h.callback.Execute(r.Context(), auth.GitHubCallbackInput{Code: code})
	if err != nil {
		AuditLog(h.log, r, "user.oauth_github", "", false, err.Error())
		middleware.RecordAuthAttempt("oauth_github", false)
		if errors.Is(err, domerrors.ErrNoVerifiedEmail) {
			writeErr(w, http.StatusUnauthorized, "", err.Error())
			return
		}
		h.log.Error().Err(err).Msg("github callback failed")
		writeErr(w, http.StatusUnauthorized, "", "github login failed")
		return
	}
	if err := h.cookies.SetSession(w, result.Session.ID); err != nil {
		h.log.Error().Err(err).Msg("session cookie encode failed")
		writeErr(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	AuditLog(h.log, r, "user.oauth_github", result.User.ID.String(), true, "")
	middleware.RecordAuthAttempt("oauth_github", true)
	http.Redirect(w, r, h.webAppURL, http.StatusFound)
}
