package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/testpulse-io/testpulse/internal/application/auth"
	"github.com/testpulse-io/testpulse/internal/application/ports"
	domerrors "github.com/testpulse-io/testpulse/internal/domain/errors"
	"github.com/testpulse-io/testpulse/internal/infrastructure/cookies"
	"github.com/testpulse-io/testpulse/internal/infrastructure/http/middleware"
)

type AuthHandler struct {
	register      *auth.RegisterUser
	login         *auth.Login
	verifyEmail   *auth.VerifyEmail
	resend        *auth.ResendVerification
	forgot        *auth.ForgotPassword
	reset         *auth.ResetPassword
	sessions      *auth.SessionManager
	userRepo      ports.UserRepository
	orgRepo       ports.OrganizationRepository
	cookies       *cookies.Codec
	validate      *validator.Validate
	log           zerolog.Logger
	webAppURL     string
	signupEnabled bool
	githubEnabled bool
}

func NewAuthHandler(register *auth.RegisterUser, login *auth.Login, verifyEmail *auth.VerifyEmail, resend *auth.ResendVerification, forgot *auth.ForgotPassword, reset *auth.ResetPassword, sessions *auth.SessionManager, userRepo ports.UserRepository, orgRepo ports.OrganizationRepository, codec *cookies.Codec, log zerolog.Logger, webAppURL string, signupEnabled, githubEnabled bool) *AuthHandler {
	return &AuthHandler{
		register:      register,
		login:         login,
		verifyEmail:   verifyEmail,
		resend:        resend,
		forgot:        forgot,
		reset:         reset,
		sessions:      sessions,
		userRepo:      userRepo,
		orgRepo:       orgRepo,
		cookies:       codec,
		validate:      validator.New(),
		log:           log,
		webAppURL:     webAppURL,
		signupEnabled: signupEnabled,
		githubEnabled: githubEnabled,
	}
}

// Config tells the web app which auth features are live.
func (h *AuthHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"signup_enabled": h.signupEnabled,
		"github_enabled": h.githubEnabled,
	})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email" validate:"required,email,max=254"`
		Password string `json:"password" validate:"required,min=8,max=128"`
		Name     string `json:"name" validate:"max=200"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid body")
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", err.Error())
		return
	}
	email := SanitizeEmail(body.Email)
	password := SanitizePassword(body.Password)
	if email == "" || password == "" {
		writeErr(w, http.StatusBadRequest, "", "invalid email or password length")
		return
	}
	result, err := h.register.Execute(r.Context(), auth.RegisterUserInput{
		Email:    email,
		Password: password,
		Name:     body.Name,
	})
	if err != nil {
		AuditLog(h.log, r, "user.register", "", false, err.Error())
		middleware.RecordAuthAttempt("register", false)
		switch {
		case errors.Is(err, domerrors.ErrSignupsDisabled):
			writeErr(w, http.StatusForbidden, ErrCodeSignupsDisabled, err.Error())
		case errors.Is(err, domerrors.ErrUserExists):
			writeErr(w, http.StatusConflict, "", err.Error())
		case errors.Is(err, domerrors.ErrInvalidCredentials):
			writeErr(w, http.StatusBadRequest, "", "invalid email address")
		default:
			h.log.Error().Err(err).Msg("register failed")
			writeErr(w, http.StatusInternalServerError, "", "internal error")
		}
		return
	}
	AuditLog(h.log, r, "user.register", result.User.ID.String(), true, "")
	middleware.RecordAuthAttempt("register", true)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":         result.User.ID.String(),
		"email":      result.User.Email,
		"created_at": result.User.CreatedAt,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email" validate:"required,email,max=254"`
		Password string `json:"password" validate:"required,max=128"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid body")
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", err.Error())
		return
	}
	email := SanitizeEmail(body.Email)
	password := SanitizePassword(body.Password)
	if email == "" || password == "" {
		writeErr(w, http.StatusBadRequest, "", "invalid email or password length")
		return
	}
	result, err := h.login.Execute(r.Context(), auth.LoginInput{
		Email:    email,
		Password: password,
		RemoteIP: getClientIP(r),
	})
	if err != nil {
		AuditLog(h.log, r, "user.login", "", false, err.Error())
		middleware.RecordAuthAttempt("login", false)
		switch {
		case errors.Is(err, domerrors.ErrRateLimited):
			writeErr(w, http.StatusTooManyRequests, "", err.Error())
		case errors.Is(err, domerrors.ErrInvalidCredentials):
			writeErr(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, err.Error())
		case errors.Is(err, domerrors.ErrEmailNotVerified):
			// A fresh verification link has already been mailed.
			writeErr(w, http.StatusForbidden, ErrCodeEmailNotVerified, err.Error())
		default:
			h.log.Error().Err(err).Msg("login failed")
			writeErr(w, http.StatusInternalServerError, "", "internal error")
		}
		return
	}
	if err := h.cookies.SetSession(w, result.Session.ID); err != nil {
		h.log.Error().Err(err).Msg("session cookie encode failed")
		writeErr(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	AuditLog(h.log, r, "user.login", result.User.ID.String(), true, "")
	middleware.RecordAuthAttempt("login", true)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": map[string]interface{}{
			"id":    result.User.ID.String(),
			"email": result.User.Email,
			"name":  result.User.Name,
		},
		"organization_id": result.Session.OrganizationID.String(),
		"expires_at":      result.Session.ExpiresAt,
	})
}

// VerifyEmail consumes the link token from the query string and redirects to
// the web app. Link clicks come from mail clients, so errors redirect too —
// except a missing token, which is a plain 400.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		writeErr(w, http.StatusBadRequest, ErrCodeInvalidToken, "missing token")
		return
	}
	result, err := h.verifyEmail.Execute(r.Context(), auth.VerifyEmailInput{Token: raw})
	if err != nil {
		AuditLog(h.log, r, "user.verify_email", "", false, err.Error())
		switch {
		case errors.Is(err, domerrors.ErrTokenExpired):
			writeErr(w, http.StatusBadRequest, ErrCodeInvalidToken, err.Error())
		case errors.Is(err, domerrors.ErrTokenConsumed):
			writeErr(w, http.StatusBadRequest, ErrCodeInvalidToken, err.Error())
		case errors.Is(err, domerrors.ErrTokenInvalid):
			writeErr(w, http.StatusBadRequest, ErrCodeInvalidToken, err.Error())
		default:
			h.log.Error().Err(err).Msg("verify email failed")
			writeErr(w, http.StatusInternalServerError, "", "internal error")
		}
		return
	}
	AuditLog(h.log, r, "user.verify_email", result.UserID.String(), true, "")
	http.Redirect(w, r, h.webAppURL+"/login?verified=1", http.StatusFound)
}

// ResendVerification always answers 204; it must not reveal whether the email
// maps to an account or whether that account is already verified.
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email" validate:"required,email,max=254"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid body")
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", err.Error())
		return
	}
	email := SanitizeEmail(body.Email)
	if email == "" {
		writeErr(w, http.StatusBadRequest, "", "invalid email")
		return
	}
	if _, err := h.resend.Execute(r.Context(), auth.ResendVerificationInput{Email: email}); err != nil {
		h.log.Error().Err(err).Msg("resend verification failed")
		writeErr(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ForgotPassword always answers 204: unknown emails and rate-limited callers
// are indistinguishable from the happy path.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email" validate:"required,email,max=254"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid body")
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", err.Error())
		return
	}
	email := SanitizeEmail(body.Email)
	if email == "" {
		writeErr(w, http.StatusBadRequest, "", "invalid email")
		return
	}
	if _, err := h.forgot.Execute(r.Context(), auth.ForgotPasswordInput{
		Email:    email,
		RemoteIP: getClientIP(r),
	}); err != nil {
		h.log.Error().Err(err).Msg("forgot password failed")
		writeErr(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token       string `json:"token" validate:"required"`
		NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid body")
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", err.Error())
		return
	}
	password := SanitizePassword(body.NewPassword)
	if password == "" {
		writeErr(w, http.StatusBadRequest, "", "invalid password length")
		return
	}
	result, err := h.reset.Execute(r.Context(), auth.ResetPasswordInput{
		Token:       body.Token,
		NewPassword: password,
	})
	if err != nil {
		AuditLog(h.log, r, "user.reset_password", "", false, err.Error())
		switch {
		case errors.Is(err, domerrors.ErrTokenInvalid),
			errors.Is(err, domerrors.ErrTokenExpired),
			errors.Is(err, domerrors.ErrTokenConsumed):
			writeErr(w, http.StatusBadRequest, ErrCodeInvalidToken, err.Error())
		default:
			h.log.Error().Err(err).Msg("reset password failed")
			writeErr(w, http.StatusInternalServerError, "", "internal error")
		}
		return
	}
	AuditLog(h.log, r, "user.reset_password", result.UserID.String(), true, "")
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated principal. Requires the resolver upstream.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, _ := middleware.AuthContextFrom(r.Context())
	if !ac.Authenticated() {
		writeErr(w, http.StatusUnauthorized, "", "authentication required")
		return
	}
	resp := map[string]interface{}{
		"auth_kind":       string(ac.Kind),
		"organization_id": ac.OrganizationID.String(),
	}
	if !ac.UserID.IsZero() {
		user, err := h.userRepo.GetByID(r.Context(), ac.UserID)
		if err != nil || user == nil {
			h.log.Error().Err(err).Str("user_id", ac.UserID.String()).Msg("me lookup failed")
			writeErr(w, http.StatusInternalServerError, "", "internal error")
			return
		}
		resp["user"] = map[string]interface{}{
			"id":             user.ID.String(),
			"email":          user.Email,
			"name":           user.Name,
			"email_verified": user.EmailVerified(),
		}
	}
	if org, err := h.orgRepo.GetByID(r.Context(), ac.OrganizationID); err == nil && org != nil {
		resp["organization"] = map[string]interface{}{
			"id":   org.ID.String(),
			"name": org.Name,
			"slug": org.Slug,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Logout revokes the current session and clears the cookie. Always 204, even
// for anonymous callers.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac, _ := middleware.AuthContextFrom(r.Context())
	if ac.Session != nil {
		if err := h.sessions.Revoke(r.Context(), ac.Session.ID); err != nil {
			h.log.Error().Err(err).Msg("logout revoke failed")
			writeErr(w, http.StatusInternalServerError, "", "internal error")
			return
		}
		AuditLog(h.log, r, "user.logout", ac.UserID.String(), true, "")
	}
	h.cookies.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}
