package errors

import "errors"

// Sentinel errors for handlers to map to HTTP status.
var (
	// Credentials and registration.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserExists         = errors.New("an account with this email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailNotVerified   = errors.New("email address not verified")
	ErrSignupsDisabled    = errors.New("signups are disabled")

	// Single-use tokens (email verification, password reset).
	ErrTokenInvalid  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token has expired")
	ErrTokenConsumed = errors.New("token has already been used")

	// Sessions.
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionRevoked  = errors.New("session has been revoked")
	ErrSessionExpired  = errors.New("session has expired")

	// API keys. All of these surface to clients as one generic 401.
	ErrAPIKeyMalformed = errors.New("malformed api key")
	ErrAPIKeyUnknown   = errors.New("unknown api key")
	ErrAPIKeyRevoked   = errors.New("api key has been revoked")
	ErrAPIKeyExpired   = errors.New("api key has expired")
	ErrAPIKeyMismatch  = errors.New("api key secret mismatch")

	// Throttling and federation.
	ErrRateLimited        = errors.New("too many attempts, try again later")
	ErrOAuthStateMismatch = errors.New("oauth state mismatch")
	ErrNoVerifiedEmail    = errors.New("no verified email on provider account")

	// Org provisioning.
	ErrSlugTaken = errors.New("organization slug already taken")
)
