package ports

import "context"

// OAuthProfile is the provider identity used for account resolution. Email
// is the chosen verified address (primary-verified, falling back to any
// verified address).
type OAuthProfile struct {
	ProviderUserID int64
	Login          string
	Name           string
	Email          string
}

// OAuthProvider performs the authorization-code exchange and profile
// resolution against the federation provider.
type OAuthProvider interface {
	Enabled() bool
	AuthCodeURL(state string) string
	// Exchange trades the authorization code for an access token.
	Exchange(ctx context.Context, code string) (string, error)
	// FetchProfile resolves the provider profile and a verified email.
	// Returns domerrors.ErrNoVerifiedEmail when no verified address exists.
	FetchProfile(ctx context.Context, accessToken string) (*OAuthProfile, error)
}
