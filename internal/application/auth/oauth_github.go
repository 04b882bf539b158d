package auth

import (
	"context"

	"github.com/testpulse-io/testpulse/internal/application/ports"
	"github.com/testpulse-io/testpulse/internal/domain"
)

type GitHubCallbackInput struct {
	Code string
}

type GitHubCallbackResult struct {
	User    *domain.User
	Session *domain.Session
}

// GitHubCallback completes the federation flow after the state check: it
// exchanges the authorization code, resolves the provider profile to a local
// account (link-by-email or create), ensures an org membership exactly as in
// plain registration, and issues a session. OAuth logins never require email
// verification — the provider already verified the address.
type GitHubCallback struct {
	provider    ports.OAuthProvider
	users       ports.UserRepository
	provisioner *OrgProvisioner
	sessions    *SessionManager
}

func NewGitHubCallback(provider ports.OAuthProvider, users ports.UserRepository, provisioner *OrgProvisioner, sessions *SessionManager) *GitHubCallback {
	return &GitHubCallback{
		provider:    provider,
		users:       users,
		provisioner: provisioner,
		sessions:    sessions,
	}
}

func (uc *GitHubCallback) Execute(ctx context.Context, input GitHubCallbackInput) (*GitHubCallbackResult, error) {
	accessToken, err := uc.provider.Exchange(ctx, input.Code)
	if err != nil {
		return nil, err
	}
	profile, err := uc.provider.FetchProfile(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	user, err := uc.users.ResolveGitHubUser(ctx, profile.ProviderUserID, profile.Email, profile.Name, profile.Login)
	if err != nil {
		return nil, err
	}
	membership, err := uc.provisioner.EnsureMembership(ctx, user)
	if err != nil {
		return nil, err
	}
	session, err := uc.sessions.Create(ctx, user.ID, membership.OrganizationID)
	if err != nil {
		return nil, err
	}
	return &GitHubCallbackResult{User: user, Session: session}, nil
}
