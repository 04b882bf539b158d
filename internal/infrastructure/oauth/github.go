package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	"github.com/testpulse-io/testpulse/internal/application/ports"
	domerrors "github.com/testpulse-io/testpulse/internal/domain/errors"
)

// requestTimeout bounds every outbound call to GitHub.
const requestTimeout = 10 * time.Second

// GitHubProvider implements ports.OAuthProvider against the GitHub
// authorization-code flow and REST API.
type GitHubProvider struct {
	config     *oauth2.Config
	apiBaseURL string
	httpClient *http.Client
}

// NewGitHubProvider builds the provider. The redirect URI is derived from
// the public base URL. An empty client id/secret disables the provider.
func NewGitHubProvider(clientID, clientSecret, publicBaseURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     githuboauth.Endpoint,
			RedirectURL:  publicBaseURL + "/auth/github/callback",
			Scopes:       []string{"read:user", "user:email"},
		},
		apiBaseURL: "https://api.github.com",
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// SetAPIBaseURL overrides the GitHub API base (tests).
func (p *GitHubProvider) SetAPIBaseURL(base string) { p.apiBaseURL = base }

// SetAuthURLs overrides the authorize/token endpoints (tests).
func (p *GitHubProvider) SetAuthURLs(authURL, tokenURL string) {
	p.config.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
}

func (p *GitHubProvider) Enabled() bool {
	return p.config.ClientID != "" && p.config.ClientSecret != ""
}

func (p *GitHubProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *GitHubProvider) Exchange(ctx context.Context, code string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// FetchProfile loads the user profile and email list. The chosen email is
// the primary verified address, falling back to any verified address;
// without one the login is rejected with ErrNoVerifiedEmail.
func (p *GitHubProvider) FetchProfile(ctx context.Context, accessToken string) (*ports.OAuthProfile, error) {
	var user githubUser
	if err := p.getJSON(ctx, accessToken, "/user", &user); err != nil {
		return nil, err
	}
	var emails []githubEmail
	if err := p.getJSON(ctx, accessToken, "/user/emails", &emails); err != nil {
		return nil, err
	}
	email := ""
	for _, e := range emails {
		if e.Primary && e.Verified {
			email = e.Email
			break
		}
	}
	if email == "" {
		for _, e := range emails {
			if e.Verified {
				email = e.Email
				break
			}
		}
	}
	if email == "" {
		return nil, domerrors.ErrNoVerifiedEmail
	}
	name := user.Name
	if name == "" {
		name = user.Login
	}
	return &ports.OAuthProfile{
		ProviderUserID: user.ID,
		Login:          user.Login,
		Name:           name,
		Email:          email,
	}, nil
}

func (p *GitHubProvider) getJSON(ctx context.Context, accessToken, path string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github api %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ ports.OAuthProvider = (*GitHubProvider)(nil)
