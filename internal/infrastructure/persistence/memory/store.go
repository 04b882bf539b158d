// Package memory provides an in-memory credential store. It backs the
// service when no DATABASE_URL is configured (local development) and the
// handler test suite. Redemption mimics the transactional semantics of the
// postgres store under a single lock.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/testpulse-io/testpulse/internal/application/ports"
	"github.com/testpulse-io/testpulse/internal/domain"
	domerrors "github.com/testpulse-io/testpulse/internal/domain/errors"
)

// Store holds every table behind one lock. The Users/Organizations/Sessions/
// APIKeys/Tokens views adapt it to the individual persistence ports.
type Store struct {
	mu          sync.RWMutex
	users       map[domain.UserID]*domain.User
	usersByMail map[string]domain.UserID
	orgs        map[domain.OrganizationID]*domain.Organization
	slugs       map[string]domain.OrganizationID
	memberships []*domain.Membership
	sessions    map[string]*domain.Session
	apiKeys     map[string]*domain.APIKey
	tokens      map[string]*domain.Token
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:       make(map[domain.UserID]*domain.User),
		usersByMail: make(map[string]domain.UserID),
		orgs:        make(map[domain.OrganizationID]*domain.Organization),
		slugs:       make(map[string]domain.OrganizationID),
		sessions:    make(map[string]*domain.Session),
		apiKeys:     make(map[string]*domain.APIKey),
		tokens:      make(map[string]*domain.Token),
	}
}

// Port views.

func (s *Store) Users() ports.UserRepository                 { return userView{s} }
func (s *Store) Organizations() ports.OrganizationRepository { return orgView{s} }
func (s *Store) Sessions() ports.SessionStore                { return sessionView{s} }
func (s *Store) APIKeys() ports.APIKeyStore                  { return apiKeyView{s} }
func (s *Store) Tokens() ports.TokenStore                    { return tokenView{s} }

// --- users ---

type userView struct{ s *Store }

func (v userView) Create(ctx context.Context, user *domain.User) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usersByMail[user.Email]; ok {
		return domerrors.ErrUserExists
	}
	u := *user
	s.users[u.ID] = &u
	s.usersByMail[u.Email] = u.ID
	return nil
}

func (v userView) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s := v.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByMail[email]
	if !ok {
		return nil, nil
	}
	return copyUser(s.users[id]), nil
}

func (v userView) GetByID(ctx context.Context, userID domain.UserID) (*domain.User, error) {
	s := v.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyUser(s.users[userID]), nil
}

func (v userView) ResolveGitHubUser(ctx context.Context, githubID int64, email, name, nickname string) (*domain.User, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.GitHubID != nil && *u.GitHubID == githubID {
			u.Name, u.Nickname = name, nickname
			u.UpdatedAt = time.Now()
			return copyUser(u), nil
		}
	}
	if id, ok := s.usersByMail[email]; ok {
		u := s.users[id]
		gh := githubID
		u.GitHubID = &gh
		u.UpdatedAt = time.Now()
		return copyUser(u), nil
	}
	now := time.Now()
	gh := githubID
	u := &domain.User{
		ID:              domain.NewUserID(uuid.New()),
		Email:           email,
		Name:            name,
		Nickname:        nickname,
		GitHubID:        &gh,
		EmailVerifiedAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.users[u.ID] = u
	s.usersByMail[u.Email] = u.ID
	return copyUser(u), nil
}

// --- organizations ---

type orgView struct{ s *Store }

func (v orgView) CreateWithAdmin(ctx context.Context, org *domain.Organization, userID domain.UserID) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slugs[org.Slug]; ok {
		return domerrors.ErrSlugTaken
	}
	o := *org
	s.orgs[o.ID] = &o
	s.slugs[o.Slug] = o.ID
	s.memberships = append(s.memberships, &domain.Membership{
		OrganizationID: o.ID,
		UserID:         userID,
		Role:           domain.RoleAdmin,
		CreatedAt:      o.CreatedAt,
	})
	return nil
}

func (v orgView) GetByID(ctx context.Context, orgID domain.OrganizationID) (*domain.Organization, error) {
	s := v.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orgs[orgID]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (v orgView) FirstMembership(ctx context.Context, userID domain.UserID) (*domain.Membership, error) {
	s := v.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var first *domain.Membership
	for _, m := range s.memberships {
		if m.UserID != userID {
			continue
		}
		if first == nil || m.CreatedAt.Before(first.CreatedAt) {
			first = m
		}
	}
	if first == nil {
		return nil, nil
	}
	cp := *first
	return &cp, nil
}

// --- sessions ---

type sessionView struct{ s *Store }

func (v sessionView) Create(ctx context.Context, session *domain.Session) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[cp.ID] = &cp
	return nil
}

func (v sessionView) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	s := v.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (v sessionView) Touch(ctx context.Context, sessionID string, at time.Time) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.LastSeenAt = at
	}
	return nil
}

func (v sessionView) Revoke(ctx context.Context, sessionID string) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok && sess.RevokedAt == nil {
		now := time.Now()
		sess.RevokedAt = &now
	}
	return nil
}

func (v sessionView) RevokeAllForUser(ctx context.Context, userID domain.UserID) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokeAllLocked(userID)
	return nil
}

func (s *Store) revokeAllLocked(userID domain.UserID) {
	now := time.Now()
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.RevokedAt == nil {
			at := now
			sess.RevokedAt = &at
		}
	}
}

// DeleteSession removes the row outright (tests exercise the missing-row
// path; postgres deployments would do this via a retention job).
func (s *Store) DeleteSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// --- api keys ---

type apiKeyView struct{ s *Store }

func (v apiKeyView) GetByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error) {
	s := v.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.apiKeys[prefix]
	if !ok {
		return nil, nil
	}
	cp := *key
	return &cp, nil
}

func (v apiKeyView) TouchLastUsed(ctx context.Context, keyID domain.APIKeyID, at time.Time) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.apiKeys {
		if key.ID == keyID {
			key.LastUsedAt = &at
		}
	}
	return nil
}

// AddAPIKey seeds a provisioned key (dev mode and tests).
func (s *Store) AddAPIKey(key *domain.APIKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *key
	s.apiKeys[cp.Prefix] = &cp
}

// --- tokens ---

type tokenView struct{ s *Store }

func (v tokenView) Create(ctx context.Context, token *domain.Token) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *token
	s.tokens[cp.TokenHash] = &cp
	return nil
}

func (v tokenView) RedeemEmailVerification(ctx context.Context, tokenHash string) (domain.UserID, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	token, err := s.lockTokenLocked(tokenHash, domain.TokenKindEmailVerification)
	if err != nil {
		return domain.UserID{}, err
	}
	if u, ok := s.users[token.UserID]; ok && u.EmailVerifiedAt == nil {
		now := time.Now()
		u.EmailVerifiedAt = &now
	}
	s.consumeKindLocked(token.UserID, domain.TokenKindEmailVerification)
	return token.UserID, nil
}

func (v tokenView) RedeemPasswordReset(ctx context.Context, tokenHash, newPasswordHash string) (domain.UserID, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	token, err := s.lockTokenLocked(tokenHash, domain.TokenKindPasswordReset)
	if err != nil {
		return domain.UserID{}, err
	}
	if u, ok := s.users[token.UserID]; ok {
		u.PasswordHash = newPasswordHash
		u.UpdatedAt = time.Now()
	}
	s.consumeKindLocked(token.UserID, domain.TokenKindPasswordReset)
	s.revokeAllLocked(token.UserID)
	return token.UserID, nil
}

func (s *Store) lockTokenLocked(tokenHash string, kind domain.TokenKind) (*domain.Token, error) {
	token, ok := s.tokens[tokenHash]
	if !ok || token.Kind != kind {
		return nil, domerrors.ErrTokenInvalid
	}
	if !token.ExpiresAt.After(time.Now()) {
		return nil, domerrors.ErrTokenExpired
	}
	if token.ConsumedAt != nil {
		return nil, domerrors.ErrTokenConsumed
	}
	return token, nil
}

func (s *Store) consumeKindLocked(userID domain.UserID, kind domain.TokenKind) {
	now := time.Now()
	for _, t := range s.tokens {
		if t.UserID == userID && t.Kind == kind && t.ConsumedAt == nil {
			at := now
			t.ConsumedAt = &at
		}
	}
}

func copyUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

var (
	_ ports.UserRepository         = userView{}
	_ ports.OrganizationRepository = orgView{}
	_ ports.SessionStore           = sessionView{}
	_ ports.APIKeyStore            = apiKeyView{}
	_ ports.TokenStore             = tokenView{}
)
