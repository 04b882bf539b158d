package auth

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/testpulse-io/testpulse/internal/application/ports"
	"github.com/testpulse-io/testpulse/internal/domain"
	domerrors "github.com/testpulse-io/testpulse/internal/domain/errors"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type RegisterUserInput struct {
	Email    string
	Password string
	Name     string
	Nickname string
}

type RegisterUserResult struct {
	User *domain.User
}

// RegisterUser creates an account, provisions a default org, and issues an
// email verification token delivered by mail.
type RegisterUser struct {
	users         ports.UserRepository
	hasher        ports.PasswordHasher
	provisioner   *OrgProvisioner
	tokens        *TokenLifecycle
	mail          ports.MailEnqueuer
	publicBaseURL string
	signupEnabled bool
}

func NewRegisterUser(users ports.UserRepository, hasher ports.PasswordHasher, provisioner *OrgProvisioner, tokens *TokenLifecycle, mail ports.MailEnqueuer, publicBaseURL string, signupEnabled bool) *RegisterUser {
	return &RegisterUser{
		users:         users,
		hasher:        hasher,
		provisioner:   provisioner,
		tokens:        tokens,
		mail:          mail,
		publicBaseURL: publicBaseURL,
		signupEnabled: signupEnabled,
	}
}

func (uc *RegisterUser) Execute(ctx context.Context, input RegisterUserInput) (*RegisterUserResult, error) {
	if !uc.signupEnabled {
		return nil, domerrors.ErrSignupsDisabled
	}
	if !emailRegex.MatchString(input.Email) {
		return nil, domerrors.ErrInvalidCredentials
	}
	existing, err := uc.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domerrors.ErrUserExists
	}
	hash, err := uc.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	user := &domain.User{
		ID:           domain.NewUserID(uuid.New()),
		Email:        input.Email,
		PasswordHash: hash,
		Name:         input.Name,
		Nickname:     input.Nickname,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}
	if _, err := uc.provisioner.EnsureMembership(ctx, user); err != nil {
		return nil, err
	}
	raw, err := uc.tokens.Issue(ctx, user.ID, domain.TokenKindEmailVerification, EmailVerificationTTL)
	if err != nil {
		return nil, err
	}
	linkURL := fmt.Sprintf("%s/auth/verify-email?token=%s", uc.publicBaseURL, raw)
	_ = uc.mail.EnqueueVerificationEmail(ctx, user.Email, linkURL)
	return &RegisterUserResult{User: user}, nil
}
