package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/testpulse-io/testpulse/internal/application/ports"
	"github.com/testpulse-io/testpulse/internal/domain"
	domerrors "github.com/testpulse-io/testpulse/internal/domain/errors"
)

// slugRetries bounds the collision loop. The suffix space makes exhaustion
// practically impossible; hitting the bound bubbles as an internal error.
const slugRetries = 10

// OrgProvisioner guarantees every user has at least one organization
// membership. Users without one get an auto-created "Org of {localpart}" and
// an ADMIN membership; slug collisions are resolved by a numeric suffix
// retry loop.
type OrgProvisioner struct {
	orgs ports.OrganizationRepository
}

// NewOrgProvisioner builds the provisioner.
func NewOrgProvisioner(orgs ports.OrganizationRepository) *OrgProvisioner {
	return &OrgProvisioner{orgs: orgs}
}

// EnsureMembership returns the user's first membership, creating org and
// ADMIN membership when none exists.
func (p *OrgProvisioner) EnsureMembership(ctx context.Context, user *domain.User) (*domain.Membership, error) {
	membership, err := p.orgs.FirstMembership(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if membership != nil {
		return membership, nil
	}

	localpart := user.Email
	if i := strings.IndexByte(localpart, '@'); i > 0 {
		localpart = localpart[:i]
	}
	name := "Org of " + localpart
	base := slugify(localpart)

	for attempt := 0; attempt < slugRetries; attempt++ {
		slug := base
		if attempt > 0 {
			slug = fmt.Sprintf("%s-%d", base, attempt+1)
		}
		org := &domain.Organization{
			ID:        domain.NewOrganizationID(uuid.New()),
			Name:      name,
			Slug:      slug,
			CreatedAt: time.Now(),
		}
		err := p.orgs.CreateWithAdmin(ctx, org, user.ID)
		if err == domerrors.ErrSlugTaken {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &domain.Membership{
			OrganizationID: org.ID,
			UserID:         user.ID,
			Role:           domain.RoleAdmin,
			CreatedAt:      org.CreatedAt,
		}, nil
	}
	return nil, fmt.Errorf("could not allocate unique slug for %q", base)
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		slug = "org"
	}
	return slug
}
