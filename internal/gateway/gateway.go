// Package gateway is the single entry point for authentication and
// authorization decisions. It combines credential checks, OTP challenges,
// token issuance and role resolution, and owns the organization and team
// workflows that feed the role model.
package gateway

import (
	"context"
	"errors"
	"log/slog"

	"github.com/iliyamo/opla-backend/internal/metrics"
	"github.com/iliyamo/opla-backend/internal/model"
	"github.com/iliyamo/opla-backend/internal/otp"
	"github.com/iliyamo/opla-backend/internal/rbac"
	"github.com/iliyamo/opla-backend/internal/token"
)

// UserStore persists identities.
type UserStore interface {
	Create(ctx context.Context, u *model.Identity) error
	GetByID(ctx context.Context, id string) (*model.Identity, error)
	GetByEmail(ctx context.Context, email string) (*model.Identity, error)
	GetByPhone(ctx context.Context, phone string) (*model.Identity, error)
	GetByEmailOrPhone(ctx context.Context, emailOrPhone string) (*model.Identity, error)
}

// OrgStore persists organizations.
type OrgStore interface {
	CreateWithOwner(ctx context.Context, org *model.Organization, owner *model.OrgMember) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	GetByID(ctx context.Context, id string) (*model.Organization, error)
	ListForUser(ctx context.Context, userID string) ([]model.Organization, error)
}

// MemberStore persists organization memberships.
type MemberStore interface {
	AddMember(ctx context.Context, m *model.OrgMember) error
	GetMember(ctx context.Context, orgID, userID string) (*model.OrgMember, error)
	ListMembers(ctx context.Context, orgID string) ([]model.OrgMember, error)
}

// TeamStore persists teams and team memberships.
type TeamStore interface {
	Create(ctx context.Context, t *model.Team) error
	Get(ctx context.Context, orgID, teamID string) (*model.Team, error)
	ListByOrg(ctx context.Context, orgID string) ([]model.Team, error)
	Update(ctx context.Context, t *model.Team) error
	Delete(ctx context.Context, orgID, teamID string) error
	AddMember(ctx context.Context, teamID, userID string) (*model.TeamMember, error)
	RemoveMember(ctx context.Context, teamID, userID string) error
	ListMembers(ctx context.Context, teamID string) ([]model.TeamMember, error)
}

// TokenService issues and verifies session tokens.
type TokenService interface {
	IssuePair(subjectID string) (access, refresh token.Token, err error)
	Verify(raw string, expected token.Type) (*token.Claims, error)
}

// ChallengeService issues and verifies phone OTP challenges.
type ChallengeService interface {
	RequestChallenge(ctx context.Context, phone string) (otp.Issued, error)
	VerifyChallenge(ctx context.Context, phone, code string) bool
}

// Deps lists the collaborators of a Gateway. Logger and Metrics are optional.
type Deps struct {
	Users      UserStore
	Orgs       OrgStore
	Members    MemberStore
	Teams      TeamStore
	Tokens     TokenService
	OTP        ChallengeService
	RBAC       *rbac.Resolver
	BcryptCost int
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// Gateway implements every identity and authorization operation.
type Gateway struct {
	users   UserStore
	orgs    OrgStore
	members MemberStore
	teams   TeamStore
	tokens  TokenService
	otp     ChallengeService
	rbac    *rbac.Resolver
	cost    int
	log     *slog.Logger
	metrics *metrics.Metrics
}

func New(d Deps) (*Gateway, error) {
	if d.Users == nil || d.Orgs == nil || d.Members == nil || d.Teams == nil ||
		d.Tokens == nil || d.OTP == nil || d.RBAC == nil {
		return nil, errors.New("gateway: missing dependency")
	}
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		users:   d.Users,
		orgs:    d.Orgs,
		members: d.Members,
		teams:   d.Teams,
		tokens:  d.Tokens,
		otp:     d.OTP,
		rbac:    d.RBAC,
		cost:    d.BcryptCost,
		log:     log,
		metrics: d.Metrics,
	}, nil
}

// Session is the result of a successful sign-in.
type Session struct {
	Identity *model.Identity
	Access   token.Token
	Refresh  token.Token
}

func (g *Gateway) newSession(u *model.Identity) (*Session, error) {
	access, refresh, err := g.tokens.IssuePair(u.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Identity: u, Access: access, Refresh: refresh}, nil
}
