package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/opla-backend/internal/model"
	"github.com/iliyamo/opla-backend/internal/rbac"
)

// DefaultPrimaryColor is applied when an organization is created without one.
const DefaultPrimaryColor = "#6366f1"

// OrganizationInput carries the fields of a new organization.
type OrganizationInput struct {
	Name         string
	LogoURL      *string
	PrimaryColor string
}

// CreateOrganization creates an organization owned by ownerID. The owner
// joins as an accepted admin member, the system roles are seeded and the
// owner is assigned the Admin role.
func (g *Gateway) CreateOrganization(ctx context.Context, ownerID string, in OrganizationInput) (*model.Organization, error) {
	name, err := requireName(in.Name, "organization name", 255)
	if err != nil {
		return nil, err
	}
	color := strings.TrimSpace(in.PrimaryColor)
	if color == "" {
		color = DefaultPrimaryColor
	}
	base := rbac.Slugify(name)
	if base == "" {
		base = "org"
	}

	org := &model.Organization{Name: name, OwnerID: ownerID, LogoURL: in.LogoURL, PrimaryColor: color}
	owner := &model.OrgMember{
		UserID:           ownerID,
		Role:             model.OrgRoleAdmin,
		InvitationStatus: model.InvitationAccepted,
	}
	created := false
	for attempt := 0; attempt < 3 && !created; attempt++ {
		slug, err := rbac.UniqueSlug(ctx, base, rbac.MaxOrgSlugLen, g.orgs.SlugExists)
		if err != nil {
			return nil, err
		}
		org.ID, owner.ID = "", ""
		org.Slug = slug
		err = g.orgs.CreateWithOwner(ctx, org, owner)
		switch {
		case err == nil:
			created = true
		case errors.Is(err, model.ErrConflict):
			// Slug claimed concurrently; search again.
		default:
			return nil, err
		}
	}
	if !created {
		return nil, fmt.Errorf("%w: could not allocate organization slug", model.ErrConflict)
	}

	roles, err := g.rbac.SeedSystemRoles(ctx, org.ID)
	if err != nil {
		return nil, fmt.Errorf("seed roles for %s: %w", org.ID, err)
	}
	for _, r := range roles {
		if r.Slug != rbac.AdminSlug {
			continue
		}
		if _, err := g.rbac.AssignRole(ctx, org.ID, r.ID, model.UserAccessor(ownerID), ownerID); err != nil {
			return nil, fmt.Errorf("assign owner role: %w", err)
		}
	}
	g.log.Info("organization created", "org_id", org.ID, "slug", org.Slug, "owner_id", ownerID)
	return org, nil
}

// ListOrganizations returns the organizations userID belongs to.
func (g *Gateway) ListOrganizations(ctx context.Context, userID string) ([]model.Organization, error) {
	return g.orgs.ListForUser(ctx, userID)
}

// GetOrganization fetches one organization. Membership is checked by Authorize.
func (g *Gateway) GetOrganization(ctx context.Context, orgID string) (*model.Organization, error) {
	return g.orgs.GetByID(ctx, orgID)
}

func (g *Gateway) ListMembers(ctx context.Context, orgID string) ([]model.OrgMember, error) {
	return g.members.ListMembers(ctx, orgID)
}

// InviteMember adds an existing identity, found by email or phone, as a
// pending member. Inviting someone who is already a member returns the
// existing row and created=false. Coarse admins hold every permission, so
// only an inviter holding the wildcard may invite one.
func (g *Gateway) InviteMember(ctx context.Context, orgID, invitedBy, emailOrPhone string, role model.OrgRole) (m *model.OrgMember, created bool, err error) {
	handle := strings.TrimSpace(emailOrPhone)
	if handle == "" {
		return nil, false, fmt.Errorf("%w: email or phone is required", model.ErrInvalidInput)
	}
	if !strings.Contains(handle, "@") {
		if phone, err := NormalizePhone(handle); err == nil {
			handle = phone
		}
	}
	if role == "" {
		role = model.OrgRoleMember
	}
	if role != model.OrgRoleAdmin && role != model.OrgRoleMember {
		return nil, false, fmt.Errorf("%w: role must be admin or member", model.ErrInvalidInput)
	}
	if role == model.OrgRoleAdmin {
		if err := g.requireFullAccess(ctx, orgID, invitedBy); err != nil {
			return nil, false, err
		}
	}

	u, err := g.users.GetByEmailOrPhone(ctx, handle)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, false, fmt.Errorf("%w: user not found", model.ErrNotFound)
		}
		return nil, false, err
	}
	if existing, err := g.members.GetMember(ctx, orgID, u.ID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, false, err
	}

	m = &model.OrgMember{
		UserID:           u.ID,
		OrgID:            orgID,
		Role:             role,
		InvitedBy:        model.StrPtr(invitedBy),
		InvitationStatus: model.InvitationPending,
	}
	if err := g.members.AddMember(ctx, m); err != nil {
		if errors.Is(err, model.ErrConflict) {
			existing, gerr := g.members.GetMember(ctx, orgID, u.ID)
			return existing, false, gerr
		}
		return nil, false, err
	}
	g.log.Info("member invited", "org_id", orgID, "user_id", u.ID, "invited_by", invitedBy)
	return m, true, nil
}

// requireFullAccess fails with ErrForbidden unless userID's effective
// permissions in orgID include the wildcard.
func (g *Gateway) requireFullAccess(ctx context.Context, orgID, userID string) error {
	member, err := g.members.GetMember(ctx, orgID, userID)
	if errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("%w: not a member of this organization", model.ErrForbidden)
	}
	if err != nil {
		return err
	}
	res, err := g.rbac.EffectiveRole(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if !model.PermissionsGrant(effectivePermissions(member, res), model.WildcardPermission) {
		return fmt.Errorf("%w: only full administrators can invite admins", model.ErrForbidden)
	}
	return nil
}
