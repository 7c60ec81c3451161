package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/opla-backend/internal/model"
	"github.com/iliyamo/opla-backend/internal/rbac"
)

// Decision describes a granted authorization.
type Decision struct {
	Identity    *model.Identity
	Member      *model.OrgMember
	Role        *model.RoleTemplate // effective role, nil when none is assigned
	Permissions []string
}

// Allows reports whether the decision's permissions satisfy perm.
func (d Decision) Allows(perm string) bool {
	return model.PermissionsGrant(d.Permissions, perm)
}

// Authorize verifies accessToken, requires organization membership and,
// when permission is non-empty, requires the effective permission set to
// grant it. A nil error means access is granted.
func (g *Gateway) Authorize(ctx context.Context, accessToken, orgID, permission string) (Decision, error) {
	dec, err := g.authorize(ctx, accessToken, orgID, permission)
	switch {
	case err == nil:
		g.metrics.Decision("allow")
	case errors.Is(err, model.ErrForbidden), errors.Is(err, model.ErrTokenInvalid):
		g.metrics.Decision("deny")
	default:
		g.metrics.Decision("error")
	}
	return dec, err
}

func (g *Gateway) authorize(ctx context.Context, accessToken, orgID, permission string) (Decision, error) {
	u, err := g.Principal(ctx, accessToken)
	if err != nil {
		return Decision{}, err
	}
	return g.AuthorizeIdentity(ctx, u, orgID, permission)
}

// AuthorizeIdentity is Authorize for an already authenticated identity.
func (g *Gateway) AuthorizeIdentity(ctx context.Context, u *model.Identity, orgID, permission string) (Decision, error) {
	member, err := g.members.GetMember(ctx, orgID, u.ID)
	if errors.Is(err, model.ErrNotFound) {
		return Decision{}, fmt.Errorf("%w: not a member of this organization", model.ErrForbidden)
	}
	if err != nil {
		return Decision{}, err
	}

	res, err := g.rbac.EffectiveRole(ctx, orgID, u.ID)
	if err != nil {
		return Decision{}, err
	}
	dec := Decision{
		Identity:    u,
		Member:      member,
		Role:        res.Role,
		Permissions: effectivePermissions(member, res),
	}
	if permission != "" && !dec.Allows(permission) {
		g.log.Info("authorization denied", "user_id", u.ID, "org_id", orgID, "permission", permission)
		return Decision{}, fmt.Errorf("%w: missing permission %s", model.ErrForbidden, permission)
	}
	return dec, nil
}

// effectivePermissions adds the wildcard for coarse organization admins.
func effectivePermissions(m *model.OrgMember, res rbac.Resolution) []string {
	perms := append([]string(nil), res.Permissions()...)
	if m.Role == model.OrgRoleAdmin && !model.PermissionsGrant(perms, model.WildcardPermission) {
		perms = append(perms, model.WildcardPermission)
	}
	return perms
}
