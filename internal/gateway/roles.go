package gateway

import (
	"context"

	"github.com/iliyamo/opla-backend/internal/model"
	"github.com/iliyamo/opla-backend/internal/rbac"
)

// EffectiveRole resolves userID's governing role in orgID.
func (g *Gateway) EffectiveRole(ctx context.Context, orgID, userID string) (rbac.Resolution, error) {
	return g.rbac.EffectiveRole(ctx, orgID, userID)
}

// AssignRole binds a role to a user or team of orgID.
func (g *Gateway) AssignRole(ctx context.Context, orgID, roleID string, acc model.Accessor, assignedBy string) (*model.RoleAssignment, error) {
	a, err := g.rbac.AssignRole(ctx, orgID, roleID, acc, assignedBy)
	if err != nil {
		return nil, err
	}
	g.log.Info("role assigned", "org_id", orgID, "role_id", roleID,
		"accessor_type", string(acc.Type), "accessor_id", acc.ID, "assigned_by", assignedBy)
	return a, nil
}

func (g *Gateway) ListAssignments(ctx context.Context, orgID string) ([]model.RoleAssignment, error) {
	return g.rbac.ListAssignments(ctx, orgID)
}

func (g *Gateway) RemoveAssignment(ctx context.Context, orgID string, acc model.Accessor) error {
	if err := g.rbac.RemoveAssignment(ctx, orgID, acc); err != nil {
		return err
	}
	g.log.Info("role unassigned", "org_id", orgID, "accessor_type", string(acc.Type), "accessor_id", acc.ID)
	return nil
}

func (g *Gateway) ListRoles(ctx context.Context, orgID string) ([]model.RoleTemplate, error) {
	return g.rbac.ListRoles(ctx, orgID)
}

func (g *Gateway) CreateRole(ctx context.Context, orgID string, in rbac.RoleInput) (*model.RoleTemplate, error) {
	role, err := g.rbac.CreateRole(ctx, orgID, in)
	if err != nil {
		return nil, err
	}
	g.log.Info("role created", "org_id", orgID, "role_id", role.ID, "slug", role.Slug)
	return role, nil
}

func (g *Gateway) UpdateRole(ctx context.Context, orgID, roleID string, upd rbac.RoleUpdate) (*model.RoleTemplate, error) {
	return g.rbac.UpdateRole(ctx, orgID, roleID, upd)
}

func (g *Gateway) DeleteRole(ctx context.Context, orgID, roleID string) error {
	if err := g.rbac.DeleteRole(ctx, orgID, roleID); err != nil {
		return err
	}
	g.log.Info("role deleted", "org_id", orgID, "role_id", roleID)
	return nil
}
