package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/opla-backend/internal/model"
)

// SystemRole describes one of the role templates every organization starts with.
type SystemRole struct {
	Name        string
	Slug        string
	Description string
	Permissions []string
	Priority    int
}

// AdminSlug identifies the seeded role granted to an organization's owner.
const AdminSlug = "admin"

// SystemRoles is the fixed set seeded on organization creation, highest
// priority first.
var SystemRoles = []SystemRole{
	{
		Name:        "Admin",
		Slug:        AdminSlug,
		Description: "Full access to org settings and projects",
		Permissions: []string{model.WildcardPermission},
		Priority:    100,
	},
	{
		Name:        "Editor",
		Slug:        "editor",
		Description: "Create and edit projects and forms",
		Permissions: []string{"projects:edit", "forms:edit", "forms:publish", "data:view"},
		Priority:    80,
	},
	{
		Name:        "Supervisor",
		Slug:        "supervisor",
		Description: "Review data and manage team workflows",
		Permissions: []string{"forms:view", "data:view", "teams:view"},
		Priority:    60,
	},
	{
		Name:        "Agent",
		Slug:        "agent",
		Description: "Collect data and submit forms",
		Permissions: []string{"forms:submit", "data:collect"},
		Priority:    40,
	},
}

// SeedSystemRoles creates any missing system role in orgID and returns all
// of them in SystemRoles order. Running it twice creates nothing new.
func (r *Resolver) SeedSystemRoles(ctx context.Context, orgID string) ([]model.RoleTemplate, error) {
	out := make([]model.RoleTemplate, 0, len(SystemRoles))
	for _, sr := range SystemRoles {
		existing, err := r.roles.GetRoleBySlug(ctx, orgID, sr.Slug)
		if err == nil {
			out = append(out, *existing)
			continue
		}
		if !errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("lookup system role %s: %w", sr.Slug, err)
		}

		desc := sr.Description
		role := &model.RoleTemplate{
			ID:          r.newID(),
			OrgID:       orgID,
			Name:        sr.Name,
			Slug:        sr.Slug,
			Description: &desc,
			Permissions: append([]string(nil), sr.Permissions...),
			Priority:    sr.Priority,
			IsSystem:    true,
		}
		if err := r.roles.InsertRole(ctx, role); err != nil {
			if !errors.Is(err, model.ErrConflict) {
				return nil, fmt.Errorf("seed system role %s: %w", sr.Slug, err)
			}
			// Lost a race with a concurrent seed; use the winner's row.
			if role, err = r.roles.GetRoleBySlug(ctx, orgID, sr.Slug); err != nil {
				return nil, fmt.Errorf("seed system role %s: %w", sr.Slug, err)
			}
		}
		out = append(out, *role)
	}
	return out, nil
}
