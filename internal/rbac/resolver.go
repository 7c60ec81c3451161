// Package rbac resolves a user's effective role inside an organization and
// manages the organization's role templates and assignments.
//
// A user's candidate roles are the role assigned to the user directly plus
// the roles assigned to every team the user belongs to in that
// organization. The candidate with the highest priority wins; equal
// priorities are broken by the lexicographically smallest role id.
package rbac

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/opla-backend/internal/model"
)

// RoleStore persists role templates and assignments.
type RoleStore interface {
	// InsertRole returns model.ErrConflict when (org, slug) is taken.
	InsertRole(ctx context.Context, role *model.RoleTemplate) error
	GetRole(ctx context.Context, orgID, roleID string) (*model.RoleTemplate, error)
	GetRoleBySlug(ctx context.Context, orgID, slug string) (*model.RoleTemplate, error)
	// ListRoles returns roles by priority, highest first.
	ListRoles(ctx context.Context, orgID string) ([]model.RoleTemplate, error)
	UpdateRole(ctx context.Context, role *model.RoleTemplate) error
	DeleteRole(ctx context.Context, orgID, roleID string) error
	CountAssignments(ctx context.Context, roleID string) (int, error)

	// UpsertAssignment overwrites any assignment for the same accessor.
	UpsertAssignment(ctx context.Context, a *model.RoleAssignment) error
	ListAssignments(ctx context.Context, orgID string) ([]model.RoleAssignment, error)
	// DeleteAssignment returns model.ErrNotFound when nothing was removed.
	DeleteAssignment(ctx context.Context, orgID string, acc model.Accessor) error
	// GrantsFor returns every assignment in orgID held by one of accessors,
	// joined with its role.
	GrantsFor(ctx context.Context, orgID string, accessors []model.Accessor) ([]model.RoleGrant, error)
}

// MembershipStore answers organization and team membership questions.
type MembershipStore interface {
	// GetMember returns model.ErrNotFound for non-members.
	GetMember(ctx context.Context, orgID, userID string) (*model.OrgMember, error)
	TeamExists(ctx context.Context, orgID, teamID string) (bool, error)
	// TeamIDsForUser lists the teams of orgID that userID belongs to.
	TeamIDsForUser(ctx context.Context, orgID, userID string) ([]string, error)
}

// Resolution is the outcome of EffectiveRole. Role is nil when the user
// holds no assignment at all.
type Resolution struct {
	Role   *model.RoleTemplate
	Grants []model.RoleGrant
}

// Permissions returns the effective permission set, or nil.
func (r Resolution) Permissions() []string {
	if r.Role == nil {
		return nil
	}
	return r.Role.Permissions
}

// RoleInput carries the fields of a new role. A nil Priority means
// model.DefaultRolePriority.
type RoleInput struct {
	Name        string
	Description *string
	Permissions []string
	Priority    *int
}

// RoleUpdate carries optional changes; nil fields are left untouched.
type RoleUpdate struct {
	Name        *string
	Description *string
	Permissions []string
	Priority    *int
}

// Resolver implements role resolution and role management.
type Resolver struct {
	roles   RoleStore
	members MembershipStore
	newID   func() string
}

func NewResolver(roles RoleStore, members MembershipStore) (*Resolver, error) {
	if roles == nil || members == nil {
		return nil, errors.New("rbac: role and membership stores are required")
	}
	return &Resolver{roles: roles, members: members, newID: uuid.NewString}, nil
}

// EffectiveRole merges direct and team-derived assignments of userID in orgID.
func (r *Resolver) EffectiveRole(ctx context.Context, orgID, userID string) (Resolution, error) {
	teamIDs, err := r.members.TeamIDsForUser(ctx, orgID, userID)
	if err != nil {
		return Resolution{}, fmt.Errorf("load teams: %w", err)
	}
	accessors := make([]model.Accessor, 0, len(teamIDs)+1)
	accessors = append(accessors, model.UserAccessor(userID))
	for _, id := range teamIDs {
		accessors = append(accessors, model.TeamAccessor(id))
	}

	grants, err := r.roles.GrantsFor(ctx, orgID, accessors)
	if err != nil {
		return Resolution{}, fmt.Errorf("load grants: %w", err)
	}
	sortGrants(grants)
	res := Resolution{Grants: grants}
	if len(grants) > 0 {
		role := grants[0].Role
		res.Role = &role
	}
	return res, nil
}

// sortGrants orders by priority, highest first, then by role id.
func sortGrants(grants []model.RoleGrant) {
	sort.SliceStable(grants, func(i, j int) bool {
		if grants[i].Role.Priority != grants[j].Role.Priority {
			return grants[i].Role.Priority > grants[j].Role.Priority
		}
		return grants[i].Role.ID < grants[j].Role.ID
	})
}

// AssignRole binds roleID to acc in orgID, replacing the accessor's previous
// role. The role must belong to orgID; a user accessor must be a member and
// a team accessor must be a team of orgID.
func (r *Resolver) AssignRole(ctx context.Context, orgID, roleID string, acc model.Accessor, assignedBy string) (*model.RoleAssignment, error) {
	if _, err := r.roles.GetRole(ctx, orgID, roleID); err != nil {
		return nil, err
	}
	if err := r.checkAccessor(ctx, orgID, acc); err != nil {
		return nil, err
	}

	a := &model.RoleAssignment{
		ID:         r.newID(),
		OrgID:      orgID,
		RoleID:     roleID,
		Accessor:   acc,
		AssignedBy: model.StrPtr(assignedBy),
	}
	if err := r.roles.UpsertAssignment(ctx, a); err != nil {
		return nil, fmt.Errorf("upsert assignment: %w", err)
	}
	return a, nil
}

func (r *Resolver) checkAccessor(ctx context.Context, orgID string, acc model.Accessor) error {
	if strings.TrimSpace(acc.ID) == "" {
		return fmt.Errorf("%w: accessor id is required", model.ErrInvalidAccessor)
	}
	switch acc.Type {
	case model.AccessorUser:
		_, err := r.members.GetMember(ctx, orgID, acc.ID)
		if errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("%w: user is not a member of this organization", model.ErrInvalidAccessor)
		}
		return err
	case model.AccessorTeam:
		ok, err := r.members.TeamExists(ctx, orgID, acc.ID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: team not found in this organization", model.ErrInvalidAccessor)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown accessor type %q", model.ErrInvalidAccessor, acc.Type)
	}
}

// ListAssignments returns every assignment of orgID.
func (r *Resolver) ListAssignments(ctx context.Context, orgID string) ([]model.RoleAssignment, error) {
	return r.roles.ListAssignments(ctx, orgID)
}

// RemoveAssignment drops the role held by acc in orgID.
func (r *Resolver) RemoveAssignment(ctx context.Context, orgID string, acc model.Accessor) error {
	if _, ok := model.ParseAccessorType(string(acc.Type)); !ok {
		return fmt.Errorf("%w: unknown accessor type %q", model.ErrInvalidAccessor, acc.Type)
	}
	return r.roles.DeleteAssignment(ctx, orgID, acc)
}

// ListRoles returns orgID's roles, highest priority first.
func (r *Resolver) ListRoles(ctx context.Context, orgID string) ([]model.RoleTemplate, error) {
	return r.roles.ListRoles(ctx, orgID)
}

// CreateRole adds a custom role. The slug is derived from the name and
// suffixed with -1, -2, ... until it is unique within orgID.
func (r *Resolver) CreateRole(ctx context.Context, orgID string, in RoleInput) (*model.RoleTemplate, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > 100 {
		return nil, fmt.Errorf("%w: role name must be 1-100 characters", model.ErrInvalidInput)
	}
	perms, err := normalizePermissions(in.Permissions)
	if err != nil {
		return nil, err
	}
	priority := model.DefaultRolePriority
	if in.Priority != nil {
		priority = *in.Priority
	}
	base := Slugify(name)
	if base == "" {
		base = "role"
	}

	role := &model.RoleTemplate{
		OrgID:       orgID,
		Name:        name,
		Description: in.Description,
		Permissions: perms,
		Priority:    priority,
	}
	taken := func(ctx context.Context, slug string) (bool, error) {
		_, err := r.roles.GetRoleBySlug(ctx, orgID, slug)
		if errors.Is(err, model.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
	// A concurrent create can claim the slug between lookup and insert;
	// the unique key rejects it and the search runs again.
	for attempt := 0; attempt < 3; attempt++ {
		slug, err := UniqueSlug(ctx, base, MaxRoleSlugLen, taken)
		if err != nil {
			return nil, err
		}
		role.ID = r.newID()
		role.Slug = slug
		err = r.roles.InsertRole(ctx, role)
		if err == nil {
			return role, nil
		}
		if !errors.Is(err, model.ErrConflict) {
			return nil, fmt.Errorf("insert role: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: slug %q kept colliding", model.ErrConflict, base)
}

// UpdateRole edits a custom role. System roles are immutable.
func (r *Resolver) UpdateRole(ctx context.Context, orgID, roleID string, upd RoleUpdate) (*model.RoleTemplate, error) {
	role, err := r.roles.GetRole(ctx, orgID, roleID)
	if err != nil {
		return nil, err
	}
	if role.IsSystem {
		return nil, fmt.Errorf("%w: system roles cannot be modified", model.ErrForbidden)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" || len(name) > 100 {
			return nil, fmt.Errorf("%w: role name must be 1-100 characters", model.ErrInvalidInput)
		}
		role.Name = name
	}
	if upd.Description != nil {
		role.Description = upd.Description
	}
	if upd.Permissions != nil {
		perms, err := normalizePermissions(upd.Permissions)
		if err != nil {
			return nil, err
		}
		role.Permissions = perms
	}
	if upd.Priority != nil {
		role.Priority = *upd.Priority
	}
	if err := r.roles.UpdateRole(ctx, role); err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	return role, nil
}

// DeleteRole removes a custom role that no assignment references.
func (r *Resolver) DeleteRole(ctx context.Context, orgID, roleID string) error {
	role, err := r.roles.GetRole(ctx, orgID, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return fmt.Errorf("%w: system roles cannot be deleted", model.ErrForbidden)
	}
	n, err := r.roles.CountAssignments(ctx, roleID)
	if err != nil {
		return fmt.Errorf("count assignments: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: role is assigned to %d accessor(s)", model.ErrConflict, n)
	}
	return r.roles.DeleteRole(ctx, orgID, roleID)
}

// normalizePermissions trims, drops blanks and de-duplicates while keeping order.
func normalizePermissions(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.ContainsAny(p, " \t\n") {
			return nil, fmt.Errorf("%w: permission %q contains whitespace", model.ErrInvalidInput, p)
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}
