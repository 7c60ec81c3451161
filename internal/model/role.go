package model

import "time"

// WildcardPermission satisfies every permission check.
const WildcardPermission = "*"

// DefaultRolePriority is used when a role is created without a priority.
const DefaultRolePriority = 50

// RoleTemplate mirrors the `org_roles` table: a named, organization scoped
// permission set. (OrgID, Slug) is unique. System roles are seeded when an
// organization is created and can be neither updated nor deleted.
type RoleTemplate struct {
	ID          string
	OrgID       string
	Name        string
	Slug        string
	Description *string
	Permissions []string
	Priority    int
	IsSystem    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Grants reports whether the role's permission set satisfies perm.
func (r RoleTemplate) Grants(perm string) bool {
	return PermissionsGrant(r.Permissions, perm)
}

// PermissionsGrant reports whether perms contains perm or the wildcard.
func PermissionsGrant(perms []string, perm string) bool {
	for _, p := range perms {
		if p == WildcardPermission || p == perm {
			return true
		}
	}
	return false
}

// AccessorType tags the kind of principal a role is bound to.
type AccessorType string

const (
	AccessorUser AccessorType = "user"
	AccessorTeam AccessorType = "team"
)

// ParseAccessorType validates a raw accessor type.
func ParseAccessorType(s string) (AccessorType, bool) {
	switch AccessorType(s) {
	case AccessorUser:
		return AccessorUser, true
	case AccessorTeam:
		return AccessorTeam, true
	}
	return "", false
}

// Accessor identifies either a single user or a single team. Code must
// branch on Type; the ID alone says nothing about what it refers to.
type Accessor struct {
	Type AccessorType
	ID   string
}

// UserAccessor and TeamAccessor build tagged accessors.
func UserAccessor(id string) Accessor { return Accessor{Type: AccessorUser, ID: id} }
func TeamAccessor(id string) Accessor { return Accessor{Type: AccessorTeam, ID: id} }

// RoleAssignment mirrors the `org_role_assignments` table. An accessor holds
// at most one role per organization: (OrgID, Accessor.ID, Accessor.Type) is
// unique and a new assignment overwrites the previous one.
type RoleAssignment struct {
	ID         string
	OrgID      string
	RoleID     string
	Accessor   Accessor
	AssignedBy *string
	CreatedAt  time.Time
}

// RoleGrant joins an assignment with the role it points at. The resolver
// works on grants so a single query yields both halves.
type RoleGrant struct {
	Assignment RoleAssignment
	Role       RoleTemplate
}
