package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/opla-backend/internal/model"
)

const (
	roleColumns       = "id,org_id,name,slug,description,permissions,priority,is_system,created_at,updated_at"
	assignmentColumns = "id,org_id,role_id,accessor_type,accessor_id,assigned_by,created_at"
)

// RoleRepo persists `org_roles` and `org_role_assignments`. It satisfies
// rbac.RoleStore. Permissions are stored as a JSON array.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

// InsertRole returns model.ErrConflict when (org_id, slug) is taken.
func (r *RoleRepo) InsertRole(ctx context.Context, role *model.RoleTemplate) error {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	perms, err := encodePermissions(role.Permissions)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	role.CreatedAt, role.UpdatedAt = now, now
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO org_roles ("+roleColumns+") VALUES (?,?,?,?,?,?,?,?,?,?)",
		role.ID, role.OrgID, role.Name, role.Slug, nullString(role.Description), perms,
		role.Priority, role.IsSystem, role.CreatedAt, role.UpdatedAt)
	return translate(err, "insert role")
}

// GetRole fetches a role scoped to orgID.
func (r *RoleRepo) GetRole(ctx context.Context, orgID, roleID string) (*model.RoleTemplate, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+roleColumns+" FROM org_roles WHERE id=? AND org_id=? LIMIT 1", roleID, orgID)
	return scanRole(row)
}

// GetRoleBySlug fetches a role by its organization-scoped slug.
func (r *RoleRepo) GetRoleBySlug(ctx context.Context, orgID, slug string) (*model.RoleTemplate, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+roleColumns+" FROM org_roles WHERE org_id=? AND slug=? LIMIT 1", orgID, slug)
	return scanRole(row)
}

// ListRoles returns the roles of orgID, highest priority first.
func (r *RoleRepo) ListRoles(ctx context.Context, orgID string) ([]model.RoleTemplate, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+roleColumns+" FROM org_roles WHERE org_id=? ORDER BY priority DESC, id", orgID)
	if err != nil {
		return nil, translate(err, "list roles")
	}
	defer rows.Close()

	var out []model.RoleTemplate
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *role)
	}
	return out, translate(rows.Err(), "list roles")
}

// UpdateRole writes the mutable fields of role. System rows are never
// touched even if a caller skipped the check.
func (r *RoleRepo) UpdateRole(ctx context.Context, role *model.RoleTemplate) error {
	perms, err := encodePermissions(role.Permissions)
	if err != nil {
		return err
	}
	role.UpdatedAt = time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		`UPDATE org_roles SET name=?, description=?, permissions=?, priority=?, updated_at=?
		  WHERE id=? AND org_id=? AND is_system=FALSE`,
		role.Name, nullString(role.Description), perms, role.Priority, role.UpdatedAt,
		role.ID, role.OrgID)
	if err != nil {
		return translate(err, "update role")
	}
	return requireAffected(res, "update role")
}

// DeleteRole removes a custom role.
func (r *RoleRepo) DeleteRole(ctx context.Context, orgID, roleID string) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM org_roles WHERE id=? AND org_id=? AND is_system=FALSE", roleID, orgID)
	if err != nil {
		// The FK from assignments rejects deleting a role still in use.
		return translate(err, "delete role")
	}
	return requireAffected(res, "delete role")
}

// CountAssignments counts assignments referencing roleID.
func (r *RoleRepo) CountAssignments(ctx context.Context, roleID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM org_role_assignments WHERE role_id=?", roleID).Scan(&n)
	if err != nil {
		return 0, translate(err, "count assignments")
	}
	return n, nil
}

// UpsertAssignment binds a.RoleID to a.Accessor. The unique key on
// (org_id, accessor_id, accessor_type) turns a second assignment into an
// update, so concurrent writers leave exactly one row.
func (r *RoleRepo) UpsertAssignment(ctx context.Context, a *model.RoleAssignment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC()
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO org_role_assignments (`+assignmentColumns+`) VALUES (?,?,?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE role_id=VALUES(role_id), assigned_by=VALUES(assigned_by)`,
		a.ID, a.OrgID, a.RoleID, string(a.Accessor.Type), a.Accessor.ID,
		nullString(a.AssignedBy), a.CreatedAt)
	if err != nil {
		return translate(err, "upsert assignment")
	}
	// On update the row keeps its original id and creation time.
	err = r.DB.QueryRowContext(ctx,
		"SELECT id, created_at FROM org_role_assignments WHERE org_id=? AND accessor_type=? AND accessor_id=? LIMIT 1",
		a.OrgID, string(a.Accessor.Type), a.Accessor.ID).Scan(&a.ID, &a.CreatedAt)
	return translate(err, "reload assignment")
}

// ListAssignments returns every assignment of orgID.
func (r *RoleRepo) ListAssignments(ctx context.Context, orgID string) ([]model.RoleAssignment, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+assignmentColumns+" FROM org_role_assignments WHERE org_id=? ORDER BY created_at, id", orgID)
	if err != nil {
		return nil, translate(err, "list assignments")
	}
	defer rows.Close()

	var out []model.RoleAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, translate(rows.Err(), "list assignments")
}

// DeleteAssignment returns model.ErrNotFound when acc held no role.
func (r *RoleRepo) DeleteAssignment(ctx context.Context, orgID string, acc model.Accessor) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM org_role_assignments WHERE org_id=? AND accessor_type=? AND accessor_id=?",
		orgID, string(acc.Type), acc.ID)
	if err != nil {
		return translate(err, "delete assignment")
	}
	return requireAffected(res, "delete assignment")
}

// GrantsFor joins the assignments held by any of accessors with their roles.
func (r *RoleRepo) GrantsFor(ctx context.Context, orgID string, accessors []model.Accessor) ([]model.RoleGrant, error) {
	if len(accessors) == 0 {
		return nil, nil
	}
	conds := make([]string, 0, len(accessors))
	args := make([]any, 0, 1+2*len(accessors))
	args = append(args, orgID)
	for _, acc := range accessors {
		conds = append(conds, "(a.accessor_type=? AND a.accessor_id=?)")
		args = append(args, string(acc.Type), acc.ID)
	}
	query := `SELECT a.id,a.org_id,a.role_id,a.accessor_type,a.accessor_id,a.assigned_by,a.created_at,
	                 r.id,r.org_id,r.name,r.slug,r.description,r.permissions,r.priority,r.is_system,r.created_at,r.updated_at
	            FROM org_role_assignments a
	            JOIN org_roles r ON r.id = a.role_id
	           WHERE a.org_id=? AND (` + strings.Join(conds, " OR ") + `)`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "load grants")
	}
	defer rows.Close()

	var out []model.RoleGrant
	for rows.Next() {
		var (
			g                model.RoleGrant
			accType          string
			assignedBy, desc sql.NullString
			perms            []byte
		)
		if err := rows.Scan(
			&g.Assignment.ID, &g.Assignment.OrgID, &g.Assignment.RoleID, &accType,
			&g.Assignment.Accessor.ID, &assignedBy, &g.Assignment.CreatedAt,
			&g.Role.ID, &g.Role.OrgID, &g.Role.Name, &g.Role.Slug, &desc, &perms,
			&g.Role.Priority, &g.Role.IsSystem, &g.Role.CreatedAt, &g.Role.UpdatedAt,
		); err != nil {
			return nil, translate(err, "scan grant")
		}
		g.Assignment.Accessor.Type = model.AccessorType(accType)
		g.Assignment.AssignedBy = strPtr(assignedBy)
		g.Role.Description = strPtr(desc)
		if g.Role.Permissions, err = decodePermissions(perms); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, translate(rows.Err(), "load grants")
}

func scanRole(s rowScanner) (*model.RoleTemplate, error) {
	var (
		role  model.RoleTemplate
		desc  sql.NullString
		perms []byte
	)
	if err := s.Scan(&role.ID, &role.OrgID, &role.Name, &role.Slug, &desc, &perms,
		&role.Priority, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return nil, translate(err, "role")
	}
	role.Description = strPtr(desc)
	var err error
	if role.Permissions, err = decodePermissions(perms); err != nil {
		return nil, err
	}
	return &role, nil
}

func scanAssignment(s rowScanner) (*model.RoleAssignment, error) {
	var (
		a          model.RoleAssignment
		accType    string
		assignedBy sql.NullString
	)
	if err := s.Scan(&a.ID, &a.OrgID, &a.RoleID, &accType, &a.Accessor.ID, &assignedBy, &a.CreatedAt); err != nil {
		return nil, translate(err, "assignment")
	}
	a.Accessor.Type = model.AccessorType(accType)
	a.AssignedBy = strPtr(assignedBy)
	return &a, nil
}

func encodePermissions(perms []string) (string, error) {
	if perms == nil {
		perms = []string{}
	}
	b, err := json.Marshal(perms)
	if err != nil {
		return "", fmt.Errorf("encode permissions: %w", err)
	}
	return string(b), nil
}

func decodePermissions(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return []string{}, nil
	}
	var perms []string
	if err := json.Unmarshal(raw, &perms); err != nil {
		return nil, fmt.Errorf("decode permissions: %w", err)
	}
	return perms, nil
}
