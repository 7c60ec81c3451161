package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/opla-backend/internal/model"
)

const orgColumns = "id,name,slug,owner_id,logo_url,primary_color,created_at,updated_at"

// OrgRepo persists the `organizations` table.
type OrgRepo struct{ DB *sql.DB }

func NewOrgRepo(db *sql.DB) *OrgRepo { return &OrgRepo{DB: db} }

// CreateWithOwner inserts org and the owner's membership row in one
// transaction so an organization never exists without its owner.
func (r *OrgRepo) CreateWithOwner(ctx context.Context, org *model.Organization, owner *model.OrgMember) error {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	if owner.ID == "" {
		owner.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	org.CreatedAt, org.UpdatedAt = now, now
	owner.OrgID = org.ID
	owner.JoinedAt = now

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return translate(err, "begin create organization")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO organizations ("+orgColumns+") VALUES (?,?,?,?,?,?,?,?)",
		org.ID, org.Name, org.Slug, org.OwnerID, nullString(org.LogoURL), org.PrimaryColor,
		org.CreatedAt, org.UpdatedAt); err != nil {
		return translate(err, "insert organization")
	}
	if err := insertMember(ctx, tx, owner); err != nil {
		return err
	}
	return translate(tx.Commit(), "commit create organization")
}

// SlugExists reports whether an organization already uses slug.
func (r *OrgRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM organizations WHERE slug=? LIMIT 1", slug).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, translate(err, "check organization slug")
	}
	return true, nil
}

// GetByID fetches an organization.
func (r *OrgRepo) GetByID(ctx context.Context, id string) (*model.Organization, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+orgColumns+" FROM organizations WHERE id=? LIMIT 1", id)
	return scanOrg(row)
}

// ListForUser returns every organization userID is a member of.
func (r *OrgRepo) ListForUser(ctx context.Context, userID string) ([]model.Organization, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT o.id,o.name,o.slug,o.owner_id,o.logo_url,o.primary_color,o.created_at,o.updated_at
		   FROM organizations o
		   JOIN org_members m ON m.org_id = o.id
		  WHERE m.user_id = ?
		  ORDER BY o.created_at, o.id`, userID)
	if err != nil {
		return nil, translate(err, "list organizations")
	}
	defer rows.Close()

	var out []model.Organization
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, translate(rows.Err(), "list organizations")
}

func scanOrg(s rowScanner) (*model.Organization, error) {
	var (
		o    model.Organization
		logo sql.NullString
	)
	if err := s.Scan(&o.ID, &o.Name, &o.Slug, &o.OwnerID, &logo, &o.PrimaryColor,
		&o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, translate(err, "scan organization")
	}
	o.LogoURL = strPtr(logo)
	return &o, nil
}
