package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/opla-backend/internal/model"
)

const memberColumns = "id,user_id,org_id,role,invited_by,invitation_status,joined_at"

// MembershipRepo answers organization and team membership questions. It
// satisfies rbac.MembershipStore.
type MembershipRepo struct{ DB *sql.DB }

func NewMembershipRepo(db *sql.DB) *MembershipRepo { return &MembershipRepo{DB: db} }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertMember(ctx context.Context, db execer, m *model.OrgMember) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO org_members ("+memberColumns+") VALUES (?,?,?,?,?,?,?)",
		m.ID, m.UserID, m.OrgID, string(m.Role), nullString(m.InvitedBy),
		string(m.InvitationStatus), m.JoinedAt)
	return translate(err, "insert org member")
}

// AddMember inserts a membership row; an existing (user, org) pair yields
// model.ErrConflict.
func (r *MembershipRepo) AddMember(ctx context.Context, m *model.OrgMember) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.JoinedAt = time.Now().UTC()
	return insertMember(ctx, r.DB, m)
}

// GetMember returns model.ErrNotFound when userID is not a member of orgID.
func (r *MembershipRepo) GetMember(ctx context.Context, orgID, userID string) (*model.OrgMember, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+memberColumns+" FROM org_members WHERE org_id=? AND user_id=? LIMIT 1",
		orgID, userID)
	return scanMember(row)
}

// ListMembers returns every membership row of orgID.
func (r *MembershipRepo) ListMembers(ctx context.Context, orgID string) ([]model.OrgMember, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+memberColumns+" FROM org_members WHERE org_id=? ORDER BY joined_at, id", orgID)
	if err != nil {
		return nil, translate(err, "list org members")
	}
	defer rows.Close()

	var out []model.OrgMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, translate(rows.Err(), "list org members")
}

// TeamExists reports whether teamID is a team of orgID.
func (r *MembershipRepo) TeamExists(ctx context.Context, orgID, teamID string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM teams WHERE id=? AND org_id=? LIMIT 1", teamID, orgID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, translate(err, "check team")
	}
	return true, nil
}

// TeamIDsForUser lists the teams of orgID that userID belongs to.
func (r *MembershipRepo) TeamIDsForUser(ctx context.Context, orgID, userID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT t.id
		   FROM team_members tm
		   JOIN teams t ON t.id = tm.team_id
		  WHERE tm.user_id = ? AND t.org_id = ?
		  ORDER BY t.id`, userID, orgID)
	if err != nil {
		return nil, translate(err, "list user teams")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, translate(err, "scan team id")
		}
		ids = append(ids, id)
	}
	return ids, translate(rows.Err(), "list user teams")
}

func scanMember(s rowScanner) (*model.OrgMember, error) {
	var (
		m            model.OrgMember
		role, status string
		invitedBy    sql.NullString
	)
	if err := s.Scan(&m.ID, &m.UserID, &m.OrgID, &role, &invitedBy, &status, &m.JoinedAt); err != nil {
		return nil, translate(err, "org member")
	}
	m.Role = model.OrgRole(strings.ToLower(role))
	m.InvitationStatus = model.InvitationStatus(strings.ToLower(status))
	m.InvitedBy = strPtr(invitedBy)
	return &m, nil
}
