package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/opla-backend/internal/model"
)

// TeamRepo persists `teams` and `team_members`.
type TeamRepo struct{ DB *sql.DB }

func NewTeamRepo(db *sql.DB) *TeamRepo { return &TeamRepo{DB: db} }

// Create inserts t, assigning an id and timestamps.
func (r *TeamRepo) Create(ctx context.Context, t *model.Team) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO teams (id,org_id,name,description,created_at,updated_at) VALUES (?,?,?,?,?,?)",
		t.ID, t.OrgID, t.Name, nullString(t.Description), t.CreatedAt, t.UpdatedAt)
	return translate(err, "create team")
}

// Get fetches a team of orgID; teams of other organizations are not found.
func (r *TeamRepo) Get(ctx context.Context, orgID, teamID string) (*model.Team, error) {
	var (
		t    model.Team
		desc sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT t.id,t.org_id,t.name,t.description,t.created_at,t.updated_at,
		        (SELECT COUNT(*) FROM team_members tm WHERE tm.team_id = t.id)
		   FROM teams t WHERE t.id=? AND t.org_id=? LIMIT 1`, teamID, orgID).
		Scan(&t.ID, &t.OrgID, &t.Name, &desc, &t.CreatedAt, &t.UpdatedAt, &t.MemberCount)
	if err != nil {
		return nil, translate(err, "get team")
	}
	t.Description = strPtr(desc)
	return &t, nil
}

// ListByOrg returns the teams of orgID with their member counts.
func (r *TeamRepo) ListByOrg(ctx context.Context, orgID string) ([]model.Team, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT t.id,t.org_id,t.name,t.description,t.created_at,t.updated_at,COUNT(tm.id)
		   FROM teams t
		   LEFT JOIN team_members tm ON tm.team_id = t.id
		  WHERE t.org_id = ?
		  GROUP BY t.id,t.org_id,t.name,t.description,t.created_at,t.updated_at
		  ORDER BY t.name, t.id`, orgID)
	if err != nil {
		return nil, translate(err, "list teams")
	}
	defer rows.Close()

	var out []model.Team
	for rows.Next() {
		var (
			t    model.Team
			desc sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.OrgID, &t.Name, &desc, &t.CreatedAt, &t.UpdatedAt, &t.MemberCount); err != nil {
			return nil, translate(err, "scan team")
		}
		t.Description = strPtr(desc)
		out = append(out, t)
	}
	return out, translate(rows.Err(), "list teams")
}

// Update writes name and description of t.
func (r *TeamRepo) Update(ctx context.Context, t *model.Team) error {
	t.UpdatedAt = time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		"UPDATE teams SET name=?, description=?, updated_at=? WHERE id=? AND org_id=?",
		t.Name, nullString(t.Description), t.UpdatedAt, t.ID, t.OrgID)
	if err != nil {
		return translate(err, "update team")
	}
	return requireAffected(res, "update team")
}

// Delete removes a team; its memberships and assignments go with it.
func (r *TeamRepo) Delete(ctx context.Context, orgID, teamID string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return translate(err, "begin delete team")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM org_role_assignments WHERE org_id=? AND accessor_type=? AND accessor_id=?",
		orgID, string(model.AccessorTeam), teamID); err != nil {
		return translate(err, "delete team assignments")
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM teams WHERE id=? AND org_id=?", teamID, orgID)
	if err != nil {
		return translate(err, "delete team")
	}
	if err := requireAffected(res, "delete team"); err != nil {
		return err
	}
	return translate(tx.Commit(), "commit delete team")
}

// AddMember adds userID to teamID. Adding an existing member returns the
// existing row.
func (r *TeamRepo) AddMember(ctx context.Context, teamID, userID string) (*model.TeamMember, error) {
	tm := &model.TeamMember{
		ID:       uuid.NewString(),
		TeamID:   teamID,
		UserID:   userID,
		JoinedAt: time.Now().UTC(),
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO team_members (id,team_id,user_id,joined_at) VALUES (?,?,?,?)",
		tm.ID, tm.TeamID, tm.UserID, tm.JoinedAt)
	if err == nil {
		return tm, nil
	}
	if !isDuplicate(err) {
		return nil, translate(err, "add team member")
	}
	existing := &model.TeamMember{}
	err = r.DB.QueryRowContext(ctx,
		"SELECT id,team_id,user_id,joined_at FROM team_members WHERE team_id=? AND user_id=? LIMIT 1",
		teamID, userID).Scan(&existing.ID, &existing.TeamID, &existing.UserID, &existing.JoinedAt)
	if err != nil {
		return nil, translate(err, "get team member")
	}
	return existing, nil
}

// RemoveMember returns model.ErrNotFound when userID was not in teamID.
func (r *TeamRepo) RemoveMember(ctx context.Context, teamID, userID string) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM team_members WHERE team_id=? AND user_id=?", teamID, userID)
	if err != nil {
		return translate(err, "remove team member")
	}
	return requireAffected(res, "remove team member")
}

// ListMembers returns the members of teamID.
func (r *TeamRepo) ListMembers(ctx context.Context, teamID string) ([]model.TeamMember, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,team_id,user_id,joined_at FROM team_members WHERE team_id=? ORDER BY joined_at, id", teamID)
	if err != nil {
		return nil, translate(err, "list team members")
	}
	defer rows.Close()

	var out []model.TeamMember
	for rows.Next() {
		var tm model.TeamMember
		if err := rows.Scan(&tm.ID, &tm.TeamID, &tm.UserID, &tm.JoinedAt); err != nil {
			return nil, translate(err, "scan team member")
		}
		out = append(out, tm)
	}
	return out, translate(rows.Err(), "list team members")
}

// requireAffected turns a zero-row write into model.ErrNotFound.
func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err, what)
	}
	if n == 0 {
		return translate(sql.ErrNoRows, what)
	}
	return nil
}

