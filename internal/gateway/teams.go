package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/opla-backend/internal/model"
)

// TeamInput carries the fields of a new or updated team.
type TeamInput struct {
	Name        string
	Description *string
}

func (g *Gateway) CreateTeam(ctx context.Context, orgID string, in TeamInput) (*model.Team, error) {
	name, err := requireName(in.Name, "team name", 255)
	if err != nil {
		return nil, err
	}
	t := &model.Team{OrgID: orgID, Name: name, Description: in.Description}
	if err := g.teams.Create(ctx, t); err != nil {
		return nil, err
	}
	g.log.Info("team created", "org_id", orgID, "team_id", t.ID)
	return t, nil
}

func (g *Gateway) ListTeams(ctx context.Context, orgID string) ([]model.Team, error) {
	return g.teams.ListByOrg(ctx, orgID)
}

func (g *Gateway) GetTeam(ctx context.Context, orgID, teamID string) (*model.Team, error) {
	return g.teams.Get(ctx, orgID, teamID)
}

// UpdateTeam renames a team and/or replaces its description.
func (g *Gateway) UpdateTeam(ctx context.Context, orgID, teamID string, name *string, description *string) (*model.Team, error) {
	t, err := g.teams.Get(ctx, orgID, teamID)
	if err != nil {
		return nil, err
	}
	if name != nil {
		if t.Name, err = requireName(*name, "team name", 255); err != nil {
			return nil, err
		}
	}
	if description != nil {
		t.Description = description
	}
	if err := g.teams.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTeam removes a team together with its memberships and role assignment.
func (g *Gateway) DeleteTeam(ctx context.Context, orgID, teamID string) error {
	if err := g.teams.Delete(ctx, orgID, teamID); err != nil {
		return err
	}
	g.log.Info("team deleted", "org_id", orgID, "team_id", teamID)
	return nil
}

// AddTeamMember adds an organization member to a team of that organization.
// Adding an existing team member is a no-op that returns the existing row.
func (g *Gateway) AddTeamMember(ctx context.Context, orgID, teamID, userID string) (*model.TeamMember, error) {
	if _, err := g.teams.Get(ctx, orgID, teamID); err != nil {
		return nil, err
	}
	if _, err := g.members.GetMember(ctx, orgID, userID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("%w: user is not a member of this organization", model.ErrInvalidAccessor)
		}
		return nil, err
	}
	return g.teams.AddMember(ctx, teamID, userID)
}

func (g *Gateway) RemoveTeamMember(ctx context.Context, orgID, teamID, userID string) error {
	if _, err := g.teams.Get(ctx, orgID, teamID); err != nil {
		return err
	}
	return g.teams.RemoveMember(ctx, teamID, userID)
}

func (g *Gateway) ListTeamMembers(ctx context.Context, orgID, teamID string) ([]model.TeamMember, error) {
	if _, err := g.teams.Get(ctx, orgID, teamID); err != nil {
		return nil, err
	}
	return g.teams.ListMembers(ctx, teamID)
}
