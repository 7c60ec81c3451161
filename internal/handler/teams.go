package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/opla-backend/internal/gateway"
	"github.com/iliyamo/opla-backend/internal/model"
)

// TeamService is the part of the gateway the team endpoints use.
type TeamService interface {
	CreateTeam(ctx context.Context, orgID string, in gateway.TeamInput) (*model.Team, error)
	ListTeams(ctx context.Context, orgID string) ([]model.Team, error)
	GetTeam(ctx context.Context, orgID, teamID string) (*model.Team, error)
	UpdateTeam(ctx context.Context, orgID, teamID string, name *string, description *string) (*model.Team, error)
	DeleteTeam(ctx context.Context, orgID, teamID string) error
	AddTeamMember(ctx context.Context, orgID, teamID, userID string) (*model.TeamMember, error)
	RemoveTeamMember(ctx context.Context, orgID, teamID, userID string) error
	ListTeamMembers(ctx context.Context, orgID, teamID string) ([]model.TeamMember, error)
}

type TeamHandler struct {
	Teams TeamService
}

func NewTeamHandler(t TeamService) *TeamHandler {
	return &TeamHandler{Teams: t}
}

type teamReq struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type teamMemberReq struct {
	UserID string `json:"user_id"`
}

func (h *TeamHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	teams, err := h.Teams.ListTeams(ctx, c.Param("org_id"))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]teamResp, 0, len(teams))
	for i := range teams {
		out = append(out, toTeam(&teams[i]))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *TeamHandler) Create(c echo.Context) error {
	var req teamReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if req.Name == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Teams.CreateTeam(ctx, c.Param("org_id"), gateway.TeamInput{Name: *req.Name, Description: req.Description})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toTeam(t))
}

func (h *TeamHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Teams.GetTeam(ctx, c.Param("org_id"), c.Param("team_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toTeam(t))
}

func (h *TeamHandler) Update(c echo.Context) error {
	var req teamReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Teams.UpdateTeam(ctx, c.Param("org_id"), c.Param("team_id"), req.Name, req.Description)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toTeam(t))
}

// Delete removes the team, its memberships and its role assignment.
func (h *TeamHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Teams.DeleteTeam(ctx, c.Param("org_id"), c.Param("team_id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *TeamHandler) Members(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	members, err := h.Teams.ListTeamMembers(ctx, c.Param("org_id"), c.Param("team_id"))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]teamMemberResp, 0, len(members))
	for i := range members {
		out = append(out, toTeamMember(&members[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// AddMember is idempotent: adding a current member returns its row.
func (h *TeamHandler) AddMember(c echo.Context) error {
	var req teamMemberReq
	if err := c.Bind(&req); err != nil || req.UserID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id required"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	m, err := h.Teams.AddTeamMember(ctx, c.Param("org_id"), c.Param("team_id"), req.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toTeamMember(m))
}

func (h *TeamHandler) RemoveMember(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Teams.RemoveTeamMember(ctx, c.Param("org_id"), c.Param("team_id"), c.Param("user_id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
