package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/opla-backend/internal/gateway"
	"github.com/iliyamo/opla-backend/internal/model"
	"github.com/iliyamo/opla-backend/internal/rbac"
)

// OrgService is the part of the gateway the organization endpoints use.
type OrgService interface {
	CreateOrganization(ctx context.Context, ownerID string, in gateway.OrganizationInput) (*model.Organization, error)
	ListOrganizations(ctx context.Context, userID string) ([]model.Organization, error)
	GetOrganization(ctx context.Context, orgID string) (*model.Organization, error)
	ListMembers(ctx context.Context, orgID string) ([]model.OrgMember, error)
	InviteMember(ctx context.Context, orgID, invitedBy, emailOrPhone string, role model.OrgRole) (*model.OrgMember, bool, error)
	EffectiveRole(ctx context.Context, orgID, userID string) (rbac.Resolution, error)
}

// OrgHandler serves organizations and their memberships. Organization
// scoped routes run behind middleware.RequirePermission, so handlers here
// only see members.
type OrgHandler struct {
	Orgs OrgService
}

func NewOrgHandler(o OrgService) *OrgHandler {
	return &OrgHandler{Orgs: o}
}

type createOrgReq struct {
	Name         string  `json:"name"`
	LogoURL      *string `json:"logo_url"`
	PrimaryColor string  `json:"primary_color"`
}

type inviteReq struct {
	EmailOrPhone string `json:"email_or_phone"`
	Role         string `json:"role"` // admin | member, default member
}

func (h *OrgHandler) Create(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var req createOrgReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	org, err := h.Orgs.CreateOrganization(ctx, u.ID, gateway.OrganizationInput{
		Name:         req.Name,
		LogoURL:      req.LogoURL,
		PrimaryColor: req.PrimaryColor,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toOrg(org))
}

// List returns the caller's organizations.
func (h *OrgHandler) List(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	orgs, err := h.Orgs.ListOrganizations(ctx, u.ID)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]orgResp, 0, len(orgs))
	for i := range orgs {
		out = append(out, toOrg(&orgs[i]))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrgHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	org, err := h.Orgs.GetOrganization(ctx, c.Param("org_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toOrg(org))
}

// Members lists the organization's members, each with its effective role.
func (h *OrgHandler) Members(c echo.Context) error {
	orgID := c.Param("org_id")
	ctx, cancel := reqCtx(c)
	defer cancel()

	members, err := h.Orgs.ListMembers(ctx, orgID)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]memberResp, 0, len(members))
	for i := range members {
		m := toMember(&members[i])
		res, err := h.Orgs.EffectiveRole(ctx, orgID, members[i].UserID)
		if err != nil {
			return respondError(c, err)
		}
		m.EffectiveRole = toRole(res.Role)
		out = append(out, m)
	}
	return c.JSON(http.StatusOK, out)
}

// Invite adds an existing identity as a pending member. 201 when a row was
// created, 200 when the identity already belonged to the organization.
func (h *OrgHandler) Invite(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var req inviteReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	role := model.OrgRole(strings.ToLower(strings.TrimSpace(req.Role)))
	m, created, err := h.Orgs.InviteMember(ctx, c.Param("org_id"), u.ID, req.EmailOrPhone, role)
	if err != nil {
		return respondError(c, err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, toMember(m))
}
