package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/opla-backend/internal/model"
	"github.com/iliyamo/opla-backend/internal/rbac"
)

// RoleService is the part of the gateway the role endpoints use.
type RoleService interface {
	ListRoles(ctx context.Context, orgID string) ([]model.RoleTemplate, error)
	CreateRole(ctx context.Context, orgID string, in rbac.RoleInput) (*model.RoleTemplate, error)
	UpdateRole(ctx context.Context, orgID, roleID string, upd rbac.RoleUpdate) (*model.RoleTemplate, error)
	DeleteRole(ctx context.Context, orgID, roleID string) error
	ListAssignments(ctx context.Context, orgID string) ([]model.RoleAssignment, error)
	AssignRole(ctx context.Context, orgID, roleID string, acc model.Accessor, assignedBy string) (*model.RoleAssignment, error)
	RemoveAssignment(ctx context.Context, orgID string, acc model.Accessor) error
	EffectiveRole(ctx context.Context, orgID, userID string) (rbac.Resolution, error)
}

// RoleHandler serves role templates, role assignments and effective roles.
type RoleHandler struct {
	Roles RoleService
}

func NewRoleHandler(r RoleService) *RoleHandler {
	return &RoleHandler{Roles: r}
}

type roleReq struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Permissions []string `json:"permissions"`
	Priority    *int     `json:"priority"`
}

type assignReq struct {
	RoleID       string `json:"role_id"`
	AccessorType string `json:"accessor_type"` // user | team
	AccessorID   string `json:"accessor_id"`
}

type effectiveRoleResp struct {
	UserID      string           `json:"user_id"`
	Role        *roleResp        `json:"role"`
	Permissions []string         `json:"permissions"`
	Assignments []assignmentResp `json:"assignments"`
}

func (h *RoleHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	roles, err := h.Roles.ListRoles(ctx, c.Param("org_id"))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]*roleResp, 0, len(roles))
	for i := range roles {
		out = append(out, toRole(&roles[i]))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *RoleHandler) Create(c echo.Context) error {
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if req.Name == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	role, err := h.Roles.CreateRole(ctx, c.Param("org_id"), rbac.RoleInput{
		Name:        *req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
		Priority:    req.Priority,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toRole(role))
}

// Update applies the fields present in the body; system roles are refused.
func (h *RoleHandler) Update(c echo.Context) error {
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	role, err := h.Roles.UpdateRole(ctx, c.Param("org_id"), c.Param("role_id"), rbac.RoleUpdate{
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
		Priority:    req.Priority,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toRole(role))
}

func (h *RoleHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Roles.DeleteRole(ctx, c.Param("org_id"), c.Param("role_id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *RoleHandler) ListAssignments(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Roles.ListAssignments(ctx, c.Param("org_id"))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]assignmentResp, 0, len(list))
	for i := range list {
		out = append(out, toAssignment(&list[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// Assign binds a role to a user or team, replacing any previous role of
// that accessor.
func (h *RoleHandler) Assign(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var req assignReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	typ, ok := model.ParseAccessorType(req.AccessorType)
	if !ok || req.AccessorID == "" || req.RoleID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role_id, accessor_type (user|team) and accessor_id required"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	a, err := h.Roles.AssignRole(ctx, c.Param("org_id"), req.RoleID, model.Accessor{Type: typ, ID: req.AccessorID}, u.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toAssignment(a))
}

func (h *RoleHandler) RemoveAssignment(c echo.Context) error {
	typ, ok := model.ParseAccessorType(c.Param("accessor_type"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "accessor_type must be user or team"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	acc := model.Accessor{Type: typ, ID: c.Param("accessor_id")}
	if err := h.Roles.RemoveAssignment(ctx, c.Param("org_id"), acc); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Effective resolves the effective role of ?user_id, or of the caller.
func (h *RoleHandler) Effective(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	userID := c.QueryParam("user_id")
	if userID == "" {
		userID = u.ID
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Roles.EffectiveRole(ctx, c.Param("org_id"), userID)
	if err != nil {
		return respondError(c, err)
	}
	out := effectiveRoleResp{
		UserID:      userID,
		Role:        toRole(res.Role),
		Permissions: res.Permissions(),
		Assignments: make([]assignmentResp, 0, len(res.Grants)),
	}
	if out.Permissions == nil {
		out.Permissions = []string{}
	}
	for i := range res.Grants {
		out.Assignments = append(out.Assignments, toAssignment(&res.Grants[i].Assignment))
	}
	return c.JSON(http.StatusOK, out)
}
