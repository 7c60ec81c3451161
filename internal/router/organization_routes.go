package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/opla-backend/internal/handler"
	"github.com/iliyamo/opla-backend/internal/middleware"
)

// Permissions required by the organization routes. Routes registered with
// member only need organization membership.
const (
	PermMembersInvite = "members:invite"
	PermRolesManage   = "roles:manage"
	PermRolesAssign   = "roles:assign"
	PermTeamsManage   = "teams:manage"
	member            = ""
)

// RegisterOrganizations registers /v1/organizations. Creating and listing
// organizations only needs a valid access token; every route below :org_id
// passes through RequirePermission.
func RegisterOrganizations(e *echo.Echo, o *handler.OrgHandler, r *handler.RoleHandler, t *handler.TeamHandler, authn middleware.Authenticator) {
	e.POST("/v1/organizations", o.Create, middleware.JWTAuth(authn))
	e.GET("/v1/organizations", o.List, middleware.JWTAuth(authn))

	g := e.Group("/v1/organizations/:org_id")
	need := func(perm string) echo.MiddlewareFunc { return middleware.RequirePermission(authn, perm) }

	// ---- Organization ----
	g.GET("", o.Get, need(member))
	g.GET("/members", o.Members, need(member))
	g.POST("/members", o.Invite, need(PermMembersInvite))

	// ---- Roles ----
	g.GET("/roles", r.List, need(member))
	g.POST("/roles", r.Create, need(PermRolesManage))
	g.PUT("/roles/:role_id", r.Update, need(PermRolesManage))
	g.DELETE("/roles/:role_id", r.Delete, need(PermRolesManage))

	// ---- Role assignments ----
	g.GET("/role-assignments", r.ListAssignments, need(member))
	g.POST("/role-assignments", r.Assign, need(PermRolesAssign))
	g.DELETE("/role-assignments/:accessor_type/:accessor_id", r.RemoveAssignment, need(PermRolesAssign))
	g.GET("/effective-role", r.Effective, need(member))

	// ---- Teams ----
	g.GET("/teams", t.List, need(member))
	g.POST("/teams", t.Create, need(PermTeamsManage))
	g.GET("/teams/:team_id", t.Get, need(member))
	g.PUT("/teams/:team_id", t.Update, need(PermTeamsManage))
	g.DELETE("/teams/:team_id", t.Delete, need(PermTeamsManage))
	g.GET("/teams/:team_id/members", t.Members, need(member))
	g.POST("/teams/:team_id/members", t.AddMember, need(PermTeamsManage))
	g.DELETE("/teams/:team_id/members/:user_id", t.RemoveMember, need(PermTeamsManage))
}
