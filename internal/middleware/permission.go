package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequirePermission guards an organization scoped route. The organization
// comes from the :org_id path parameter. The caller must present a valid
// access token, belong to the organization and, unless permission is empty,
// hold it through their effective role. The decision is stored in the
// context for handlers.
func RequirePermission(auth Authenticator, permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			orgID := c.Param("org_id")
			if orgID == "" {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "organization id is required"})
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
			defer cancel()
			dec, err := auth.Authorize(ctx, raw, orgID, permission)
			if err != nil {
				return denied(c, err)
			}
			setIdentity(c, dec.Identity)
			c.Set(keyDecision, dec)
			return next(c)
		}
	}
}
