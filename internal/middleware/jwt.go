package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/opla-backend/internal/gateway"
	"github.com/iliyamo/opla-backend/internal/model"
)

// Authenticator resolves bearer tokens; *gateway.Gateway implements it.
type Authenticator interface {
	Principal(ctx context.Context, accessToken string) (*model.Identity, error)
	Authorize(ctx context.Context, accessToken, orgID, permission string) (gateway.Decision, error)
}

// authTimeout bounds the store lookups behind token and permission checks.
const authTimeout = 5 * time.Second

// JWTAuth requires a valid Bearer access token for an active identity and
// stores that identity in the context. Handlers read it with Identity(c).
func JWTAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
			defer cancel()
			u, err := auth.Principal(ctx, raw)
			if err != nil {
				return denied(c, err)
			}
			setIdentity(c, u)
			return next(c)
		}
	}
}
