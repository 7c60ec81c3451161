package middleware

// identity.go holds the context keys shared by the auth middlewares and the
// accessors handlers use to read them.

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/opla-backend/internal/gateway"
	"github.com/iliyamo/opla-backend/internal/model"
)

const (
	keyIdentity = "identity"
	keyUserID   = "user_id"
	keyDecision = "decision"
)

// Identity returns the authenticated identity, or nil on public routes.
func Identity(c echo.Context) *model.Identity {
	u, _ := c.Get(keyIdentity).(*model.Identity)
	return u
}

// Decision returns the authorization granted by RequirePermission.
func Decision(c echo.Context) (gateway.Decision, bool) {
	d, ok := c.Get(keyDecision).(gateway.Decision)
	return d, ok
}

func setIdentity(c echo.Context, u *model.Identity) {
	c.Set(keyIdentity, u)
	c.Set(keyUserID, u.ID)
}

// userID returns the authenticated user id or "anon".
func userID(c echo.Context) string {
	if s, ok := c.Get(keyUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}

func bearerToken(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}

// denied renders an authentication or authorization failure. Token errors
// are never told apart.
func denied(c echo.Context, err error) error {
	switch {
	case errors.Is(err, model.ErrTokenInvalid):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	case errors.Is(err, model.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": forbiddenMessage(err)})
	default:
		c.Logger().Errorf("authorization failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}

// forbiddenMessage strips the sentinel prefix from a wrapped ErrForbidden.
func forbiddenMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), model.ErrForbidden.Error()+": ")
	if msg == "" {
		return model.ErrForbidden.Error()
	}
	return msg
}
