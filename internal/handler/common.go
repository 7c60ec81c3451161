package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/opla-backend/internal/middleware"
	"github.com/iliyamo/opla-backend/internal/model"
)

// requestTimeout bounds every store call made on behalf of one request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// currentUser returns the identity placed in the context by JWTAuth or
// RequirePermission.
func currentUser(c echo.Context) (*model.Identity, error) {
	u := middleware.Identity(c)
	if u == nil {
		return nil, errors.New("no identity in context")
	}
	return u, nil
}

// respondError maps the error taxonomy onto HTTP statuses. Unknown errors
// are logged and reported as 500 without detail.
func respondError(c echo.Context, err error) error {
	var rl *model.RateLimitError
	switch {
	case errors.As(err, &rl):
		secs := int((rl.RetryAfter + time.Second - 1) / time.Second)
		if secs < 1 {
			secs = 1
		}
		c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": rl.Message()})
	case errors.Is(err, model.ErrRateLimited):
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": detail(err, model.ErrRateLimited)})
	case errors.Is(err, model.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": detail(err, model.ErrInvalidCredentials)})
	case errors.Is(err, model.ErrTokenInvalid):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	case errors.Is(err, model.ErrServiceUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "OTP service temporarily unavailable"})
	case errors.Is(err, model.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": detail(err, model.ErrNotFound)})
	case errors.Is(err, model.ErrInvalidAccessor):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": detail(err, model.ErrInvalidAccessor)})
	case errors.Is(err, model.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": detail(err, model.ErrForbidden)})
	case errors.Is(err, model.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": detail(err, model.ErrConflict)})
	case errors.Is(err, model.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": detail(err, model.ErrInvalidInput)})
	case errors.Is(err, context.DeadlineExceeded):
		c.Logger().Errorf("request timed out: %v", err)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "request timed out"})
	}
	c.Logger().Errorf("internal error: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}

// detail strips the sentinel prefix added by fmt.Errorf("%w: ...").
func detail(err, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()+": "); i >= 0 {
		return msg[i+len(sentinel.Error())+2:]
	}
	return sentinel.Error()
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
}
