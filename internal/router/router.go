// Package router registers the HTTP surface on an Echo instance.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/opla-backend/internal/handler"
	"github.com/iliyamo/opla-backend/internal/middleware"
)

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, health *handler.HealthHandler, metrics http.Handler) {
	e.GET("/healthz", health.Health)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterAuth registers the sign-in endpoints under /v1/auth behind the
// rate limiter, and /v1/me behind JWTAuth.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, authn middleware.Authenticator, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	if limiter != nil {
		g.Use(limiter)
	}
	g.POST("/register/email", a.RegisterEmail)
	g.POST("/register/phone", a.RegisterPhone)
	g.POST("/login", a.Login)
	g.POST("/otp/request", a.RequestOTP)
	g.POST("/otp/verify", a.VerifyOTP)
	g.POST("/refresh", a.Refresh)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(authn))
}
