// Package router registers the HTTP routes and their middleware chains.
package router

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/job-board/internal/handler"
	"github.com/iliyamo/job-board/internal/middleware"
)

// Deps is what the authenticated routes need.  LoginLimiter may be nil.
type Deps struct {
	Auth         middleware.Authenticator
	Handler      *handler.AuthHandler
	LoginLimiter echo.MiddlewareFunc
	CookieName   string
	Logger       *slog.Logger
}

// RegisterRoutes registers routes that need no authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the auth endpoints under /v1/auth and the
// identity-aware endpoints under /v1.
func RegisterAuth(e *echo.Echo, d Deps) {
	requireAuth := middleware.RequireAuth(d.Auth, d.CookieName, d.Logger)
	optionalAuth := middleware.OptionalAuth(d.Auth, d.CookieName, d.Logger)

	login := []echo.MiddlewareFunc{}
	if d.LoginLimiter != nil {
		login = append(login, d.LoginLimiter)
	}

	g := e.Group("/v1/auth")
	g.POST("/login", d.Handler.Login, login...)
	g.POST("/logout", d.Handler.Logout, requireAuth)

	v1 := e.Group("/v1")
	v1.GET("/session", d.Handler.Session, optionalAuth)
	v1.GET("/me", d.Handler.Me, requireAuth)
	v1.GET("/users/:id", d.Handler.UserByID, requireAuth, middleware.RequireOwnerOrRole("id", "agent"))
	v1.GET("/admin/ping", d.Handler.AdminPing, requireAuth, middleware.RequireRole("admin"))
}
