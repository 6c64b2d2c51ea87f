package middleware

import (
	"log/slog"

	"github.com/labstack/echo/v4"
)

// OptionalAuth attaches the caller's identity when the token is accepted
// and otherwise lets the request through anonymously.  It never rejects.
func OptionalAuth(auth Authenticator, cookieName string, logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := ExtractToken(c.Request(), cookieName)
			if raw == "" {
				return next(c)
			}
			res := auth.Authenticate(c.Request().Context(), raw)
			if res.Accepted() {
				attach(c, raw, res.Identity, res.Claims)
			} else {
				logger.Debug("optional authentication ignored", "outcome", res.Outcome.String(), "error", res.Err, "path", c.Path())
			}
			return next(c)
		}
	}
}
