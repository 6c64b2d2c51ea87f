package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/job-board/internal/service"
)

// Authenticator is the pipeline the auth middleware delegates to.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) service.Result
}

// ExtractToken returns the bearer token of r, falling back to the named
// cookie.  The scheme is matched case-insensitively.  It returns "" when
// neither carries a token.
func ExtractToken(r *http.Request, cookieName string) string {
	if h := r.Header.Get(echo.HeaderAuthorization); h != "" {
		scheme, tok, ok := strings.Cut(strings.TrimSpace(h), " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			if tok = strings.TrimSpace(tok); tok != "" {
				return tok
			}
		}
	}
	if cookieName == "" {
		return ""
	}
	if ck, err := r.Cookie(cookieName); err == nil {
		return strings.TrimSpace(ck.Value)
	}
	return ""
}

// RequireAuth rejects the request with 401 unless auth accepts its token.
// On success the identity is available through IdentityFrom and
// IdentityFromContext.  The rejection reason is logged, never returned.
func RequireAuth(auth Authenticator, cookieName string, logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := ExtractToken(c.Request(), cookieName)
			res := auth.Authenticate(c.Request().Context(), raw)
			if !res.Accepted() {
				logRejection(logger, c, res)
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			attach(c, raw, res.Identity, res.Claims)
			return next(c)
		}
	}
}

func logRejection(logger *slog.Logger, c echo.Context, res service.Result) {
	attrs := []any{
		"outcome", res.Outcome.String(),
		"error", res.Err,
		"method", c.Request().Method,
		"path", c.Path(),
		"remote_ip", c.RealIP(),
	}
	if errors.Is(res.Err, service.ErrStoreUnavailable) {
		logger.Error("authentication rejected", attrs...)
		return
	}
	logger.Info("authentication rejected", attrs...)
}
