package middleware

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/job-board/internal/model"
)

// RequireRole lets the request through when the authenticated identity has
// one of roles.  Entries are compared case- and whitespace-insensitively;
// entries naming no known role never match.  It must run after RequireAuth;
// a request without identity is answered 401.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := allowList(roles)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			if !slices.Contains(allowed, id.Role) {
				return forbidden(c, allowed, id.Role)
			}
			return next(c)
		}
	}
}

// RequireOwnerOrRole lets the request through when the path parameter
// param equals the caller's user id, when the caller has one of roles, or
// when the caller is an admin.
func RequireOwnerOrRole(param string, roles ...string) echo.MiddlewareFunc {
	allowed := allowList(roles)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			if id.Role == model.RoleAdmin || slices.Contains(allowed, id.Role) {
				return next(c)
			}
			if owner, err := strconv.ParseUint(c.Param(param), 10, 64); err == nil && owner == id.ID {
				return next(c)
			}
			return forbidden(c, allowed, id.Role)
		}
	}
}

func allowList(roles []string) []model.Role {
	out := make([]model.Role, 0, len(roles))
	for _, r := range roles {
		if role, ok := model.ParseRole(r); ok && !slices.Contains(out, role) {
			out = append(out, role)
		}
	}
	return out
}

func forbidden(c echo.Context, required []model.Role, actual model.Role) error {
	return c.JSON(http.StatusForbidden, echo.Map{
		"error":          "forbidden",
		"required_roles": required,
		"role":           actual,
	})
}
