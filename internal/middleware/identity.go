package middleware

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/job-board/internal/model"
	"github.com/iliyamo/job-board/internal/utils"
)

// Echo context keys set by RequireAuth and OptionalAuth.
const (
	identityKey = "identity"
	tokenKey    = "auth_token"
	claimsKey   = "auth_claims"
)

type identityCtxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id model.RequestIdentity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (model.RequestIdentity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(model.RequestIdentity)
	return id, ok
}

// IdentityFrom returns the authenticated identity of the request, if any.
func IdentityFrom(c echo.Context) (model.RequestIdentity, bool) {
	id, ok := c.Get(identityKey).(model.RequestIdentity)
	return id, ok
}

// TokenFrom returns the raw token that authenticated the request.
func TokenFrom(c echo.Context) (string, bool) {
	tok, ok := c.Get(tokenKey).(string)
	return tok, ok && tok != ""
}

// ClaimsFrom returns the verified claims of the request's token.
func ClaimsFrom(c echo.Context) (utils.Claims, bool) {
	cl, ok := c.Get(claimsKey).(utils.Claims)
	return cl, ok
}

func attach(c echo.Context, raw string, id model.RequestIdentity, claims utils.Claims) {
	c.Set(identityKey, id)
	c.Set(tokenKey, raw)
	c.Set(claimsKey, claims)
	c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
}

// userID is the rate limiter's view of the caller: the identity id, or
// "anon" before authentication.
func userID(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok && id.ID != 0 {
		return strconv.FormatUint(id.ID, 10)
	}
	return "anon"
}
