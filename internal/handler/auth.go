// Package handler holds the HTTP handlers.  Authentication itself happens
// in middleware; handlers read the result through middleware.IdentityFrom.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/job-board/internal/middleware"
	"github.com/iliyamo/job-board/internal/model"
	"github.com/iliyamo/job-board/internal/queue"
	"github.com/iliyamo/job-board/internal/repository"
	"github.com/iliyamo/job-board/internal/service"
	"github.com/iliyamo/job-board/internal/utils"
)

const (
	dbTimeout      = 5 * time.Second
	publishTimeout = 5 * time.Second
)

// dummyPassword is verified against when the email is unknown, so a miss
// costs one hash like a hit does.
const dummyPassword = "job-board-dummy-password"

// UserStore is the slice of the user repository the handlers need.
type UserStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	UpdatePasswordHash(ctx context.Context, id uint64, hash string) error
}

// Passwords verifies and (re)hashes password digests.
type Passwords interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
	NeedsRehash(digest string) bool
}

// TokenIssuer signs new tokens and reports how long one stays valid.
type TokenIssuer interface {
	Issue(claims utils.Claims) (string, utils.Claims, error)
	RemainingLifetime(claims utils.Claims) time.Duration
}

// AuthHandler bundles dependencies for the auth and identity endpoints.
type AuthHandler struct {
	Users        UserStore
	Passwords    Passwords
	Tokens       TokenIssuer
	Revocations  service.RevocationStore
	Events       service.EventPublisher
	Logger       *slog.Logger
	CookieName   string
	CookieSecure bool

	// PublishTimeout bounds each background event publish; zero means 5s.
	PublishTimeout time.Duration

	dummyOnce   sync.Once
	dummyDigest string
	inflight    sync.WaitGroup
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userPart struct {
	ID    uint64     `json:"id"`
	Email string     `json:"email"`
	Name  string     `json:"name"`
	Role  model.Role `json:"role"`
}

type loginResp struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userPart  `json:"user"`
}

// Login checks email and password and issues a token, returned in the body
// and as an HttpOnly cookie.  Legacy digests are upgraded on success.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		h.Passwords.Verify(req.Password, h.dummy())
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		h.Logger.Error("login: user lookup failed", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !h.Passwords.Verify(req.Password, u.PasswordHash) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if !u.Approved() {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account not approved", "status": u.Status})
	}

	if h.Passwords.NeedsRehash(u.PasswordHash) {
		h.rehash(ctx, u.ID, req.Password)
	}

	token, signed, err := h.Tokens.Issue(utils.Claims{utils.ClaimUserID: u.ID})
	if err != nil {
		h.Logger.Error("login: issuing token failed", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	expires, err := signed.ExpiresAt()
	if err != nil {
		h.Logger.Error("login: issued token has no expiry", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}

	c.SetCookie(h.cookie(token, int(utils.TokenLifetime/time.Second)))
	h.publish(c, queue.NewAuthEvent(queue.EventLogin, u.ID, u.Email, string(u.Role), c.RealIP()))

	return c.JSON(http.StatusOK, loginResp{
		Token:     token,
		ExpiresAt: expires,
		User:      userPart{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role},
	})
}

func (h *AuthHandler) rehash(ctx context.Context, userID uint64, password string) {
	digest, err := h.Passwords.Hash(password)
	if err == nil {
		err = h.Users.UpdatePasswordHash(ctx, userID, digest)
	}
	if err != nil {
		h.Logger.Warn("login: password rehash failed", "user_id", userID, "error", err)
		return
	}
	h.Logger.Info("login: password digest upgraded", "user_id", userID)
}

// Logout revokes the presented token for the rest of its lifetime and
// clears the auth cookie.  It must run behind RequireAuth.
func (h *AuthHandler) Logout(c echo.Context) error {
	token, ok := middleware.TokenFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	claims, _ := middleware.ClaimsFrom(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Revocations.Revoke(ctx, token, h.Tokens.RemainingLifetime(claims)); err != nil {
		h.Logger.Error("logout: revoke failed", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	c.SetCookie(h.cookie("", -1))

	if id, ok := middleware.IdentityFrom(c); ok {
		h.publish(c, queue.NewAuthEvent(queue.EventLogout, id.ID, id.Email, string(id.Role), c.RealIP()))
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's identity.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, id)
}

// Session reports whether the request is authenticated.  Used behind
// OptionalAuth, so it answers 200 either way.
func (h *AuthHandler) Session(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusOK, echo.Map{"authenticated": false})
	}
	return c.JSON(http.StatusOK, echo.Map{"authenticated": true, "identity": id})
}

// UserByID returns the public fields of a user.
func (h *AuthHandler) UserByID(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	if err != nil {
		h.Logger.Error("user lookup failed", "user_id", id, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, u)
}

// AdminPing lets operators check that an admin token works.
func (h *AuthHandler) AdminPing(c echo.Context) error {
	id, _ := middleware.IdentityFrom(c)
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "user_id": id.ID})
}

func (h *AuthHandler) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// publish sends ev in the background, bounded by PublishTimeout and
// detached from the request's cancellation.
func (h *AuthHandler) publish(c echo.Context, ev queue.AuthEvent) {
	if h.Events == nil {
		return
	}
	timeout := h.PublishTimeout
	if timeout <= 0 {
		timeout = publishTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), timeout)

	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		defer cancel()
		if err := h.Events.Publish(ctx, ev); err != nil {
			h.Logger.Warn("auth event not published", "type", ev.Type, "user_id", ev.UserID, "error", err)
		}
	}()
}

// Wait blocks until every background event publish has returned.
func (h *AuthHandler) Wait() { h.inflight.Wait() }

// dummy returns a digest in the current format, hashed on first use.
func (h *AuthHandler) dummy() string {
	h.dummyOnce.Do(func() {
		d, err := h.Passwords.Hash(dummyPassword)
		if err != nil {
			h.Logger.Warn("login: dummy digest unavailable", "error", err)
			return
		}
		h.dummyDigest = d
	})
	return h.dummyDigest
}

// Prepare computes the dummy digest ahead of the first login.
func (h *AuthHandler) Prepare() { h.dummy() }
