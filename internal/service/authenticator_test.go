package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/job-board/internal/model"
	"github.com/iliyamo/job-board/internal/repository"
	"github.com/iliyamo/job-board/internal/utils"
)

type fakeStore struct {
	revoked map[string]bool
	err     error
	calls   int
}

func (s *fakeStore) Revoke(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if s.revoked == nil {
		s.revoked = map[string]bool{}
	}
	s.revoked[token] = true
	return nil
}

func (s *fakeStore) IsRevoked(_ context.Context, token string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.revoked[token], nil
}

type fakeUsers struct {
	users      map[uint64]model.User
	profiles   map[uint64]uint64
	err        error
	profileErr error
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	if f.err != nil {
		return model.User{}, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) ProfileID(_ context.Context, userID uint64, _ model.Role) (uint64, error) {
	if f.profileErr != nil {
		return 0, f.profileErr
	}
	return f.profiles[userID], nil
}

func approvedUsers() *fakeUsers {
	return &fakeUsers{
		users: map[uint64]model.User{
			42: {ID: 42, Email: "jimin@example.kr", Name: "박지민", Role: model.RoleAgent, Status: model.StatusApproved},
			43: {ID: 43, Email: "pending@example.kr", Role: model.RoleCompany, Status: model.StatusPending},
		},
		profiles: map[uint64]uint64{42: 9},
	}
}

func newTokens(t *testing.T) *utils.TokenService {
	t.Helper()
	ts, err := utils.NewTokenService("s3cret")
	require.NoError(t, err)
	return ts
}

func TestAuthenticateAccepted(t *testing.T) {
	tokens := newTokens(t)
	auth := NewAuthenticator(tokens, &fakeStore{}, NewIdentityResolver(approvedUsers()))

	tok, err := tokens.Create(utils.Claims{utils.ClaimUserID: 42})
	require.NoError(t, err)

	res := auth.Authenticate(context.Background(), tok)
	require.True(t, res.Accepted(), "outcome=%s err=%v", res.Outcome, res.Err)
	assert.NoError(t, res.Err)
	assert.Equal(t, uint64(42), res.Identity.ID)
	assert.Equal(t, model.RoleAgent, res.Identity.Role)
	assert.Equal(t, uint64(9), res.Identity.ProfileID)
	uid, err := res.Claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), uid)
}

func TestAuthenticateMissingToken(t *testing.T) {
	store := &fakeStore{}
	auth := NewAuthenticator(newTokens(t), store, NewIdentityResolver(approvedUsers()))

	res := auth.Authenticate(context.Background(), "")
	assert.Equal(t, OutcomeMissingToken, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrMissingToken)
	assert.Zero(t, store.calls)
}

func TestAuthenticateInvalidToken(t *testing.T) {
	store := &fakeStore{}
	auth := NewAuthenticator(newTokens(t), store, NewIdentityResolver(approvedUsers()))

	other, err := utils.NewTokenService("other")
	require.NoError(t, err)
	foreign, err := other.Create(utils.Claims{utils.ClaimUserID: 42})
	require.NoError(t, err)

	for _, raw := range []string{"garbage", "a.b.c", foreign} {
		res := auth.Authenticate(context.Background(), raw)
		assert.Equal(t, OutcomeInvalidToken, res.Outcome, raw)
		assert.ErrorIs(t, res.Err, utils.ErrInvalidToken, raw)
	}
	// the revocation store is never consulted for unverifiable tokens
	assert.Zero(t, store.calls)
}

func TestAuthenticateExpired(t *testing.T) {
	past := time.Now().Add(-100000 * time.Second)
	issuer, err := utils.NewTokenService("s3cret", utils.WithClock(func() time.Time { return past }))
	require.NoError(t, err)
	tok, err := issuer.Create(utils.Claims{utils.ClaimUserID: 42})
	require.NoError(t, err)

	auth := NewAuthenticator(newTokens(t), &fakeStore{}, NewIdentityResolver(approvedUsers()))
	res := auth.Authenticate(context.Background(), tok)
	assert.Equal(t, OutcomeInvalidToken, res.Outcome)
	assert.ErrorIs(t, res.Err, utils.ErrTokenExpired)
}

func TestAuthenticateWithoutUserID(t *testing.T) {
	tokens := newTokens(t)
	auth := NewAuthenticator(tokens, &fakeStore{}, NewIdentityResolver(approvedUsers()))
	tok, err := tokens.Create(utils.Claims{"scope": "read"})
	require.NoError(t, err)

	res := auth.Authenticate(context.Background(), tok)
	assert.Equal(t, OutcomeInvalidToken, res.Outcome)
	assert.ErrorIs(t, res.Err, utils.ErrInvalidToken)
}

func TestAuthenticateRevoked(t *testing.T) {
	tokens := newTokens(t)
	store := &fakeStore{}
	auth := NewAuthenticator(tokens, store, NewIdentityResolver(approvedUsers()))
	tok, err := tokens.Create(utils.Claims{utils.ClaimUserID: 42})
	require.NoError(t, err)

	require.NoError(t, store.Revoke(context.Background(), tok, time.Hour))
	res := auth.Authenticate(context.Background(), tok)
	assert.Equal(t, OutcomeRevoked, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrTokenRevoked)
	assert.Empty(t, res.Identity.Email)
}

func TestAuthenticateStoreFailureFailsClosed(t *testing.T) {
	tokens := newTokens(t)
	outage := errors.New("connection refused")
	auth := NewAuthenticator(tokens, &fakeStore{err: outage}, NewIdentityResolver(approvedUsers()))
	tok, err := tokens.Create(utils.Claims{utils.ClaimUserID: 42})
	require.NoError(t, err)

	res := auth.Authenticate(context.Background(), tok)
	assert.Equal(t, OutcomeRevoked, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrTokenRevoked)
	assert.ErrorIs(t, res.Err, ErrStoreUnavailable)
	assert.ErrorIs(t, res.Err, outage)
}

func TestAuthenticateIneligible(t *testing.T) {
	tokens := newTokens(t)
	auth := NewAuthenticator(tokens, &fakeStore{}, NewIdentityResolver(approvedUsers()))

	for _, uid := range []uint64{43, 99} {
		tok, err := tokens.Create(utils.Claims{utils.ClaimUserID: uid})
		require.NoError(t, err)
		res := auth.Authenticate(context.Background(), tok)
		assert.Equal(t, OutcomeIneligible, res.Outcome, uid)
		assert.ErrorIs(t, res.Err, ErrIneligible, uid)
	}
}

// Issue, authenticate, log out and authenticate again against a Redis
// blacklist.
func TestAuthenticateLogoutScenario(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	tokens := newTokens(t)
	store := repository.NewRedisBlacklist(rdb, "")
	auth := NewAuthenticator(tokens, store, NewIdentityResolver(approvedUsers()))
	ctx := context.Background()

	tok, err := tokens.Create(utils.Claims{utils.ClaimUserID: 42})
	require.NoError(t, err)
	require.True(t, auth.Authenticate(ctx, tok).Accepted())

	res := auth.Authenticate(ctx, tok)
	require.NoError(t, store.Revoke(ctx, tok, tokens.RemainingLifetime(res.Claims)))
	assert.Equal(t, OutcomeRevoked, auth.Authenticate(ctx, tok).Outcome)

	// the entry disappears once the token itself would have expired
	mr.FastForward(utils.TokenLifetime + time.Second)
	assert.False(t, mr.Exists("revoked:"+utils.HashToken(tok)))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "accepted", OutcomeAccepted.String())
	assert.Equal(t, "missing_token", OutcomeMissingToken.String())
	assert.Equal(t, "invalid_token", OutcomeInvalidToken.String())
	assert.Equal(t, "revoked", OutcomeRevoked.String())
	assert.Equal(t, "ineligible", OutcomeIneligible.String())
	assert.Equal(t, "outcome(17)", Outcome(17).String())
}
