package utils

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newService(t *testing.T, secret string, clock *fakeClock) *TokenService {
	t.Helper()
	s, err := NewTokenService(secret, WithClock(clock.Now))
	require.NoError(t, err)
	return s
}

func TestNewTokenServiceRejectsEmptySecret(t *testing.T) {
	_, err := NewTokenService("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestCreateVerifyRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_760_000_000, 0)}
	s := newService(t, "s3cret", clock)

	in := Claims{ClaimUserID: 42, "email": "kim@example.com", "name": "김철수", "role": "company"}
	tok, err := s.Create(in)
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(tok, ".")))
	assert.NotContains(t, in, ClaimIssuedAt, "caller map must not be modified")

	got, err := s.Verify(tok)
	require.NoError(t, err)

	uid, err := got.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), uid)
	assert.Equal(t, "kim@example.com", got.String("email"))
	assert.Equal(t, "김철수", got.String("name"))
	assert.Equal(t, "company", got.String("role"))

	iat, err := got.IssuedAt()
	require.NoError(t, err)
	exp, err := got.ExpiresAt()
	require.NoError(t, err)
	assert.Equal(t, clock.t.Unix(), iat.Unix())
	assert.Equal(t, TokenLifetime, exp.Sub(iat))
}

func TestCreateOverridesCallerTimestamps(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_760_000_000, 0)}
	s := newService(t, "s3cret", clock)

	tok, err := s.Create(Claims{ClaimUserID: 1, ClaimIssuedAt: 1, ClaimExpiresAt: 2})
	require.NoError(t, err)
	got, err := s.Verify(tok)
	require.NoError(t, err)
	exp, _ := got.ExpiresAt()
	assert.Equal(t, clock.t.Add(TokenLifetime).Unix(), exp.Unix())
}

func TestHeaderIsFixed(t *testing.T) {
	s := newService(t, "s3cret", &fakeClock{t: time.Now()})
	tok, err := s.Create(Claims{ClaimUserID: 7})
	require.NoError(t, err)

	h, err := DecodeURLSafe(strings.Split(tok, ".")[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"alg":"HS256","typ":"JWT"}`, h)
}

func TestVerifyDetectsSignatureTampering(t *testing.T) {
	s := newService(t, "s3cret", &fakeClock{t: time.Now()})
	tok, err := s.Create(Claims{ClaimUserID: 42})
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	sig := parts[2]
	for i := range sig {
		for _, r := range []byte{alphabet[0], alphabet[1]} {
			if sig[i] == r {
				continue
			}
			b := []byte(sig)
			b[i] = r
			forged := parts[0] + "." + parts[1] + "." + string(b)
			_, err := s.Verify(forged)
			require.ErrorIs(t, err, ErrInvalidToken, "flip at %d to %q accepted", i, r)
			break
		}
	}
}

func TestVerifyDetectsPayloadTampering(t *testing.T) {
	s := newService(t, "s3cret", &fakeClock{t: time.Now()})
	tok, err := s.Create(Claims{ClaimUserID: 42, "role": "jobseeker"})
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	var claims map[string]any
	raw, _ := DecodeURLSafe(parts[1])
	require.NoError(t, json.Unmarshal([]byte(raw), &claims))
	claims["role"] = "admin"
	forgedBody, _ := json.Marshal(claims)
	forged := parts[0] + "." + EncodeSegment(forgedBody) + "." + parts[2]

	_, err = s.Verify(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	tok, err := newService(t, "s3cret", clock).Create(Claims{ClaimUserID: 42})
	require.NoError(t, err)

	_, err = newService(t, "other", clock).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	clock := &fakeClock{t: time.Now().Add(-100000 * time.Second)}
	s := newService(t, "s3cret", clock)
	tok, err := s.Create(Claims{ClaimUserID: 42})
	require.NoError(t, err)

	clock.t = time.Now()
	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyExpiryBoundary(t *testing.T) {
	start := time.Unix(1_760_000_000, 0)
	clock := &fakeClock{t: start}
	s := newService(t, "s3cret", clock)
	tok, err := s.Create(Claims{ClaimUserID: 42})
	require.NoError(t, err)

	clock.t = start.Add(TokenLifetime - time.Second)
	_, err = s.Verify(tok)
	assert.NoError(t, err)
	assert.Equal(t, time.Second, s.RemainingLifetime(Claims{ClaimExpiresAt: start.Add(TokenLifetime).Unix()}))

	clock.t = start.Add(TokenLifetime)
	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRejectsMalformed(t *testing.T) {
	s := newService(t, "s3cret", &fakeClock{t: time.Now()})
	tok, err := s.Create(Claims{ClaimUserID: 42})
	require.NoError(t, err)
	parts := strings.Split(tok, ".")

	noneHeader := EncodeURLSafe(`{"alg":"none","typ":"JWT"}`)
	cases := map[string]string{
		"empty":       "",
		"garbage":     "not-a-token",
		"two parts":   parts[0] + "." + parts[1],
		"four parts":  tok + ".x",
		"bad header":  "%%%." + parts[1] + "." + parts[2],
		"alg none":    noneHeader + "." + parts[1] + ".",
		"bad sig b64": parts[0] + "." + parts[1] + ".***",
		"empty sig":   parts[0] + "." + parts[1] + ".",
	}
	for name, in := range cases {
		_, err := s.Verify(in)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func TestVerifyRequiresExp(t *testing.T) {
	s := newService(t, "s3cret", &fakeClock{t: time.Now()})
	body := EncodeURLSafe(`{"userId":1}`)
	input := encodedHeader + "." + body
	sig, err := jwt.SigningMethodHS256.Sign(input, []byte("s3cret"))
	require.NoError(t, err)

	_, err = s.Verify(input + "." + EncodeSegment(sig))
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestTokensInteroperateWithJWTLibrary(t *testing.T) {
	s := newService(t, "s3cret", &fakeClock{t: time.Now()})
	tok, err := s.Create(Claims{ClaimUserID: 42, "name": "이영희"})
	require.NoError(t, err)

	parsed, err := jwt.Parse(tok, func(*jwt.Token) (any, error) { return []byte("s3cret"), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	require.NoError(t, err)
	mc := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(42), mc[ClaimUserID])
	assert.Equal(t, "이영희", mc["name"])

	// and the other direction: a library-signed token verifies here
	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		ClaimUserID:    7,
		ClaimExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	signed, err := foreign.SignedString([]byte("s3cret"))
	require.NoError(t, err)
	got, err := s.Verify(signed)
	require.NoError(t, err)
	uid, err := got.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), uid)
}

func TestClaimsUserID(t *testing.T) {
	for _, v := range []any{json.Number("42"), 42, int64(42), uint64(42), float64(42), "42"} {
		uid, err := Claims{ClaimUserID: v}.UserID()
		require.NoError(t, err, "%T", v)
		assert.Equal(t, uint64(42), uid)
	}
	for _, v := range []any{nil, "x", 0, -3, 4.5, true} {
		_, err := Claims{ClaimUserID: v}.UserID()
		assert.Error(t, err, "%v", v)
	}
}

func TestHashToken(t *testing.T) {
	a := HashToken("a.b.c")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashToken("a.b.c"))
	assert.NotEqual(t, a, HashToken("a.b.d"))
	assert.NotContains(t, a, "a.b.c")
}

func TestIssueReturnsSignedClaims(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	s := newService(t, "s3cret", &fakeClock{t: start})

	tok, signed, err := s.Issue(Claims{ClaimUserID: 42})
	require.NoError(t, err)
	exp, err := signed.ExpiresAt()
	require.NoError(t, err)
	assert.Equal(t, start.Add(TokenLifetime), exp)

	verified, err := s.Verify(tok)
	require.NoError(t, err)
	vexp, err := verified.ExpiresAt()
	require.NoError(t, err)
	assert.Equal(t, exp, vexp)
}
