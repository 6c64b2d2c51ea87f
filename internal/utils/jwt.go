// Package utils provides the token, encoding and password primitives of the
// auth core.
package utils

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenLifetime is the fixed validity window of every issued token.
const TokenLifetime = 24 * time.Hour

// Claim names the service always sets or reads.
const (
	ClaimUserID    = "userId"
	ClaimIssuedAt  = "iat"
	ClaimExpiresAt = "exp"
)

// ErrInvalidToken is the single failure callers of Verify branch on.  The
// more specific errors below are wrapped alongside it for diagnostics only.
var ErrInvalidToken = errors.New("invalid token")

var (
	ErrMalformedToken    = errors.New("malformed token")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrTokenExpired      = errors.New("token expired")
	ErrEmptySecret       = errors.New("token secret must not be empty")
)

// Claims is a decoded token payload.  Numbers decoded by Verify are
// json.Number values so integer ids survive without float rounding.
type Claims map[string]any

// UserID returns the numeric subject stored under "userId".
func (c Claims) UserID() (uint64, error) {
	n, err := intClaim(c[ClaimUserID])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: bad %s claim", ErrMalformedToken, ClaimUserID)
	}
	return uint64(n), nil
}

// IssuedAt returns the "iat" claim.
func (c Claims) IssuedAt() (time.Time, error) { return c.timeClaim(ClaimIssuedAt) }

// ExpiresAt returns the "exp" claim.
func (c Claims) ExpiresAt() (time.Time, error) { return c.timeClaim(ClaimExpiresAt) }

// String returns a string claim or "" when absent or of another type.
func (c Claims) String(key string) string {
	s, _ := c[key].(string)
	return s
}

func (c Claims) timeClaim(key string) (time.Time, error) {
	n, err := intClaim(c[key])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad %s claim", ErrMalformedToken, key)
	}
	return time.Unix(n, 0).UTC(), nil
}

// intClaim accepts the shapes an integer claim can take before and after a
// JSON round-trip.
func intClaim(v any) (int64, error) {
	switch t := v.(type) {
	case json.Number:
		return t.Int64()
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case uint64:
		if t > math.MaxInt64 {
			return 0, errors.New("out of range")
		}
		return int64(t), nil
	case float64:
		if t != math.Trunc(t) {
			return 0, errors.New("not an integer")
		}
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	}
	return 0, errors.New("missing or non-numeric")
}

type tokenHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// encodedHeader is the first segment of every token: {"alg":"HS256","typ":"JWT"}.
var encodedHeader = func() string {
	b, _ := json.Marshal(tokenHeader{Alg: jwt.SigningMethodHS256.Alg(), Typ: "JWT"})
	return EncodeSegment(b)
}()

// TokenService issues and verifies HS256 tokens with a single shared secret.
// It holds no mutable state and is safe for concurrent use.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// TokenOption customizes a TokenService.
type TokenOption func(*TokenService)

// WithClock replaces time.Now, letting tests move the clock.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService returns a service keyed with secret.
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	s := &TokenService{secret: []byte(secret), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Create signs claims.  "iat" is set to the current time and "exp" to
// iat + TokenLifetime; caller values for either are overwritten.  The
// caller's map is not modified.
func (s *TokenService) Create(claims Claims) (string, error) {
	token, _, err := s.Issue(claims)
	return token, err
}

// Issue is Create that also returns the claims exactly as signed.
func (s *TokenService) Issue(claims Claims) (string, Claims, error) {
	iat := s.now().Unix()
	payload := make(Claims, len(claims)+2)
	for k, v := range claims {
		payload[k] = v
	}
	payload[ClaimIssuedAt] = iat
	payload[ClaimExpiresAt] = iat + int64(TokenLifetime/time.Second)

	body, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("encoding claims: %w", err)
	}
	signingInput := encodedHeader + "." + EncodeSegment(body)
	sig, err := jwt.SigningMethodHS256.Sign(signingInput, s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("signing token: %w", err)
	}
	return signingInput + "." + EncodeSegment(sig), payload, nil
}

// Verify checks structure, signature and expiry, in that order, and returns
// the decoded claims.  Every failure satisfies errors.Is(err, ErrInvalidToken).
// There is no clock-skew allowance: a token is valid only while now < exp.
func (s *TokenService) Verify(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, invalid(fmt.Errorf("%w: want 3 segments, got %d", ErrMalformedToken, len(parts)))
	}

	hb, err := DecodeSegment(parts[0])
	if err != nil {
		return nil, invalid(fmt.Errorf("%w: header: %w", ErrMalformedToken, err))
	}
	var h tokenHeader
	if err := json.Unmarshal(hb, &h); err != nil || h.Alg != jwt.SigningMethodHS256.Alg() {
		return nil, invalid(fmt.Errorf("%w: unsupported header", ErrMalformedToken))
	}

	sig, err := DecodeSegment(parts[2])
	if err != nil {
		return nil, invalid(fmt.Errorf("%w: signature: %w", ErrMalformedToken, err))
	}
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, s.secret); err != nil {
		return nil, invalid(ErrSignatureMismatch)
	}

	pb, err := DecodeSegment(parts[1])
	if err != nil {
		return nil, invalid(fmt.Errorf("%w: payload: %w", ErrMalformedToken, err))
	}
	dec := json.NewDecoder(bytes.NewReader(pb))
	dec.UseNumber()
	var claims Claims
	if err := dec.Decode(&claims); err != nil || claims == nil {
		return nil, invalid(fmt.Errorf("%w: payload is not a JSON object", ErrMalformedToken))
	}

	exp, err := claims.ExpiresAt()
	if err != nil {
		return nil, invalid(err)
	}
	if !s.now().Before(exp) {
		return nil, invalid(ErrTokenExpired)
	}
	return claims, nil
}

// RemainingLifetime is how long claims stay valid from now; zero once
// expired or when exp is unreadable.
func (s *TokenService) RemainingLifetime(claims Claims) time.Duration {
	exp, err := claims.ExpiresAt()
	if err != nil {
		return 0
	}
	if d := exp.Sub(s.now()); d > 0 {
		return d
	}
	return 0
}

func invalid(cause error) error {
	return fmt.Errorf("%w: %w", ErrInvalidToken, cause)
}

// HashToken returns the SHA-256 hex digest of a raw token.  Revocation
// records store only this value, so a leaked blacklist cannot be replayed.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
