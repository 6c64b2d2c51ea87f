// Package service holds the request-independent auth logic: the
// authentication pipeline, identity resolution, blacklist pruning and the
// auth event stream.  HTTP concerns live in the middleware and handler
// packages.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/job-board/internal/model"
	"github.com/iliyamo/job-board/internal/utils"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrTokenRevoked = errors.New("token revoked")
	ErrIneligible   = errors.New("user not eligible")

	// ErrStoreUnavailable accompanies ErrTokenRevoked when the revocation
	// store could not be queried.
	ErrStoreUnavailable = errors.New("revocation store unavailable")
)

// Outcome classifies an authentication attempt.
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeMissingToken
	OutcomeInvalidToken
	OutcomeRevoked
	OutcomeIneligible
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeMissingToken:
		return "missing_token"
	case OutcomeInvalidToken:
		return "invalid_token"
	case OutcomeRevoked:
		return "revoked"
	case OutcomeIneligible:
		return "ineligible"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is what Authenticate hands back.  Identity and Claims are set only
// when Outcome is OutcomeAccepted; Err carries the cause otherwise.
type Result struct {
	Outcome  Outcome
	Identity model.RequestIdentity
	Claims   utils.Claims
	Err      error
}

func (r Result) Accepted() bool { return r.Outcome == OutcomeAccepted }

// TokenVerifier checks a token's signature and expiry.
type TokenVerifier interface {
	Verify(token string) (utils.Claims, error)
}

// RevocationStore records logged-out tokens until they would have expired.
type RevocationStore interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Resolver turns a user id into the identity of the current request.
type Resolver interface {
	Resolve(ctx context.Context, userID uint64) (model.RequestIdentity, error)
}

// Authenticator runs verify, revocation check and identity resolution in
// that order, stopping at the first failure.
type Authenticator struct {
	tokens     TokenVerifier
	revoked    RevocationStore
	identities Resolver
}

func NewAuthenticator(tokens TokenVerifier, revoked RevocationStore, identities Resolver) *Authenticator {
	return &Authenticator{tokens: tokens, revoked: revoked, identities: identities}
}

// Authenticate classifies raw, the token as presented by the client.  An
// unreachable revocation store counts as revoked.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) Result {
	if raw == "" {
		return Result{Outcome: OutcomeMissingToken, Err: ErrMissingToken}
	}

	claims, err := a.tokens.Verify(raw)
	if err != nil {
		return Result{Outcome: OutcomeInvalidToken, Err: err}
	}

	revoked, err := a.revoked.IsRevoked(ctx, raw)
	if err != nil {
		return Result{Outcome: OutcomeRevoked, Err: fmt.Errorf("%w: %w: %w", ErrTokenRevoked, ErrStoreUnavailable, err)}
	}
	if revoked {
		return Result{Outcome: OutcomeRevoked, Err: ErrTokenRevoked}
	}

	uid, err := claims.UserID()
	if err != nil {
		return Result{Outcome: OutcomeInvalidToken, Err: fmt.Errorf("%w: %w", utils.ErrInvalidToken, err)}
	}
	ident, err := a.identities.Resolve(ctx, uid)
	if err != nil {
		return Result{Outcome: OutcomeIneligible, Err: err}
	}
	return Result{Outcome: OutcomeAccepted, Identity: ident, Claims: claims}
}
