package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/job-board/internal/model"
)

// UserFinder is the read side of the user repository.
type UserFinder interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
	ProfileID(ctx context.Context, userID uint64, role model.Role) (uint64, error)
}

// IdentityResolver loads approved users with their role profile id.
type IdentityResolver struct {
	users UserFinder
}

func NewIdentityResolver(users UserFinder) *IdentityResolver {
	return &IdentityResolver{users: users}
}

// Resolve returns the identity of userID.  Every failure, including a
// database error, is reported as ErrIneligible wrapping the cause.
func (r *IdentityResolver) Resolve(ctx context.Context, userID uint64) (model.RequestIdentity, error) {
	u, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return model.RequestIdentity{}, fmt.Errorf("%w: user %d: %w", ErrIneligible, userID, err)
	}
	if !u.Approved() {
		return model.RequestIdentity{}, fmt.Errorf("%w: user %d has status %q", ErrIneligible, userID, u.Status)
	}
	pid, err := r.users.ProfileID(ctx, u.ID, u.Role)
	if err != nil {
		return model.RequestIdentity{}, fmt.Errorf("%w: profile of user %d: %w", ErrIneligible, userID, err)
	}
	return model.IdentityOf(u, pid), nil
}
