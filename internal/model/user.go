package model

import (
	"strings"
	"time"
)

// Role is the closed set of account roles known to the job board.  Values
// read from storage are normalized through ParseRole exactly once, when the
// row is scanned, so comparisons elsewhere are plain equality.
type Role string

const (
	RoleJobSeeker Role = "jobseeker"
	RoleCompany   Role = "company"
	RoleAgent     Role = "agent"
	RoleAdmin     Role = "admin"

	// RoleUnknown is assigned to rows whose stored role is not one of the
	// above.  It never matches an allow-list.
	RoleUnknown Role = ""
)

// Roles lists every assignable role.
var Roles = []Role{RoleJobSeeker, RoleCompany, RoleAgent, RoleAdmin}

// NormalizeRole trims and lower-cases a raw role string.
func NormalizeRole(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ParseRole maps a raw role string onto the enumeration.  The second return
// value is false for unrecognized input, in which case RoleUnknown is returned.
func ParseRole(s string) (Role, bool) {
	n := Role(NormalizeRole(s))
	for _, r := range Roles {
		if n == r {
			return r, true
		}
	}
	return RoleUnknown, false
}

// Status is the account lifecycle state stored in users.status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusSuspended Status = "suspended"
	StatusRejected  Status = "rejected"
)

// ParseStatus normalizes a stored status.  Unrecognized values are kept
// verbatim (lower-cased) so they show up in logs; only StatusApproved is
// ever eligible.
func ParseStatus(s string) Status {
	return Status(strings.ToLower(strings.TrimSpace(s)))
}

// User mirrors the columns of the `users` table read by the auth core.
type User struct {
	ID           uint64    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // never serialized
	Role         Role      `json:"role"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Approved reports whether the account may authenticate.
func (u User) Approved() bool { return u.Status == StatusApproved }

// RequestIdentity is the request-scoped view of the authenticated caller.
// It is rebuilt on every request and discarded with the response.
type RequestIdentity struct {
	ID        uint64 `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	Status    Status `json:"status"`
	ProfileID uint64 `json:"profile_id,omitempty"` // row id in the role's profile table
}

// IdentityOf projects a user row into a RequestIdentity.
func IdentityOf(u User, profileID uint64) RequestIdentity {
	return RequestIdentity{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		Status:    u.Status,
		ProfileID: profileID,
	}
}
