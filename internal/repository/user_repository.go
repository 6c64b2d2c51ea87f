package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/job-board/internal/model"
)

// profileTables maps each role to the table holding its profile row.
// Admins have no profile table.
var profileTables = map[model.Role]string{
	model.RoleJobSeeker: "job_seekers",
	model.RoleCompany:   "companies",
	model.RoleAgent:     "agents",
}

const userColumns = "id,email,name,password_hash,role,status,created_at,updated_at"

// UserRepo reads accounts from the 'users' table.  Accounts are created by
// the registration flows; the auth core only reads them and upgrades
// password digests.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// GetByID fetches a user by primary key.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
	return scanUser(row)
}

// UpdatePasswordHash replaces a user's password digest.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id uint64, hash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=UTC_TIMESTAMP() WHERE id=?", hash, id)
	if err != nil {
		return fmt.Errorf("updating password hash: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ProfileID returns the id of the user's row in the profile table of role,
// or 0 when the role has no profile table or the row does not exist yet.
func (r *UserRepo) ProfileID(ctx context.Context, userID uint64, role model.Role) (uint64, error) {
	table, ok := profileTables[role]
	if !ok {
		return 0, nil
	}
	var id uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT id FROM "+table+" WHERE user_id=? LIMIT 1", userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading %s profile: %w", table, err)
	}
	return id, nil
}

// scanUser reads one user row, normalizing role and status on the way in.
func scanUser(row *sql.Row) (model.User, error) {
	var (
		u            model.User
		role, status string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &status, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("reading user: %w", err)
	}
	u.Role, _ = model.ParseRole(role)
	u.Status = model.ParseStatus(status)
	return u, nil
}
