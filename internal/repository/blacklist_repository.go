package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/job-board/internal/utils"
)

// BlacklistRepo persists revoked tokens in 'token_blacklist'.  Rows hold the
// SHA-256 of the token, never the token, and an expiry after which they are
// ignored and may be pruned:
//
//	CREATE TABLE token_blacklist (
//	  token_hash CHAR(64) NOT NULL PRIMARY KEY,
//	  expires_at DATETIME NOT NULL,
//	  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
//	  KEY idx_token_blacklist_expires (expires_at)
//	);
type BlacklistRepo struct {
	DB  *sql.DB
	now func() time.Time
}

func NewBlacklistRepo(db *sql.DB) *BlacklistRepo {
	return &BlacklistRepo{DB: db, now: time.Now}
}

// Revoke blacklists token until now+ttl.  Revoking an already listed token
// moves its expiry.  A non-positive ttl is a no-op.
func (r *BlacklistRepo) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	exp := r.now().UTC().Add(ttl)
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO token_blacklist (token_hash, expires_at) VALUES (?,?) ON DUPLICATE KEY UPDATE expires_at=VALUES(expires_at)",
		utils.HashToken(token), exp)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// IsRevoked reports whether an active (unexpired) entry exists for token.
func (r *BlacklistRepo) IsRevoked(ctx context.Context, token string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM token_blacklist WHERE token_hash=? AND expires_at>? LIMIT 1",
		utils.HashToken(token), r.now().UTC()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking blacklist: %w", err)
	}
	return true, nil
}

// DeleteExpired removes entries that no longer block anything and returns
// how many were deleted.
func (r *BlacklistRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM token_blacklist WHERE expires_at<=?", r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting expired blacklist entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted blacklist entries: %w", err)
	}
	return n, nil
}
