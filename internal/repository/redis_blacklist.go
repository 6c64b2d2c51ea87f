package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/job-board/internal/utils"
)

// RedisBlacklist keeps revoked token hashes as expiring Redis keys.  Redis
// drops each key when its TTL ends, so no pruning is needed.
type RedisBlacklist struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisBlacklist(rdb *redis.Client, prefix string) *RedisBlacklist {
	if prefix == "" {
		prefix = "revoked"
	}
	return &RedisBlacklist{rdb: rdb, prefix: prefix}
}

func (b *RedisBlacklist) key(token string) string {
	return b.prefix + ":" + utils.HashToken(token)
}

// Revoke blacklists token for ttl.  A non-positive ttl is a no-op.
func (b *RedisBlacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := b.rdb.Set(ctx, b.key(token), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// IsRevoked reports whether token has a live blacklist key.
func (b *RedisBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := b.rdb.Exists(ctx, b.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("checking blacklist: %w", err)
	}
	return n > 0, nil
}
