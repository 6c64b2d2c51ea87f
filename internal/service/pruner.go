package service

import (
	"context"
	"log/slog"
	"time"
)

// ExpiredDeleter is implemented by blacklist stores that need explicit
// cleanup.  The Redis store expires keys on its own and does not.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// BlacklistPruner periodically removes expired blacklist rows.
type BlacklistPruner struct {
	store  ExpiredDeleter
	every  time.Duration
	logger *slog.Logger
}

func NewBlacklistPruner(store ExpiredDeleter, every time.Duration, logger *slog.Logger) *BlacklistPruner {
	return &BlacklistPruner{store: store, every: every, logger: logger}
}

// Run prunes once immediately and then on every tick until ctx is done.
// A non-positive interval returns at once.
func (p *BlacklistPruner) Run(ctx context.Context) {
	if p.every <= 0 {
		return
	}
	ticker := time.NewTicker(p.every)
	defer ticker.Stop()

	_, _ = p.PruneOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = p.PruneOnce(ctx)
		}
	}
}

// PruneOnce runs a single cleanup pass.
func (p *BlacklistPruner) PruneOnce(ctx context.Context) (int64, error) {
	n, err := p.store.DeleteExpired(ctx)
	if err != nil {
		p.logger.Error("blacklist prune failed", "error", err)
		return 0, err
	}
	if n > 0 {
		p.logger.Debug("blacklist pruned", "deleted", n)
	}
	return n, nil
}
