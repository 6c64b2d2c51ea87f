package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/job-board/internal/logging"
)

type countingDeleter struct {
	calls atomic.Int32
	err   error
}

func (d *countingDeleter) DeleteExpired(context.Context) (int64, error) {
	d.calls.Add(1)
	if d.err != nil {
		return 0, d.err
	}
	return 2, nil
}

func TestPruneOnce(t *testing.T) {
	d := &countingDeleter{}
	n, err := NewBlacklistPruner(d, time.Hour, logging.Discard()).PruneOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	d.err = errors.New("lock wait timeout")
	_, err = NewBlacklistPruner(d, time.Hour, logging.Discard()).PruneOnce(context.Background())
	assert.ErrorContains(t, err, "lock wait timeout")
}

func TestPrunerRunTicksUntilCancelled(t *testing.T) {
	d := &countingDeleter{}
	p := NewBlacklistPruner(d, 10*time.Millisecond, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return d.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pruner did not stop")
	}
}

func TestPrunerDisabled(t *testing.T) {
	d := &countingDeleter{}
	NewBlacklistPruner(d, 0, logging.Discard()).Run(context.Background())
	assert.Zero(t, d.calls.Load())
}
