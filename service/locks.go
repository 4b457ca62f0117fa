package service

import (
	"context"
	"sync"
	"time"

	"github.com/warp/point-ledger/ledger"
)

// =============================================================================
// PER-(PROFILE, PERIOD) LOCKS
// =============================================================================

// lockKey scopes serialization to one profile's period. Two settlements
// for different periods of the same profile do not contend.
type lockKey struct {
	ProfileID ledger.ProfileID
	Period    ledger.Period
}

// lockTable hands out one-slot semaphores per key. Waiting is bounded:
// a caller that cannot acquire the lock within the timeout fails with
// ErrConcurrencyConflict instead of hanging.
type lockTable struct {
	mu    sync.Mutex
	locks map[lockKey]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[lockKey]chan struct{})}
}

// acquire returns a release function, or an error when the lock could not
// be obtained before the timeout or the caller's context was canceled.
func (t *lockTable) acquire(ctx context.Context, key lockKey, timeout time.Duration) (release func(), err error) {
	t.mu.Lock()
	sem, ok := t.locks[key]
	if !ok {
		sem = make(chan struct{}, 1)
		t.locks[key] = sem
	}
	t.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-timer.C:
		return nil, ledger.ErrConcurrencyConflict
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
