// Package lockguard provides per-key mutual exclusion with a bounded wait.
// The attendance service serialises scans per student identifier with it so
// two near-simultaneous scans cannot produce duplicate rows or interleaved
// read-modify-write payment updates.
package lockguard

import (
	"context"
	"fmt"
	"sync"
	"time"

	appErrors "github.com/markazapp/markaz-core/pkg/errors"
)

// KeyedMutex hands out at most one Guard per key at a time. Waiters block
// cooperatively until the holder releases or their timeout elapses; there is
// no spinning and no fairness guarantee beyond wakeup on release.
type KeyedMutex struct {
	mu      sync.Mutex
	held    map[string]chan struct{}
	waiters int
}

// Guard represents ownership of one key. Release is idempotent: double
// release is a no-op, so defer-plus-explicit call patterns are safe.
type Guard struct {
	km   *KeyedMutex
	key  string
	ch   chan struct{}
	once sync.Once
}

// New returns an empty KeyedMutex.
func New() *KeyedMutex {
	return &KeyedMutex{held: make(map[string]chan struct{})}
}

// Acquire blocks until the key is free, the timeout elapses, or ctx is
// cancelled. A timeout surfaces as a LOCK_TIMEOUT error the caller may retry
// with backoff. A crashed holder never blocks waiters forever: their own
// timeout is the safety valve.
func (km *KeyedMutex) Acquire(ctx context.Context, key string, timeout time.Duration) (*Guard, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		km.mu.Lock()
		ch, taken := km.held[key]
		if !taken {
			ch = make(chan struct{})
			km.held[key] = ch
			km.mu.Unlock()
			return &Guard{km: km, key: key, ch: ch}, nil
		}
		km.waiters++
		km.mu.Unlock()

		select {
		case <-ch:
			// Holder released; loop and race for the key again.
			km.decWaiters()
		case <-timer.C:
			km.decWaiters()
			return nil, appErrors.Clone(appErrors.ErrLockTimeout,
				fmt.Sprintf("timed out waiting for lock on %q", key))
		case <-ctx.Done():
			km.decWaiters()
			return nil, ctx.Err()
		}
	}
}

func (km *KeyedMutex) decWaiters() {
	km.mu.Lock()
	km.waiters--
	km.mu.Unlock()
}

// Release frees the key and wakes every waiter. Safe to call more than once.
func (g *Guard) Release() {
	g.once.Do(func() {
		g.km.mu.Lock()
		if g.km.held[g.key] == g.ch {
			delete(g.km.held, g.key)
		}
		g.km.mu.Unlock()
		close(g.ch)
	})
}

// Key returns the key this guard owns.
func (g *Guard) Key() string {
	return g.key
}

// Stats reports current holders and waiters, for the maintenance surface.
type Stats struct {
	Held    int      `json:"held"`
	Waiters int      `json:"waiters"`
	Keys    []string `json:"keys"`
}

// Stats snapshots the guard state.
func (km *KeyedMutex) Stats() Stats {
	km.mu.Lock()
	defer km.mu.Unlock()

	keys := make([]string, 0, len(km.held))
	for k := range km.held {
		keys = append(keys, k)
	}
	return Stats{Held: len(km.held), Waiters: km.waiters, Keys: keys}
}
