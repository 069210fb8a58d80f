// Package keylock serializes check-then-act critical sections per resource
// key. The nomination quota (institute+category) and team roster mutations are
// the two call sites that need cross-actor mutual exclusion; everything else
// relies on store-level version checks.
package keylock

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// Keyed hands out one mutex per key. Acquisition is bounded by the caller's
// context so a contended lock surfaces as an error instead of blocking
// indefinitely.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry

	// defaultTimeout caps the wait when the caller's context has no deadline.
	defaultTimeout time.Duration
}

// Option configures a Keyed lock.
type Option func(*Keyed)

// WithDefaultTimeout overrides the fallback acquisition timeout applied when
// the caller's context carries no deadline.
func WithDefaultTimeout(d time.Duration) Option {
	return func(k *Keyed) {
		k.defaultTimeout = d
	}
}

// New constructs an empty keyed lock.
func New(opts ...Option) *Keyed {
	k := &Keyed{
		entries:        make(map[string]*entry),
		defaultTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Acquire takes the lock for key, waiting at most until the context deadline
// (or the default timeout when none is set). On success the returned release
// function must be called exactly once. On failure it returns the context
// error so callers can translate it into a contention outcome.
func (k *Keyed) Acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.defaultTimeout)
		defer cancel()
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		k.put(key, e)
		return nil, err
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			e.sem.Release(1)
			k.put(key, e)
		})
	}
	return release, nil
}

func (k *Keyed) put(key string, e *entry) {
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()
}
