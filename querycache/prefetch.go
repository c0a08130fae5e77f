package querycache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-query-cache/cache"
)

// PrefetchOptions control the speculative-fetch decision.
type PrefetchOptions struct {
	// Force prefetches regardless of cached state, unless the key is
	// already pending.
	Force bool

	// IfOlderThan prefetches when the entry never fulfilled or its last
	// fulfillment is at least this old. Nil disables the age policy; an
	// explicit zero means "always stale".
	IfOlderThan *time.Duration
}

// IfOlderThan is a convenience constructor for the age policy.
func IfOlderThan(d time.Duration) PrefetchOptions {
	return PrefetchOptions{IfOlderThan: &d}
}

// ShouldPrefetch is the pure prefetch decision:
//
//   - Force: prefetch unless the key is currently pending.
//   - IfOlderThan set: prefetch iff the entry never fulfilled or
//     now - FulfilledAt >= IfOlderThan. Zero always prefetches.
//   - Neither: prefetch iff the entry never fulfilled.
//
// It performs no I/O; the caller decides whether to invoke the query
// path.
func ShouldPrefetch(entry cache.Entry, opts PrefetchOptions, now time.Time) bool {
	if opts.Force {
		return entry.Status != cache.StatusPending
	}
	if opts.IfOlderThan != nil {
		if !entry.HasFulfilled() {
			return true
		}
		return now.Sub(entry.FulfilledAt) >= *opts.IfOlderThan
	}
	return !entry.HasFulfilled()
}

// Prefetch speculatively runs a query endpoint in the background when the
// policy says so. Fire-and-forget: it never blocks on the fetch and never
// reports an error to the caller.
func (c *Client) Prefetch(name string, arg any, opts PrefetchOptions) {
	if c.closed.Load() {
		return
	}

	key := c.keys.SerializeKey(name, arg)
	entry, _ := c.store.Entry(key)
	if !ShouldPrefetch(entry, opts, c.now()) {
		return
	}

	c.background.Add(1)
	go func() {
		defer c.background.Done()
		if _, err := c.RunQuery(context.Background(), name, arg, QueryOptions{Force: true}); err != nil {
			c.log.Debug("prefetch failed", zap.String("key", key), zap.Error(err))
		}
	}()
}
