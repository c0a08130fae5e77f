package querycache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/endpoint"
)

// SubscriptionOptions describe one subscriber's preferences for a key.
// Options from concurrent subscribers of the same key are merged: the
// effective poll interval is the minimum non-zero interval, the refetch
// flags are OR-ed.
type SubscriptionOptions struct {
	// PollInterval triggers a forced refetch on each tick while at least
	// one subscriber remains and the client is focused. Zero disables
	// polling for this subscriber.
	PollInterval time.Duration

	// RefetchOnFocus refetches the key when HandleFocus fires.
	RefetchOnFocus bool

	// RefetchOnReconnect refetches the key when HandleReconnect fires.
	RefetchOnReconnect bool

	// RefetchIfOlderThan applies a time-based staleness threshold to the
	// fetch this subscription triggers. Zero disables it.
	RefetchIfOlderThan time.Duration
}

// Subscription is a live consumer's handle on a cache key. Holding it
// extends the entry's retention; releasing the last one starts the
// eviction grace timer.
type Subscription struct {
	client *Client
	key    string
	id     uint64
	once   sync.Once
}

// Key returns the serialized cache key this subscription holds.
func (s *Subscription) Key() string { return s.key }

// Unsubscribe releases the subscription. Idempotent. Entry data is never
// cleared synchronously; eviction happens after the grace period, and
// only if no new subscriber arrived in the meantime.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.client.unsubscribe(s.key, s.id)
	})
}

// Subscribe registers a subscriber for a query endpoint + argument and
// triggers the run condition. The first subscriber of a key causes the
// initial fetch; later subscribers join the cached entry, refetching only
// if their staleness threshold demands it. Data retained for the key
// after a previous eviction is seeded back before the fetch starts.
func (c *Client) Subscribe(ctx context.Context, name string, arg any, opts SubscriptionOptions) (*Subscription, error) {
	if c.closed.Load() {
		return nil, cache.ErrClientClosed
	}

	def, ok := c.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", cache.ErrUnknownEndpoint, name)
	}
	if def.Kind != endpoint.KindQuery {
		return nil, fmt.Errorf("%w: %q is not a query", cache.ErrWrongKind, name)
	}

	key := c.keys.SerializeKey(name, arg)
	id := c.subSeq.Add(1)

	rt := c.lockRuntime(key, name, arg)
	if rt.evict != nil {
		rt.evict.Stop()
		rt.evict = nil
	}
	rt.subs[id] = opts
	c.seedFromRetentionLocked(key)
	c.reconcilePollingLocked(rt)
	rt.mu.Unlock()

	go func() {
		if _, err := c.RunQuery(ctx, name, arg, QueryOptions{StaleAfter: opts.RefetchIfOlderThan}); err != nil {
			c.log.Warn("subscription fetch failed", zap.String("key", key), zap.Error(err))
		}
	}()

	return &Subscription{client: c, key: key, id: id}, nil
}

// seedFromRetentionLocked restores warm data for a key that has no entry
// yet. Called with the key's runtime lock held.
func (c *Client) seedFromRetentionLocked(key string) {
	if c.retention == nil {
		return
	}
	if _, exists := c.store.Entry(key); exists {
		return
	}
	data, fulfilledAt, ok := c.retention.Take(key)
	if !ok {
		return
	}
	c.store.Dispatch(cache.QuerySeeded{Key: key, Data: data, FulfilledAt: fulfilledAt})
	c.log.Debug("seeded entry from retention", zap.String("key", key))
}

func (c *Client) unsubscribe(key string, id uint64) {
	rt, ok := c.runtimes.Load(key)
	if !ok {
		return
	}

	rt.mu.Lock()
	if rt.dead {
		rt.mu.Unlock()
		return
	}
	delete(rt.subs, id)
	c.reconcilePollingLocked(rt)
	if len(rt.subs) == 0 && !c.closed.Load() {
		if rt.evict != nil {
			rt.evict.Stop()
		}
		rt.evict = time.AfterFunc(c.keepUnusedFor, func() {
			c.evictKey(key)
		})
	}
	rt.mu.Unlock()
}

// evictKey removes an entry whose grace period elapsed with no
// subscribers, demoting its last good data into the retention store.
func (c *Client) evictKey(key string) {
	rt, ok := c.runtimes.Load(key)
	if !ok {
		return
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if len(rt.subs) > 0 {
		// A subscriber came back while the timer was firing.
		return
	}
	rt.evict = nil
	rt.dead = true

	entry, exists := c.store.Entry(key)
	if exists && c.retention != nil && entry.Data != nil {
		c.retention.Put(key, entry.Data, entry.FulfilledAt)
	}
	c.store.Dispatch(cache.QueryRemoved{Key: key})
	c.tags.remove(key)
	c.runtimes.Delete(key)
	c.log.Debug("evicted entry", zap.String("key", key))
}

// poller drives periodic forced refetches for one key.
type poller struct {
	interval time.Duration
	stop     chan struct{}
	once     sync.Once
}

func (p *poller) stopOnce() {
	p.once.Do(func() { close(p.stop) })
}

// reconcilePollingLocked recomputes the effective poll interval (minimum
// non-zero across subscribers) and restarts the key's poller when it
// changed. Called with the key's runtime lock held.
func (c *Client) reconcilePollingLocked(rt *keyRuntime) {
	var interval time.Duration
	for _, opts := range rt.subs {
		if opts.PollInterval <= 0 {
			continue
		}
		if interval == 0 || opts.PollInterval < interval {
			interval = opts.PollInterval
		}
	}

	if rt.poll != nil && rt.poll.interval == interval {
		return
	}
	if rt.poll != nil {
		rt.poll.stopOnce()
		rt.poll = nil
	}
	if interval <= 0 {
		return
	}

	p := &poller{interval: interval, stop: make(chan struct{})}
	rt.poll = p
	key := rt.key

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				if !c.focused.Load() {
					continue
				}
				c.refetchKey(key)
			}
		}
	}()
}

// refetchKey forces a refetch of a key using its recorded endpoint and
// argument.
func (c *Client) refetchKey(key string) {
	rt, ok := c.runtimes.Load(key)
	if !ok {
		return
	}
	if _, err := c.RunQuery(context.Background(), rt.endpoint, rt.args, QueryOptions{Force: true}); err != nil {
		c.logRefetchError(key, err)
	}
}

// HandleFocus is the external visibility signal: it forces a refetch of
// every key with at least one subscriber that opted into RefetchOnFocus,
// and marks the client focused so polling resumes.
func (c *Client) HandleFocus() {
	c.focused.Store(true)
	c.refetchWhere(func(opts SubscriptionOptions) bool { return opts.RefetchOnFocus })
}

// HandleReconnect is the external network signal: it forces a refetch of
// every key with at least one subscriber that opted into
// RefetchOnReconnect.
func (c *Client) HandleReconnect() {
	c.refetchWhere(func(opts SubscriptionOptions) bool { return opts.RefetchOnReconnect })
}

func (c *Client) refetchWhere(match func(SubscriptionOptions) bool) {
	if c.closed.Load() {
		return
	}

	var keys []string
	c.runtimes.Range(func(key string, rt *keyRuntime) bool {
		rt.mu.Lock()
		for _, opts := range rt.subs {
			if match(opts) {
				keys = append(keys, key)
				break
			}
		}
		rt.mu.Unlock()
		return true
	})

	for _, key := range keys {
		c.background.Add(1)
		go func() {
			defer c.background.Done()
			c.refetchKey(key)
		}()
	}
}

// SubscriberCount returns the number of active subscribers for an
// endpoint + argument pair.
func (c *Client) SubscriberCount(name string, arg any) int {
	rt, ok := c.runtimes.Load(c.keys.SerializeKey(name, arg))
	if !ok {
		return 0
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.subs)
}
