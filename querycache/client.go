package querycache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/endpoint"
	"github.com/goliatone/go-query-cache/internal/statestore"
)

// DefaultKeepUnusedFor is the grace period between the last subscriber of
// a key leaving and its entry being evicted.
const DefaultKeepUnusedFor = 60 * time.Second

// Retention is warm storage for the data of evicted entries. A
// re-subscribe inside the retention window gets the stale data seeded
// back onto the fresh entry while the fetch runs. Optional collaborator.
type Retention interface {
	Put(key string, data any, fulfilledAt time.Time)
	Take(key string) (data any, fulfilledAt time.Time, ok bool)
}

// Client is the query-cache engine. It executes declaratively described
// endpoints against an abstract transport, deduplicates in-flight calls
// per cache key, indexes fulfilled results by entity tag, refetches
// dependent queries when mutations invalidate those tags, and tracks
// subscriber counts to decide when entries are polled or evicted.
type Client struct {
	registry  *endpoint.Registry
	transport cache.Transport
	store     cache.Store
	keys      cache.KeySerializer
	retention Retention
	applier   Applier
	differ    Differ
	log       *zap.Logger

	keepUnusedFor time.Duration
	now           func() time.Time

	runtimes *xsync.MapOf[string, *keyRuntime]
	tags     *tagIndex

	mutMu     sync.Mutex
	mutTimers map[string]*time.Timer

	focused atomic.Bool
	closed  atomic.Bool
	subSeq  atomic.Uint64

	// background tracks invalidation-triggered refetch goroutines so
	// Close can drain them.
	background sync.WaitGroup
}

// keyRuntime is the per-cache-key mutable state the engine owns outside
// the store: the lock that linearizes run-condition checks, the in-flight
// handle duplicate callers join, the subscriber table, and the timers.
type keyRuntime struct {
	mu sync.Mutex

	key      string
	endpoint string
	args     any

	inflight *inflight
	subs     map[uint64]SubscriptionOptions
	poll     *poller
	evict    *time.Timer

	// dead marks a runtime the eviction callback already unlinked from
	// the table. Callers that loaded it before the unlink must reload
	// instead of registering state on it.
	dead bool
}

// inflight represents one execution in progress for a key. Duplicate
// dispatches wait on done and then read the settled entry.
type inflight struct {
	requestID string
	done      chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithStore replaces the default in-memory reducer store.
func WithStore(store cache.Store) Option {
	return func(c *Client) { c.store = store }
}

// WithKeySerializer replaces the default reflection-based key serializer.
// Use this when endpoint arguments are not plain data.
func WithKeySerializer(keys cache.KeySerializer) Option {
	return func(c *Client) { c.keys = keys }
}

// WithRetention installs warm storage for evicted entry data.
func WithRetention(r Retention) Option {
	return func(c *Client) { c.retention = r }
}

// WithLogger installs a zap logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithKeepUnusedFor sets the eviction grace period after the last
// subscriber of a key unsubscribes. The same window bounds how long
// settled mutation state stays readable through MutationState.
func WithKeepUnusedFor(d time.Duration) Option {
	return func(c *Client) { c.keepUnusedFor = d }
}

// WithApplier replaces the default JSON-path patch applier.
func WithApplier(a Applier) Option {
	return func(c *Client) { c.applier = a }
}

// WithDiffer replaces the default whole-value differ used by
// UpdateQueryResult.
func WithDiffer(d Differ) Option {
	return func(c *Client) { c.differ = d }
}

// withClock overrides the time source. Test hook.
func withClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a query-cache client for the given endpoint registry and
// transport.
func New(registry *endpoint.Registry, transport cache.Transport, opts ...Option) (*Client, error) {
	if registry == nil {
		return nil, &ConfigError{Field: "registry", Message: "cannot be nil"}
	}
	if transport == nil {
		return nil, &ConfigError{Field: "transport", Message: "cannot be nil"}
	}

	c := &Client{
		registry:      registry,
		transport:     transport,
		store:         statestore.New(),
		keys:          cache.NewDefaultKeySerializer(),
		applier:       NewJSONApplier(),
		differ:        NewReplaceDiffer(),
		log:           zap.NewNop(),
		keepUnusedFor: DefaultKeepUnusedFor,
		now:           time.Now,
		runtimes:      xsync.NewMapOf[string, *keyRuntime](),
		tags:          newTagIndex(),
		mutTimers:     make(map[string]*time.Timer),
	}
	c.focused.Store(true)

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ConfigError represents a client configuration error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// runtime returns the keyRuntime for key, creating it on first use.
func (c *Client) runtime(key, endpointName string, args any) *keyRuntime {
	rt, _ := c.runtimes.LoadOrCompute(key, func() *keyRuntime {
		return &keyRuntime{
			key:      key,
			endpoint: endpointName,
			args:     args,
			subs:     make(map[uint64]SubscriptionOptions),
		}
	})
	return rt
}

// lockRuntime returns the live runtime for key with its lock held. The
// load and the lock are not atomic: a grace-timer eviction can unlink
// the runtime between them, and state registered on that orphan would be
// invisible to the rest of the engine. Retry until both land on the same
// live runtime.
func (c *Client) lockRuntime(key, endpointName string, args any) *keyRuntime {
	for {
		rt := c.runtime(key, endpointName, args)
		rt.mu.Lock()
		if !rt.dead {
			return rt
		}
		rt.mu.Unlock()
	}
}

// QueryState returns a copy of the cached entry for an endpoint+argument
// pair. Read-only projection; callers never mutate cache state directly.
func (c *Client) QueryState(name string, arg any) (cache.Entry, bool) {
	return c.store.Entry(c.keys.SerializeKey(name, arg))
}

// MutationState returns a copy of the mutation entry for a request ID.
// Settled mutation entries are retired after the keepUnusedFor window.
func (c *Client) MutationState(requestID string) (cache.Entry, bool) {
	return c.store.Mutation(requestID)
}

// Snapshot returns a copy of the full query entry table.
func (c *Client) Snapshot() map[string]cache.Entry {
	return c.store.Snapshot()
}

// SetFocused records whether the host application is foregrounded.
// Polling ticks are suppressed while unfocused. This is an external
// signal; the engine never computes it.
func (c *Client) SetFocused(focused bool) {
	c.focused.Store(focused)
}

// Close stops pollers and eviction timers and drains background
// refetches. The client must not be used afterwards.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return cache.ErrClientClosed
	}

	c.runtimes.Range(func(_ string, rt *keyRuntime) bool {
		rt.mu.Lock()
		if rt.poll != nil {
			rt.poll.stopOnce()
			rt.poll = nil
		}
		if rt.evict != nil {
			rt.evict.Stop()
			rt.evict = nil
		}
		rt.mu.Unlock()
		return true
	})

	c.mutMu.Lock()
	for id, timer := range c.mutTimers {
		timer.Stop()
		delete(c.mutTimers, id)
	}
	c.mutMu.Unlock()

	c.background.Wait()
	return nil
}
