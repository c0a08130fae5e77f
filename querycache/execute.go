package querycache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/endpoint"
)

// QueryOptions control one query dispatch.
type QueryOptions struct {
	// Force bypasses the fulfilled-entry skip condition. A pending entry
	// still wins: there is never more than one in-flight execution per
	// key.
	Force bool

	// StaleAfter refetches a fulfilled entry older than this threshold.
	// Zero disables time-based staleness.
	StaleAfter time.Duration
}

// RunQuery executes a query endpoint for the given argument, subject to
// the run condition:
//
//   - a pending entry joins the in-flight execution instead of starting a
//     second one;
//   - a fulfilled entry is returned as-is unless Force is set or the
//     StaleAfter threshold is met;
//   - otherwise a new execution starts.
//
// The run-condition check and the pending-state write happen atomically
// under the key's lock, so concurrent dispatches of the same query and
// argument produce exactly one transport call.
//
// Domain errors reported by the transport are recorded on the entry and
// do not surface as a Go error; unexpected failures do.
func (c *Client) RunQuery(ctx context.Context, name string, arg any, opts QueryOptions) (cache.Entry, error) {
	if c.closed.Load() {
		return cache.Entry{}, cache.ErrClientClosed
	}

	def, ok := c.registry.Lookup(name)
	if !ok {
		return cache.Entry{}, fmt.Errorf("%w: %q", cache.ErrUnknownEndpoint, name)
	}
	if def.Kind != endpoint.KindQuery {
		return cache.Entry{}, fmt.Errorf("%w: %q is not a query", cache.ErrWrongKind, name)
	}

	key := c.keys.SerializeKey(name, arg)
	rt := c.lockRuntime(key, name, arg)
	entry, exists := c.store.Entry(key)

	if exists && entry.Status == cache.StatusPending {
		fl := rt.inflight
		rt.mu.Unlock()
		if fl == nil {
			return entry, nil
		}
		return c.await(ctx, key, fl)
	}

	if exists && entry.Status == cache.StatusFulfilled && !opts.Force && !staleAfter(entry, opts.StaleAfter, c.now()) {
		rt.mu.Unlock()
		return entry, nil
	}

	fl := &inflight{requestID: uuid.NewString(), done: make(chan struct{})}
	rt.inflight = fl
	c.store.Dispatch(cache.QueryStarted{
		Key:       key,
		RequestID: fl.requestID,
		Args:      arg,
		At:        c.now(),
	})
	rt.mu.Unlock()

	return c.executeQuery(ctx, def, rt, fl, arg)
}

// staleAfter reports whether a fulfilled entry has crossed the given
// staleness threshold. A zero threshold means staleness is disabled.
func staleAfter(entry cache.Entry, threshold time.Duration, now time.Time) bool {
	if threshold <= 0 {
		return false
	}
	return now.Sub(entry.FulfilledAt) >= threshold
}

// await blocks until an in-flight execution settles, then returns the
// resulting entry.
func (c *Client) await(ctx context.Context, key string, fl *inflight) (cache.Entry, error) {
	select {
	case <-fl.done:
		entry, _ := c.store.Entry(key)
		return entry, nil
	case <-ctx.Done():
		return cache.Entry{}, ctx.Err()
	}
}

// executeQuery runs the transport pipeline for one query execution and
// settles the entry.
func (c *Client) executeQuery(ctx context.Context, def endpoint.Definition, rt *keyRuntime, fl *inflight, arg any) (cache.Entry, error) {
	hc := &endpoint.HookContext{
		Name:      def.Name,
		RequestID: fl.requestID,
		Arg:       arg,
		Values:    make(map[string]any),
	}
	if def.Hooks.OnStart != nil {
		def.Hooks.OnStart(hc)
	}

	res, execErr := c.callTransport(ctx, def, arg)
	if execErr == nil && res.Err == nil && def.Transform != nil {
		res.Data, execErr = def.Transform(res.Data, res.Meta, arg)
	}

	now := c.now()
	switch {
	case execErr != nil:
		// Unexpected failure: the entry is rejected without a structured
		// payload and the error propagates to the caller.
		c.settle(rt, fl, cache.QueryRejected{Key: rt.key, RequestID: fl.requestID, At: now})
		entry, _ := c.store.Entry(rt.key)
		return entry, execErr

	case res.Err != nil:
		res.Err.Meta = mergeMeta(res.Err.Meta, res.Meta)
		c.settle(rt, fl, cache.QueryRejected{Key: rt.key, RequestID: fl.requestID, Err: res.Err, At: now})
		if def.Hooks.OnError != nil {
			def.Hooks.OnError(hc, res.Err)
		}
		entry, _ := c.store.Entry(rt.key)
		return entry, nil

	default:
		c.settleFulfilled(ctx, def, rt, fl, res.Data, res.Meta, arg, now)
		if def.Hooks.OnSuccess != nil {
			def.Hooks.OnSuccess(hc, res.Data, res.Meta)
		}
		entry, _ := c.store.Entry(rt.key)
		return entry, nil
	}
}

// callTransport dispatches through the endpoint's custom executor when
// present, otherwise builds the request and invokes the transport.
func (c *Client) callTransport(ctx context.Context, def endpoint.Definition, arg any) (cache.Result, error) {
	if def.Execute != nil {
		return def.Execute(ctx, arg, endpoint.TransportFunc(c.transport))
	}

	req, err := def.BuildRequest(arg)
	if err != nil {
		return cache.Result{}, fmt.Errorf("build request for %q: %w", def.Name, err)
	}
	return c.transport(ctx, req)
}

// settle clears the in-flight handle, dispatches the terminal action and
// wakes duplicate callers. The store's reducer drops the action if a
// newer request superseded this one.
func (c *Client) settle(rt *keyRuntime, fl *inflight, action cache.Action) {
	rt.mu.Lock()
	if rt.inflight == fl {
		rt.inflight = nil
	}
	c.store.Dispatch(action)
	rt.mu.Unlock()
	close(fl.done)
}

// settleFulfilled records a successful result and rebuilds the key's
// provided-tag index in the same critical section, so no dispatch can
// observe the fulfilled entry without its tags. The rebuild is skipped
// when the reducer dropped the action because a newer request superseded
// this one; the previous provided set must keep standing for invalidation
// targeting until a fulfillment actually replaces it.
func (c *Client) settleFulfilled(ctx context.Context, def endpoint.Definition, rt *keyRuntime, fl *inflight, data any, meta cache.Meta, arg any, now time.Time) {
	tags := c.resolveTags(def.Provides, data, nil, arg)
	if extra := providedTagsFromContext(ctx); len(extra) > 0 {
		tags = dedupeTags(append(tags, extra...))
	}

	rt.mu.Lock()
	if rt.inflight == fl {
		rt.inflight = nil
	}
	c.store.Dispatch(cache.QueryFulfilled{Key: rt.key, RequestID: fl.requestID, Data: data, Meta: meta, At: now})
	if entry, ok := c.store.Entry(rt.key); ok && entry.RequestID == fl.requestID && entry.Status == cache.StatusFulfilled {
		c.tags.replace(rt.key, tags)
	}
	rt.mu.Unlock()
	close(fl.done)
}

// RunMutation executes a mutation endpoint. Mutations have no run
// condition: every dispatch runs exactly once. Fulfillment and rejection
// both trigger tag invalidation, since a failed mutation may still need
// to invalidate optimistically patched state.
func (c *Client) RunMutation(ctx context.Context, name string, arg any) (cache.Entry, error) {
	if c.closed.Load() {
		return cache.Entry{}, cache.ErrClientClosed
	}

	def, ok := c.registry.Lookup(name)
	if !ok {
		return cache.Entry{}, fmt.Errorf("%w: %q", cache.ErrUnknownEndpoint, name)
	}
	if def.Kind != endpoint.KindMutation {
		return cache.Entry{}, fmt.Errorf("%w: %q is not a mutation", cache.ErrWrongKind, name)
	}

	requestID := uuid.NewString()
	c.store.Dispatch(cache.MutationStarted{RequestID: requestID, Name: name, Args: arg, At: c.now()})
	defer c.scheduleMutationCleanup(requestID)

	hc := &endpoint.HookContext{
		Name:      name,
		RequestID: requestID,
		Arg:       arg,
		Values:    make(map[string]any),
	}
	if def.Hooks.OnStart != nil {
		def.Hooks.OnStart(hc)
	}

	res, execErr := c.callTransport(ctx, def, arg)
	if execErr == nil && res.Err == nil && def.Transform != nil {
		res.Data, execErr = def.Transform(res.Data, res.Meta, arg)
	}

	now := c.now()
	switch {
	case execErr != nil:
		c.store.Dispatch(cache.MutationRejected{RequestID: requestID, At: now})
		c.invalidateFor(def, nil, nil, arg)
		entry, _ := c.store.Mutation(requestID)
		return entry, execErr

	case res.Err != nil:
		res.Err.Meta = mergeMeta(res.Err.Meta, res.Meta)
		c.store.Dispatch(cache.MutationRejected{RequestID: requestID, Err: res.Err, At: now})
		if def.Hooks.OnError != nil {
			def.Hooks.OnError(hc, res.Err)
		}
		c.invalidateFor(def, nil, res.Err, arg)
		entry, _ := c.store.Mutation(requestID)
		return entry, nil

	default:
		c.store.Dispatch(cache.MutationFulfilled{RequestID: requestID, Data: res.Data, Meta: res.Meta, At: now})
		if def.Hooks.OnSuccess != nil {
			def.Hooks.OnSuccess(hc, res.Data, res.Meta)
		}
		c.invalidateFor(def, res.Data, nil, arg)
		entry, _ := c.store.Mutation(requestID)
		return entry, nil
	}
}

// invalidateFor resolves a mutation's invalidated tags and schedules the
// refetch fan-out.
func (c *Client) invalidateFor(def endpoint.Definition, result any, qerr *cache.Error, arg any) {
	tags := c.resolveTags(def.Invalidates, result, qerr, arg)
	if len(tags) == 0 {
		return
	}
	c.invalidate(tags)
}

// scheduleMutationCleanup retires a mutation's entry from the store once
// the retention window after its dispatch settles has passed. Mutation
// entries are keyed by a fresh request ID each time and have no
// subscriber lifecycle, so without a timer the table would grow by one
// entry per dispatch for the client's lifetime.
func (c *Client) scheduleMutationCleanup(requestID string) {
	c.mutMu.Lock()
	defer c.mutMu.Unlock()
	c.mutTimers[requestID] = time.AfterFunc(c.keepUnusedFor, func() {
		c.store.Dispatch(cache.MutationRemoved{RequestID: requestID})
		c.mutMu.Lock()
		delete(c.mutTimers, requestID)
		c.mutMu.Unlock()
	})
}

func mergeMeta(dst, src cache.Meta) cache.Meta {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(cache.Meta, len(src))
	}
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
	return dst
}

// logRefetchError reports a failed internally-triggered refetch.
func (c *Client) logRefetchError(key string, err error) {
	c.log.Warn("refetch failed", zap.String("key", key), zap.Error(err))
}
