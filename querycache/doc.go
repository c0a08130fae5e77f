// Package querycache implements the query-cache engine: it executes
// declaratively described endpoints against an abstract transport,
// deduplicates in-flight calls per cache key, indexes fulfilled results
// by entity tag, refetches dependent queries when mutations invalidate
// those tags, and tracks subscriber counts to decide when entries are
// fetched, reused, polled, or evicted.
//
// # Basic Usage
//
//	reg := endpoint.NewRegistry("User")
//	reg.MustRegister(
//		endpoint.Query("getUser", buildUserRequest).
//			WithProvides(endpoint.Tags("User")),
//		endpoint.Mutation("updateUser", buildUpdateRequest).
//			WithInvalidates(endpoint.Tags("User")),
//	)
//
//	client, err := querycache.New(reg, transport)
//	// ...
//	entry, err := client.RunQuery(ctx, "getUser", 1, querycache.QueryOptions{})
//	user, err := entry.Unwrap()
//
// Dispatching "updateUser" afterwards invalidates the "User" tag, which
// forces an automatic refetch of every cached query that provided it.
//
// # Run Condition
//
// RunQuery skips the network when the entry is already pending (the call
// joins the in-flight execution) or when a fulfilled entry exists and
// neither Force nor a met StaleAfter threshold demands a refetch. The
// check and the pending-state write happen atomically per key, so the
// engine guarantees at most one in-flight execution per cache key.
//
// # Subscriptions
//
// Subscribe adds a ref-counted consumer to a key, triggering the run
// condition and merging the subscriber's polling interval and
// focus/reconnect preferences with the key's other subscribers. When the
// last subscriber leaves, the entry survives a grace period before
// eviction; with a Retention store installed, its last good data stays
// warm beyond that and is seeded back on the next subscribe.
//
// # Collaborators
//
// The engine owns no storage or transport of its own: requests run
// through a cache.Transport, state lives behind cache.Store, structural
// diffing for optimistic updates goes through the Differ interface, and
// focus/reconnect/background signals arrive via HandleFocus,
// HandleReconnect and SetFocused.
package querycache
