package cache

import "context"

// KeySerializer builds a cache key from an endpoint name + arbitrary args.
// It is responsible for producing stable keys across calls: structurally
// equal arguments must map to the same key, and different endpoint names
// must never collide.
type KeySerializer interface {
	SerializeKey(endpoint string, args ...any) string
}

// Meta carries transport-level metadata alongside a result, such as
// response headers or timing information. The engine stores it opaquely.
type Meta map[string]any

// Result is what a Transport reports back for a single request.
//
// Err being non-nil is the domain-error path: the failure is recorded in
// the cache entry and surfaced through snapshot inspection, never as a Go
// error from the run call. A Go error returned by the Transport itself is
// the unexpected-failure path and aborts the entry into a rejected state
// without a structured payload.
type Result struct {
	Data any
	Err  *Error
	Meta Meta
}

// Transport is the abstract request executor the engine runs queries and
// mutations against. The context carries cooperative cancellation; the
// engine never force-terminates a call. Timeouts are the transport's
// concern, not the engine's.
type Transport func(ctx context.Context, req any) (Result, error)

// Store is the state container collaborator. The engine issues lifecycle
// actions into it and reads entries back through the accessors; it never
// mutates entries directly. Implementations must linearize Dispatch calls.
type Store interface {
	Dispatch(a Action)

	// Entry returns a copy of the entry for key, if present.
	Entry(key string) (Entry, bool)

	// Mutation returns a copy of the mutation entry for a request ID.
	Mutation(requestID string) (Entry, bool)

	// Snapshot returns a copy of the full query-entry table. Intended for
	// introspection and tests, not hot paths.
	Snapshot() map[string]Entry
}
