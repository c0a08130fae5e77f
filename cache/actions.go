package cache

import "time"

// Action is a lifecycle event issued by the engine into the Store. The
// reducer-style store applies each action to its entry table; the engine
// never writes entries directly.
type Action interface {
	actionKind() string
}

// QueryStarted transitions an entry to pending. Existing Data and
// FulfilledAt are retained so stale results remain visible during the
// refetch.
type QueryStarted struct {
	Key       string
	RequestID string
	Args      any
	At        time.Time
}

// QueryFulfilled records a successful result for an entry. Stores must
// drop the action when RequestID no longer matches the entry's current
// request, so a stale in-flight response cannot clobber a newer one.
type QueryFulfilled struct {
	Key       string
	RequestID string
	Data      any
	Meta      Meta
	At        time.Time
}

// QueryRejected records a domain error for an entry. Data is left
// untouched. Same RequestID supersession rule as QueryFulfilled.
type QueryRejected struct {
	Key       string
	RequestID string
	Err       *Error
	At        time.Time
}

// QuerySeeded pre-populates a fresh entry with warm data recovered from
// the retention store. The entry stays uninitialized so the next
// subscription still triggers a fetch.
type QuerySeeded struct {
	Key         string
	Data        any
	FulfilledAt time.Time
}

// QueryRemoved evicts an entry from the table.
type QueryRemoved struct {
	Key string
}

// QueryPatched replaces an entry's Data in place after a manual patch.
type QueryPatched struct {
	Key  string
	Data any
}

// MutationStarted records a mutation dispatch, keyed by request ID.
type MutationStarted struct {
	RequestID string
	Name      string
	Args      any
	At        time.Time
}

// MutationFulfilled records the result of a mutation dispatch.
type MutationFulfilled struct {
	RequestID string
	Data      any
	Meta      Meta
	At        time.Time
}

// MutationRejected records a mutation's domain error.
type MutationRejected struct {
	RequestID string
	Err       *Error
	At        time.Time
}

// MutationRemoved drops settled mutation state. Mutation entries have no
// subscriber lifecycle, so the engine retires them on a timer instead.
type MutationRemoved struct {
	RequestID string
}

func (QueryStarted) actionKind() string      { return "query/started" }
func (QueryFulfilled) actionKind() string    { return "query/fulfilled" }
func (QueryRejected) actionKind() string     { return "query/rejected" }
func (QuerySeeded) actionKind() string       { return "query/seeded" }
func (QueryRemoved) actionKind() string      { return "query/removed" }
func (QueryPatched) actionKind() string      { return "query/patched" }
func (MutationStarted) actionKind() string   { return "mutation/started" }
func (MutationFulfilled) actionKind() string { return "mutation/fulfilled" }
func (MutationRejected) actionKind() string  { return "mutation/rejected" }
func (MutationRemoved) actionKind() string   { return "mutation/removed" }
