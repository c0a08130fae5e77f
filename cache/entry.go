package cache

import "time"

// Status describes the lifecycle state of a cache entry.
type Status string

const (
	// StatusUninitialized marks an entry that exists but has never run.
	StatusUninitialized Status = "uninitialized"

	// StatusPending marks an entry with an in-flight execution.
	StatusPending Status = "pending"

	// StatusFulfilled marks an entry whose latest execution succeeded.
	StatusFulfilled Status = "fulfilled"

	// StatusRejected marks an entry whose latest execution failed with a
	// domain error. Data from an earlier fulfillment is retained.
	StatusRejected Status = "rejected"
)

// Entry is the cached state for one (endpoint, argument) pair, or for one
// mutation dispatch keyed by request ID.
//
// Data always holds the last good result: it survives later pending and
// rejected transitions so consumers can render stale data while a refetch
// is in flight (cache-then-refetch).
type Entry struct {
	Status       Status
	Data         any
	Error        *Error
	Meta         Meta
	RequestID    string
	OriginalArgs any
	StartedAt    time.Time
	FulfilledAt  time.Time
}

// HasFulfilled reports whether the entry has ever held a successful result.
func (e Entry) HasFulfilled() bool {
	return !e.FulfilledAt.IsZero()
}

// Age returns how long ago the entry last fulfilled, relative to now.
// Returns a negative duration when the entry never fulfilled.
func (e Entry) Age(now time.Time) time.Duration {
	if !e.HasFulfilled() {
		return -1
	}
	return now.Sub(e.FulfilledAt)
}

// Unwrap returns the entry's data, or its domain error when the entry is
// rejected. Callers that want raw success values use this instead of
// inspecting Status themselves.
func (e Entry) Unwrap() (any, error) {
	if e.Status == StatusRejected && e.Error != nil {
		return nil, e.Error
	}
	return e.Data, nil
}
