// Package statestore implements the default reducer-style state container
// behind the cache.Store interface. All writes arrive as actions through
// Dispatch and are applied under a single mutex; reads hand back copies so
// callers can never mutate cached state in place.
package statestore

import (
	"sync"

	"github.com/goliatone/go-query-cache/cache"
)

// Store is the default in-memory cache.Store implementation.
type Store struct {
	mu        sync.RWMutex
	queries   map[string]cache.Entry
	mutations map[string]cache.Entry
}

// New creates an empty store.
func New() *Store {
	return &Store{
		queries:   make(map[string]cache.Entry),
		mutations: make(map[string]cache.Entry),
	}
}

// Dispatch applies one action to the entry tables. Unknown action types
// are ignored.
func (s *Store) Dispatch(a cache.Action) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch act := a.(type) {
	case cache.QueryStarted:
		s.applyQueryStarted(act)
	case cache.QueryFulfilled:
		s.applyQueryFulfilled(act)
	case cache.QueryRejected:
		s.applyQueryRejected(act)
	case cache.QuerySeeded:
		s.applyQuerySeeded(act)
	case cache.QueryRemoved:
		delete(s.queries, act.Key)
	case cache.QueryPatched:
		s.applyQueryPatched(act)
	case cache.MutationStarted:
		s.mutations[act.RequestID] = cache.Entry{
			Status:       cache.StatusPending,
			RequestID:    act.RequestID,
			OriginalArgs: act.Args,
			StartedAt:    act.At,
		}
	case cache.MutationFulfilled:
		if entry, ok := s.mutations[act.RequestID]; ok {
			entry.Status = cache.StatusFulfilled
			entry.Data = act.Data
			entry.Meta = act.Meta
			entry.Error = nil
			entry.FulfilledAt = act.At
			s.mutations[act.RequestID] = entry
		}
	case cache.MutationRejected:
		if entry, ok := s.mutations[act.RequestID]; ok {
			entry.Status = cache.StatusRejected
			entry.Error = act.Err
			s.mutations[act.RequestID] = entry
		}
	case cache.MutationRemoved:
		delete(s.mutations, act.RequestID)
	}
}

func (s *Store) applyQueryStarted(act cache.QueryStarted) {
	entry := s.queries[act.Key]
	entry.Status = cache.StatusPending
	entry.RequestID = act.RequestID
	entry.OriginalArgs = act.Args
	entry.StartedAt = act.At
	// Data, Error and FulfilledAt are intentionally retained: stale
	// results stay visible while the refetch is in flight.
	s.queries[act.Key] = entry
}

func (s *Store) applyQueryFulfilled(act cache.QueryFulfilled) {
	entry, ok := s.queries[act.Key]
	if !ok || entry.RequestID != act.RequestID {
		// A newer request superseded this one; drop the stale result.
		return
	}
	entry.Status = cache.StatusFulfilled
	entry.Data = act.Data
	entry.Meta = act.Meta
	entry.Error = nil
	entry.FulfilledAt = act.At
	s.queries[act.Key] = entry
}

func (s *Store) applyQueryRejected(act cache.QueryRejected) {
	entry, ok := s.queries[act.Key]
	if !ok || entry.RequestID != act.RequestID {
		return
	}
	entry.Status = cache.StatusRejected
	entry.Error = act.Err
	// Data and FulfilledAt are retained (stale-data-on-error).
	s.queries[act.Key] = entry
}

func (s *Store) applyQuerySeeded(act cache.QuerySeeded) {
	if _, exists := s.queries[act.Key]; exists {
		return
	}
	s.queries[act.Key] = cache.Entry{
		Status:      cache.StatusUninitialized,
		Data:        act.Data,
		FulfilledAt: act.FulfilledAt,
	}
}

func (s *Store) applyQueryPatched(act cache.QueryPatched) {
	entry, ok := s.queries[act.Key]
	if !ok {
		return
	}
	entry.Data = act.Data
	s.queries[act.Key] = entry
}

// Entry returns a copy of the query entry for key.
func (s *Store) Entry(key string) (cache.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.queries[key]
	return entry, ok
}

// Mutation returns a copy of the mutation entry for a request ID.
func (s *Store) Mutation(requestID string) (cache.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.mutations[requestID]
	return entry, ok
}

// Snapshot returns a copy of the query entry table.
func (s *Store) Snapshot() map[string]cache.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]cache.Entry, len(s.queries))
	for k, v := range s.queries {
		out[k] = v
	}
	return out
}
