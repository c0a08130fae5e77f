// Package cacheinfra adapts the sturdyc cache into the engine's retention
// store: TTL-bounded warm storage for the data of entries evicted after
// their last subscriber left. A re-subscribe inside the retention window
// gets its stale data seeded back instantly while the fresh fetch runs.
package cacheinfra

import (
	"time"

	"github.com/viccon/sturdyc"
)

// Config holds the configuration for the sturdyc-backed retention store.
type Config struct {
	// Capacity defines the maximum number of retained entries.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent
	// access. Higher values improve concurrency but increase memory
	// overhead. Must be greater than 0. Default: 64
	NumShards int

	// TTL is how long evicted entry data stays warm before the store
	// forgets it. Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the store reaches capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often the store checks for expired
	// entries. Zero value uses the sturdyc default.
	EvictionInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          64,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	return nil
}

func (c Config) options() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// retained is the payload kept for an evicted entry: its last good data
// and when that data was fulfilled, so staleness policies keep working
// after a revival.
type retained struct {
	Data        any
	FulfilledAt time.Time
}

// RetentionStore keeps the last good data of evicted cache entries for a
// bounded time.
type RetentionStore struct {
	client *sturdyc.Client[retained]
}

// NewRetentionStore validates the configuration and builds a sturdyc
// backed retention store.
func NewRetentionStore(cfg Config) (*RetentionStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[retained](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.options()...,
	)

	return &RetentionStore{client: client}, nil
}

// Put retains the data of an evicted entry under its cache key.
func (s *RetentionStore) Put(key string, data any, fulfilledAt time.Time) {
	s.client.Set(key, retained{Data: data, FulfilledAt: fulfilledAt})
}

// Take retrieves and removes retained data for a key. The last return is
// false when nothing is retained or the retention TTL has passed.
func (s *RetentionStore) Take(key string) (any, time.Time, bool) {
	r, ok := s.client.Get(key)
	if !ok {
		return nil, time.Time{}, false
	}
	s.client.Delete(key)
	return r.Data, r.FulfilledAt, true
}

// Size returns the number of retained entries.
func (s *RetentionStore) Size() int {
	return s.client.Size()
}
