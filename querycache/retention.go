package querycache

import (
	"time"

	"github.com/goliatone/go-query-cache/internal/cacheinfra"
)

// RetentionConfig exposes the retention-store options for consumers of
// the querycache package.
type RetentionConfig struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
	EvictionInterval   time.Duration
}

// DefaultRetentionConfig returns a RetentionConfig populated with
// sensible defaults.
func DefaultRetentionConfig() RetentionConfig {
	return convertFromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c RetentionConfig) Validate() error {
	return c.toInternal().Validate()
}

// NewRetention constructs the default sturdyc-backed retention store.
func NewRetention(cfg RetentionConfig) (Retention, error) {
	return cacheinfra.NewRetentionStore(cfg.toInternal())
}

func (c RetentionConfig) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

func convertFromInternal(cfg cacheinfra.Config) RetentionConfig {
	return RetentionConfig{
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		TTL:                cfg.TTL,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
	}
}
