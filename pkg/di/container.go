// Package di provides dependency injection for the query-cache
// components: it manages singleton instances of the state store, key
// serializer and retention store, and provides a factory for wiring them
// into clients.
package di

import (
	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/endpoint"
	"github.com/goliatone/go-query-cache/internal/statestore"
	"github.com/goliatone/go-query-cache/querycache"
)

// Container provides dependency injection for query-cache components.
type Container struct {
	registry      *endpoint.Registry
	store         cache.Store
	keySerializer cache.KeySerializer
	retention     querycache.Retention
	config        querycache.RetentionConfig
}

// NewContainer creates a new DI container around an endpoint registry,
// using the provided retention configuration. It initializes the default
// reducer store, the default key serializer and the sturdyc-backed
// retention store.
func NewContainer(registry *endpoint.Registry, cfg querycache.RetentionConfig) (*Container, error) {
	retention, err := querycache.NewRetention(cfg)
	if err != nil {
		return nil, err
	}

	return &Container{
		registry:      registry,
		store:         statestore.New(),
		keySerializer: cache.NewDefaultKeySerializer(),
		retention:     retention,
		config:        cfg,
	}, nil
}

// NewContainerWithDefaults creates a new DI container using the default
// retention configuration. This is a convenience constructor for typical
// use cases where custom configuration is not required.
func NewContainerWithDefaults(registry *endpoint.Registry) (*Container, error) {
	return NewContainer(registry, querycache.DefaultRetentionConfig())
}

// Registry returns the endpoint registry the container wraps.
func (c *Container) Registry() *endpoint.Registry {
	return c.registry
}

// Store returns the singleton state store instance.
func (c *Container) Store() cache.Store {
	return c.store
}

// KeySerializer returns the singleton key serializer instance.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Retention returns the singleton retention store instance.
func (c *Container) Retention() querycache.Retention {
	return c.retention
}

// Config returns a copy of the retention configuration used by this
// container.
func (c *Container) Config() querycache.RetentionConfig {
	return c.config
}

// NewClient wires the container's singletons and the given transport into
// a query-cache client. Additional options are applied after the
// container's own, so callers can still override them.
func (c *Container) NewClient(transport cache.Transport, opts ...querycache.Option) (*querycache.Client, error) {
	base := []querycache.Option{
		querycache.WithStore(c.store),
		querycache.WithKeySerializer(c.keySerializer),
		querycache.WithRetention(c.retention),
	}
	return querycache.New(c.registry, transport, append(base, opts...)...)
}
