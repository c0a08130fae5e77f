// Package cache provides the shared contracts of the query-cache engine:
// key serialization, the cache entry data model, the action vocabulary the
// engine dispatches into its state store, entity tags, and the error
// taxonomy.
//
// # Overview
//
// This package exports the interfaces the engine and its collaborators
// agree on:
//
//   - KeySerializer: builds stable cache keys from endpoint names and arguments
//   - Store: the reducer-style state container holding the entry table
//   - Transport: the abstract async request executor
//   - Entry / Status: the cached state for one (endpoint, argument) pair
//   - Tag: a (type, optional id) pair used for invalidation targeting
//   - Error: the structured domain-error payload
//
// # Key Serialization Strategy
//
// The default key serializer uses reflection to handle various Go types:
//
//   - Basic types: direct string representation
//   - Slices/arrays: recursive serialization of elements
//   - Maps: sorted key-value pairs for deterministic output
//   - Structs: exported fields as name:value pairs
//   - Function pointers: %p formatting, stable within a process
//   - Complex types: JSON fallback with error handling
//
// Keys longer than MaxKeyLength are digested with xxhash; the endpoint
// name always survives as a readable prefix, which also guarantees keys
// from different endpoints never collide.
//
// # Custom Key Serializers
//
// Argument types that are not plain data (cursors, live handles) may need
// a custom KeySerializer. Implement the interface and install it through
// the client options:
//
//	type requestKeyer struct{}
//
//	func (requestKeyer) SerializeKey(endpoint string, args ...any) string {
//		// application-specific, stable serialization
//	}
//
// # Error Taxonomy
//
// Three failure classes flow through the engine:
//
//   - *Error (domain error): reported by the transport via Result.Err,
//     stored on the entry, surfaced only through Entry.Unwrap
//   - validation warnings: unregistered tag types, logged and ignored
//   - unexpected failures: Go errors returned by the transport or raised
//     while building/transforming, which reject the entry without a
//     structured payload and propagate to the caller
//
// # See Also
//
// For the engine itself, see the querycache package. For endpoint
// definitions and registration, see the endpoint package.
package cache
