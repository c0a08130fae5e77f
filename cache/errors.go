package cache

import (
	"errors"
	"fmt"
)

// Sentinel errors for engine operations.
var (
	// ErrUnknownEndpoint is returned when a name does not resolve to a
	// registered endpoint definition.
	ErrUnknownEndpoint = errors.New("querycache: unknown endpoint")

	// ErrWrongKind is returned when a query is dispatched as a mutation
	// or vice versa.
	ErrWrongKind = errors.New("querycache: endpoint kind mismatch")

	// ErrClientClosed is returned when an operation is attempted on a
	// closed client.
	ErrClientClosed = errors.New("querycache: client is closed")
)

// Error is the structured domain-error payload a transport reports for a
// failed request. It lives in the cache entry's Error field and is only
// surfaced to callers that explicitly unwrap the entry.
type Error struct {
	// Code is a transport-defined classification, such as an HTTP status
	// or a short machine-readable string.
	Code string

	// Message is a human-readable description.
	Message string

	// Data carries the structured error body, if any.
	Data any

	// Meta carries transport metadata captured at failure time.
	Meta Meta
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("querycache: request failed (%s): %s", e.Code, e.Message)
	}
	return "querycache: request failed: " + e.Message
}

// NewError builds a domain error with a code and message.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}
