package schemas

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is wrapped by ConnectionError when an operation is issued
	// before Connect or after Disconnect.
	ErrNotConnected = errors.New("graph backend is not connected")
	// ErrNotFound matches both NodeNotFoundError and EdgeNotFoundError via errors.Is.
	ErrNotFound = errors.New("not found")
	// ErrUnknownBackend is returned by the factory for unregistered backend keys.
	ErrUnknownBackend = errors.New("unknown graph backend")
	// ErrQueryCanceled matches QueryCanceledError via errors.Is.
	ErrQueryCanceled = errors.New("graph query canceled")
)

// ConnectionError reports an unreachable backend. It is only surfaced after
// the pool layer has exhausted its retries.
type ConnectionError struct {
	Backend BackendType
	Op      string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s graph backend connection error during %s: %v", e.Backend, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NodeNotFoundError reports a missing or soft-deleted node that an operation
// required to exist.
type NodeNotFoundError struct {
	ID string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node with id '%s' not found", e.ID)
}

func (e *NodeNotFoundError) Is(target error) bool { return target == ErrNotFound }

// EdgeNotFoundError reports a missing or soft-deleted edge that an operation
// required to exist.
type EdgeNotFoundError struct {
	ID string
}

func (e *EdgeNotFoundError) Error() string {
	return fmt.Sprintf("edge with id '%s' not found", e.ID)
}

func (e *EdgeNotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError reports malformed input rejected before any backend call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TraversalError reports malformed traversal or path parameters.
type TraversalError struct {
	Param  string
	Reason string
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("invalid traversal parameter %s: %s", e.Param, e.Reason)
}

// QueryCanceledError reports a call aborted by its context deadline or by
// cancellation. No partial results accompany it.
type QueryCanceledError struct {
	Op  string
	Err error
}

func (e *QueryCanceledError) Error() string {
	return fmt.Sprintf("%s canceled: %v", e.Op, e.Err)
}

func (e *QueryCanceledError) Unwrap() error { return e.Err }

func (e *QueryCanceledError) Is(target error) bool { return target == ErrQueryCanceled }
