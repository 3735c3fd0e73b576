package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Repository.FindByID when a stream has no events.
var ErrNotFound = errors.New("aggregate not found")

// ErrorKind classifies failures surfaced to callers.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindInvalidInputs
	KindNotFound
	KindInfrastructure
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInputs:
		return "invalid inputs"
	case KindNotFound:
		return "not found"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return "internal"
	}
}

// Error is a classified failure returned by command handlers.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return e.Kind.String() + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func InvalidInputs(err error) error { return &Error{Kind: KindInvalidInputs, Err: err} }

func NotFound(err error) error { return &Error{Kind: KindNotFound, Err: err} }

func Internal(err error) error { return &Error{Kind: KindInternal, Err: err} }

func Infrastructure(err error) error { return &Error{Kind: KindInfrastructure, Err: err} }

// KindOf classifies err. Store failures are infrastructure, a missing
// aggregate is not found, and anything unclassified is internal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	var se *EventStoreError
	if errors.As(err, &se) {
		return KindInfrastructure
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return KindInternal
}

// StoreErrorKind classifies event store failures.
type StoreErrorKind int

const (
	StoreConnection StoreErrorKind = iota
	StoreInvalidEvent
	StoreAppend
	StoreList
)

func (k StoreErrorKind) String() string {
	switch k {
	case StoreConnection:
		return "connection"
	case StoreInvalidEvent:
		return "invalid event"
	case StoreAppend:
		return "append"
	default:
		return "list"
	}
}

// EventStoreError is returned by every EventStore implementation.
type EventStoreError struct {
	Kind StoreErrorKind
	Err  error
}

func (e *EventStoreError) Error() string {
	return fmt.Sprintf("event store %s: %v", e.Kind, e.Err)
}

func (e *EventStoreError) Unwrap() error { return e.Err }

func NewStoreError(kind StoreErrorKind, err error) error {
	return &EventStoreError{Kind: kind, Err: err}
}
