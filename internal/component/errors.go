package component

import (
	"errors"
	"fmt"
)

// ErrorKind classifies instance failures. Every failure path converges on
// Instance.Error, which tags the error with its kind for callers and
// metrics.
type ErrorKind string

const (
	// KindValidation covers bad or missing props.
	KindValidation ErrorKind = "validation"
	// KindResolution covers URL, domain, or bridge resolution failures.
	KindResolution ErrorKind = "resolution"
	// KindEnvironment covers missing target elements and illegal remote
	// render targets.
	KindEnvironment ErrorKind = "environment"
	// KindTimeout covers the remote side missing its init deadline.
	KindTimeout ErrorKind = "timeout"
	// KindRemote covers failures the remote side reports through its
	// exported error method.
	KindRemote ErrorKind = "remote"
	// KindDelegation covers failed delegation handshakes.
	KindDelegation ErrorKind = "delegation"
	// KindInternal is everything else.
	KindInternal ErrorKind = "internal"
)

// Error is a classified instance failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func wrapError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the classification from an error chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// SecondaryError reports a failure that happened while handling another
// failure, for example an error callback that itself failed. Both errors
// are always surfaced together; neither is dropped.
type SecondaryError struct {
	Original  error
	Secondary error
}

func (e *SecondaryError) Error() string {
	return fmt.Sprintf("error handler failed: %v (original error: %v)", e.Secondary, e.Original)
}

func (e *SecondaryError) Unwrap() []error {
	return []error{e.Original, e.Secondary}
}
