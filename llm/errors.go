package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies provider failures into the shared taxonomy, independent
// of which backend produced them.
type ErrorKind string

const (
	// KindUnavailable: backend unreachable or unauthenticated. Not retryable
	// within the current run; callers should fail over to another provider.
	KindUnavailable ErrorKind = "unavailable"

	// KindModelNotFound: the requested model or deployment does not exist.
	// Not retryable without changing the request.
	KindModelNotFound ErrorKind = "model_not_found"

	// KindGenerationFailed: the backend returned an error during generation,
	// including rate limiting. Retry is a caller decision.
	KindGenerationFailed ErrorKind = "generation_failed"

	// KindTimeout: the request exceeded its per-call budget. The execution
	// loop treats this as a recoverable step failure, not a run-ending fault.
	KindTimeout ErrorKind = "timeout"

	// KindNotSupported: the operation is not implemented by this backend.
	// Callers should have checked Capabilities first.
	KindNotSupported ErrorKind = "not_supported"

	// KindUnknown: catch-all. Logged with full backend detail and treated as
	// KindGenerationFailed for control-flow purposes.
	KindUnknown ErrorKind = "unknown"
)

// Error is the typed error returned by all provider operations.
type Error struct {
	Kind     ErrorKind
	Provider string
	Status   int // HTTP status when the backend supplied one, else 0
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("[%s] %s: %s (status=%d)", e.Provider, e.Kind, e.Message, e.Status)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is matching on kind sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Provider == "" || t.Provider == e.Provider)
}

// Kind sentinels for errors.Is checks.
var (
	ErrUnavailable   = &Error{Kind: KindUnavailable}
	ErrModelNotFound = &Error{Kind: KindModelNotFound}
	ErrGeneration    = &Error{Kind: KindGenerationFailed}
	ErrTimeout       = &Error{Kind: KindTimeout}
	ErrNotSupported  = &Error{Kind: KindNotSupported}
)

// ErrProviderNotFound is returned by the registry for unknown provider IDs.
var ErrProviderNotFound = errors.New("provider not found")

func newError(kind ErrorKind, provider, message string, cause error) *Error {
	return &Error{Kind: kind, Provider: provider, Message: message, Cause: cause}
}

func notSupported(provider, op string) *Error {
	return &Error{Kind: KindNotSupported, Provider: provider, Message: op + " is not supported by this backend"}
}

// KindOf extracts the taxonomy kind from err. Context cancellation is never
// reclassified: it reports KindUnknown and callers should check ctx.Err()
// separately. Unknown collapses to GenerationFailed only at control-flow
// sites, not here.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Retryable reports whether the error is safe to retry against the same
// provider. Timeouts and generation failures are; authentication failures,
// missing models, and unsupported operations are not.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindGenerationFailed, KindUnknown:
		return true
	default:
		return false
	}
}

// errorFromStatus maps an HTTP status code from a backend onto the taxonomy.
func errorFromStatus(status int, provider, message string, cause error) *Error {
	e := &Error{Provider: provider, Status: status, Message: message, Cause: cause}
	switch {
	case status == 401 || status == 403:
		e.Kind = KindUnavailable
	case status == 404:
		e.Kind = KindModelNotFound
	case status == 408 || status == 504:
		e.Kind = KindTimeout
	case status >= 400:
		// Rate limiting and generic 4xx/5xx, with the backend message kept.
		e.Kind = KindGenerationFailed
	default:
		e.Kind = KindUnknown
	}
	return e
}

// wrapTransportErr normalizes a transport-level failure. Cancellation from the
// caller's context propagates untouched; a deadline hit on the per-call
// context becomes KindTimeout; anything else is KindUnavailable.
func wrapTransportErr(parent context.Context, provider string, err error) error {
	if err == nil {
		return nil
	}
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, provider, "request timed out", err)
	}
	return newError(KindUnavailable, provider, err.Error(), err)
}
