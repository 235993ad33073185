package allm

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies an error by what failed, which in turn decides whether
// the failover policy treats the attempt as retryable.
type Kind string

const (
	// KindKeyNotFound means no credential resolved for a (provider, model) pair.
	KindKeyNotFound Kind = "key_not_found"

	// KindTransportFailure is a connection-level failure before any HTTP
	// status was received. Always retryable.
	KindTransportFailure Kind = "transport_failure"

	// KindProviderRejected means the provider returned a non-2xx response.
	// Retryable when the status indicates rate limiting or a server fault.
	KindProviderRejected Kind = "provider_rejected"

	// KindTimeout means the per-request deadline elapsed. Retryable.
	KindTimeout Kind = "timeout"

	// KindActorUnavailable means the target actor's queue is closed or its
	// worker has terminated.
	KindActorUnavailable Kind = "actor_unavailable"

	// KindMalformedResponse means the provider answered 2xx but the body
	// could not be interpreted.
	KindMalformedResponse Kind = "malformed_response"

	// KindShutdownInProgress means the backend is shutting down and no
	// longer accepts commands.
	KindShutdownInProgress Kind = "shutdown_in_progress"

	// KindInvalidConfiguration means the request cannot be dispatched as
	// configured, e.g. an empty candidate list.
	KindInvalidConfiguration Kind = "invalid_configuration"
)

// Error is the terminal failure type delivered on reply sinks.
type Error struct {
	Kind     Kind
	Provider Provider
	Model    string
	Status   int           // HTTP status, 0 if not applicable
	Msg      string
	RetryIn  time.Duration // server-suggested delay, 0 if none
	Cause    error
}

// Error returns the error message.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Provider != "" {
		b.WriteString(" [")
		b.WriteString(e.Provider.String())
		if e.Model != "" {
			b.WriteString("/")
			b.WriteString(e.Model)
		}
		b.WriteString("]")
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the failure is transient: transport failures
// and timeouts always are; provider rejections only for rate limiting
// (429) and server faults (5xx).
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTransportFailure, KindTimeout:
		return true
	case KindProviderRejected:
		return e.Status == 429 || (e.Status >= 500 && e.Status < 600) || e.RetryIn > 0
	default:
		return false
	}
}

// NewKeyNotFound reports a failed credential resolution.
func NewKeyNotFound(provider Provider, model string) *Error {
	return &Error{Kind: KindKeyNotFound, Provider: provider, Model: model, Msg: "no API key configured"}
}

// NewTransportFailure reports a connection-level failure.
func NewTransportFailure(provider Provider, cause error) *Error {
	return &Error{Kind: KindTransportFailure, Provider: provider, Cause: cause}
}

// NewProviderRejected reports a non-2xx provider response.
func NewProviderRejected(provider Provider, status int, body string, cause error) *Error {
	return &Error{Kind: KindProviderRejected, Provider: provider, Status: status, Msg: body, Cause: cause}
}

// NewTimeout reports an elapsed per-request deadline.
func NewTimeout(provider Provider, model string) *Error {
	return &Error{Kind: KindTimeout, Provider: provider, Model: model, Msg: "request deadline elapsed"}
}

// NewActorUnavailable reports a closed actor queue.
func NewActorUnavailable(provider Provider) *Error {
	return &Error{Kind: KindActorUnavailable, Provider: provider, Msg: "worker terminated"}
}

// NewMalformedResponse reports an uninterpretable provider response.
func NewMalformedResponse(provider Provider, cause error) *Error {
	return &Error{Kind: KindMalformedResponse, Provider: provider, Cause: cause}
}

// ErrShutdown is returned for commands submitted to a backend that is
// shutting down or already stopped.
var ErrShutdown = &Error{Kind: KindShutdownInProgress, Msg: "backend is shut down"}

// IsRetryable reports whether err (or any wrapped error) is a retryable
// *Error. Unclassified errors are treated as non-retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}

// KindOf returns the Kind of err, or "" when err carries no *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Attempt records the outcome of one failover candidate.
type Attempt struct {
	Candidate Candidate
	Err       error
}

// ExhaustedError aggregates the causes of a fully failed failover
// sequence, one per attempted candidate, in attempt order.
type ExhaustedError struct {
	Attempts []Attempt
}

// Error lists every attempted candidate with its cause.
func (e *ExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "all %d candidates failed", len(e.Attempts))
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "; %s: %v", a.Candidate, a.Err)
	}
	return b.String()
}
