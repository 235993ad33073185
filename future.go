package allm

import (
	"context"
	"sync"
)

// Outcome is the terminal result carried by a Promise.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Ack is the unit value resolved by control commands that have no payload.
type Ack struct{}

// Promise is a one-shot reply sink and its receiving future. Whoever
// finally settles a request calls Resolve or Reject exactly once; later
// calls are ignored. Callers consume the result through Await or Outcome.
type Promise[T any] struct {
	once sync.Once
	ch   chan Outcome[T]
}

// NewPromise creates an unresolved promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{ch: make(chan Outcome[T], 1)}
}

// Resolve settles the promise with a success value.
func (p *Promise[T]) Resolve(v T) {
	p.once.Do(func() { p.ch <- Outcome[T]{Value: v} })
}

// Reject settles the promise with a terminal failure.
func (p *Promise[T]) Reject(err error) {
	p.once.Do(func() { p.ch <- Outcome[T]{Err: err} })
}

// Await blocks until the promise settles or ctx expires. A ctx error
// abandons interest in the result; the underlying work still runs to
// completion and its outcome is discarded.
func (p *Promise[T]) Await(ctx context.Context) (T, error) {
	select {
	case out := <-p.ch:
		return out.Value, out.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Outcome exposes the delivery channel for callers that want to select
// over several futures. At most one value is ever sent.
func (p *Promise[T]) Outcome() <-chan Outcome[T] {
	return p.ch
}

// resolved returns an already-settled promise. Used for idempotent
// operations such as repeated shutdown.
func resolved[T any](v T) *Promise[T] {
	p := NewPromise[T]()
	p.Resolve(v)
	return p
}

// ResolvedAck returns an already-acknowledged promise.
func ResolvedAck() *Promise[Ack] { return resolved(Ack{}) }
