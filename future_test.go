package allm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromiseResolve(t *testing.T) {
	p := NewPromise[string]()
	p.Resolve("hello")

	v, err := p.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestPromiseReject(t *testing.T) {
	p := NewPromise[string]()
	cause := errors.New("boom")
	p.Reject(cause)

	_, err := p.Await(context.Background())
	assert.Equal(t, cause, err)
}

func TestPromiseSettlesOnce(t *testing.T) {
	p := NewPromise[int]()
	p.Resolve(1)
	p.Resolve(2)
	p.Reject(errors.New("late"))

	v, err := p.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestPromiseAwaitHonorsContext(t *testing.T) {
	p := NewPromise[string]()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The producer can still settle; a later consumer sees the value.
	p.Resolve("late but delivered")
	v, err := p.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "late but delivered", v)
}

func TestPromiseOutcomeChannel(t *testing.T) {
	p := NewPromise[int]()
	go p.Resolve(42)

	out := <-p.Outcome()
	require.NoError(t, out.Err)
	assert.Equal(t, 42, out.Value)
}

func TestResolvedAck(t *testing.T) {
	p := ResolvedAck()
	_, err := p.Await(context.Background())
	assert.NoError(t, err)
}
