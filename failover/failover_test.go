package failover

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allmhq/allm"
)

// scriptedDispatcher settles each attempt according to a per-candidate
// script and records the order candidates were tried in.
type scriptedDispatcher struct {
	mu      sync.Mutex
	outcome map[allm.Candidate]allm.Outcome[string]
	syncErr map[allm.Candidate]error
	tried   []allm.Candidate
}

func newScripted() *scriptedDispatcher {
	return &scriptedDispatcher{
		outcome: make(map[allm.Candidate]allm.Outcome[string]),
		syncErr: make(map[allm.Candidate]error),
	}
}

func (d *scriptedDispatcher) Dispatch(c allm.Candidate, prompt string, reply *allm.Promise[string]) error {
	d.mu.Lock()
	d.tried = append(d.tried, c)
	syncErr := d.syncErr[c]
	out, ok := d.outcome[c]
	d.mu.Unlock()

	if syncErr != nil {
		return syncErr
	}
	if !ok {
		out = allm.Outcome[string]{Err: allm.NewTransportFailure(c.Provider, errors.New("unscripted"))}
	}
	go func() {
		if out.Err != nil {
			reply.Reject(out.Err)
			return
		}
		reply.Resolve(out.Value)
	}()
	return nil
}

func (d *scriptedDispatcher) attempts() []allm.Candidate {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]allm.Candidate(nil), d.tried...)
}

var (
	candA = allm.Candidate{Provider: allm.ProviderOpenAI, Model: "gpt-4o"}
	candB = allm.Candidate{Provider: allm.ProviderAnthropic, Model: "claude-sonnet-4-20250514"}
	candC = allm.Candidate{Provider: allm.ProviderGoogle, Model: "gemini-2.0-flash"}
)

func TestFirstCandidateSucceeds(t *testing.T) {
	d := newScripted()
	d.outcome[candA] = allm.Outcome[string]{Value: "answer"}

	reply := allm.NewPromise[string]()
	New(Config{}, nil).Execute(d, "q", []allm.Candidate{candA, candB}, reply)

	v, err := reply.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "answer", v)
	assert.Equal(t, []allm.Candidate{candA}, d.attempts())
}

func TestRetryableFailureAdvances(t *testing.T) {
	d := newScripted()
	d.outcome[candA] = allm.Outcome[string]{Err: allm.NewTimeout(candA.Provider, candA.Model)}
	d.outcome[candB] = allm.Outcome[string]{Value: "from B"}

	reply := allm.NewPromise[string]()
	New(Config{}, nil).Execute(d, "q", []allm.Candidate{candA, candB}, reply)

	v, err := reply.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from B", v)
	assert.Equal(t, []allm.Candidate{candA, candB}, d.attempts())
}

func TestNonRetryableFailureStillAdvances(t *testing.T) {
	d := newScripted()
	d.outcome[candA] = allm.Outcome[string]{Err: allm.NewKeyNotFound(candA.Provider, candA.Model)}
	d.outcome[candB] = allm.Outcome[string]{Value: "from B"}

	reply := allm.NewPromise[string]()
	New(Config{}, nil).Execute(d, "q", []allm.Candidate{candA, candB}, reply)

	v, err := reply.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from B", v)
}

func TestExhaustionAggregatesCausesInOrder(t *testing.T) {
	errA := allm.NewTimeout(candA.Provider, candA.Model)
	errB := allm.NewProviderRejected(candB.Provider, 401, "bad key", nil)

	d := newScripted()
	d.outcome[candA] = allm.Outcome[string]{Err: errA}
	d.outcome[candB] = allm.Outcome[string]{Err: errB}

	reply := allm.NewPromise[string]()
	New(Config{}, nil).Execute(d, "q", []allm.Candidate{candA, candB}, reply)

	_, err := reply.Await(context.Background())
	require.Error(t, err)

	var exhausted *allm.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Attempts, 2)
	assert.Equal(t, candA, exhausted.Attempts[0].Candidate)
	assert.Equal(t, errA, exhausted.Attempts[0].Err)
	assert.Equal(t, candB, exhausted.Attempts[1].Candidate)
	assert.Equal(t, errB, exhausted.Attempts[1].Err)
}

func TestEachCandidateTriedAtMostOnce(t *testing.T) {
	d := newScripted()
	d.outcome[candA] = allm.Outcome[string]{Err: allm.NewTimeout(candA.Provider, candA.Model)}
	d.outcome[candB] = allm.Outcome[string]{Err: allm.NewTimeout(candB.Provider, candB.Model)}
	d.outcome[candC] = allm.Outcome[string]{Err: allm.NewTimeout(candC.Provider, candC.Model)}

	reply := allm.NewPromise[string]()
	New(Config{}, nil).Execute(d, "q", []allm.Candidate{candA, candB, candC}, reply)

	_, err := reply.Await(context.Background())
	require.Error(t, err)
	assert.Equal(t, []allm.Candidate{candA, candB, candC}, d.attempts())
}

func TestSynchronousDispatchErrorCounts(t *testing.T) {
	syncErr := allm.NewActorUnavailable(candA.Provider)
	d := newScripted()
	d.syncErr[candA] = syncErr
	d.outcome[candB] = allm.Outcome[string]{Value: "from B"}

	reply := allm.NewPromise[string]()
	New(Config{}, nil).Execute(d, "q", []allm.Candidate{candA, candB}, reply)

	v, err := reply.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from B", v)
	assert.Equal(t, []allm.Candidate{candA, candB}, d.attempts())
}

func TestEmptyCandidateListRejected(t *testing.T) {
	reply := allm.NewPromise[string]()
	New(Config{}, nil).Execute(newScripted(), "q", nil, reply)

	_, err := reply.Await(context.Background())
	assert.Equal(t, allm.KindInvalidConfiguration, allm.KindOf(err))
}

func TestSpacingDelaysSecondAttempt(t *testing.T) {
	d := newScripted()
	d.outcome[candA] = allm.Outcome[string]{Err: allm.NewTimeout(candA.Provider, candA.Model)}
	d.outcome[candB] = allm.Outcome[string]{Value: "from B"}

	start := time.Now()
	reply := allm.NewPromise[string]()
	New(Config{Spacing: 50 * time.Millisecond}, nil).Execute(d, "q", []allm.Candidate{candA, candB}, reply)

	_, err := reply.Await(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}
