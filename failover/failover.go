// Package failover drives one logical request across an ordered list of
// (provider, model) candidates. It is the only component allowed to
// suppress an intermediate failure from reaching the caller: every
// failure, retryable or not, is recorded and the next candidate tried,
// because a failure specific to one combination must not prevent an
// unrelated combination from succeeding. Each candidate is attempted at
// most once per logical request.
package failover

import (
	"time"

	"go.uber.org/zap"

	"github.com/allmhq/allm"
)

// Dispatcher enqueues one attempt against one candidate's actor. A
// synchronous error means the attempt could not even be queued (actor
// unavailable) and counts as that candidate's cause.
type Dispatcher interface {
	Dispatch(c allm.Candidate, prompt string, reply *allm.Promise[string]) error
}

// Config tunes the policy.
type Config struct {
	// Spacing is the minimum delay between consecutive attempts.
	// Zero (the default) advances immediately.
	Spacing time.Duration
}

// Policy iterates candidates in order until success or exhaustion.
type Policy struct {
	cfg Config
	log *zap.Logger
}

// New creates a policy. A nil logger is replaced with a nop logger.
func New(cfg Config, log *zap.Logger) *Policy {
	if log == nil {
		log = zap.NewNop()
	}
	return &Policy{cfg: cfg, log: log}
}

// Execute starts the failover sequence for one logical request and
// returns immediately. The first attempt is enqueued on the caller's
// goroutine, so submission order into an actor's queue matches the
// order in which the orchestrator dispatched requests; advancement to
// later candidates happens on a supervisor goroutine. Exactly one
// terminal outcome is delivered to reply.
func (p *Policy) Execute(d Dispatcher, prompt string, candidates []allm.Candidate, reply *allm.Promise[string]) {
	if len(candidates) == 0 {
		reply.Reject(&allm.Error{Kind: allm.KindInvalidConfiguration, Msg: "no failover candidates"})
		return
	}

	var attempts []allm.Attempt
	pending := allm.NewPromise[string]()
	if err := d.Dispatch(candidates[0], prompt, pending); err != nil {
		attempts = append(attempts, allm.Attempt{Candidate: candidates[0], Err: err})
		pending = nil
	}
	go p.supervise(d, prompt, candidates, attempts, pending, reply)
}

// supervise owns the rest of the sequence. Invariant: when pending is
// non-nil it belongs to candidates[len(attempts)].
func (p *Policy) supervise(d Dispatcher, prompt string, candidates []allm.Candidate, attempts []allm.Attempt, pending *allm.Promise[string], reply *allm.Promise[string]) {
	for {
		idx := len(attempts)

		if pending != nil {
			out := <-pending.Outcome()
			if out.Err == nil {
				reply.Resolve(out.Value)
				return
			}
			p.log.Debug("attempt failed",
				zap.String("candidate", candidates[idx].String()),
				zap.Bool("retryable", allm.IsRetryable(out.Err)),
				zap.Error(out.Err))
			attempts = append(attempts, allm.Attempt{Candidate: candidates[idx], Err: out.Err})
			pending = nil
			continue
		}

		if idx >= len(candidates) {
			p.log.Debug("candidates exhausted", zap.Int("attempts", len(attempts)))
			reply.Reject(&allm.ExhaustedError{Attempts: attempts})
			return
		}

		if idx > 0 && p.cfg.Spacing > 0 {
			time.Sleep(p.cfg.Spacing)
		}

		next := allm.NewPromise[string]()
		if err := d.Dispatch(candidates[idx], prompt, next); err != nil {
			attempts = append(attempts, allm.Attempt{Candidate: candidates[idx], Err: err})
			continue
		}
		pending = next
	}
}
