// Package backend implements the orchestration engine: a single
// dispatch loop that routes caller commands to per-provider actors,
// resolves credentials through the shared key store, and hands prompts
// to the failover policy. The loop itself never waits on network I/O;
// every public operation enqueues a command and returns a promise
// immediately, so routing latency stays independent of provider latency.
package backend

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/allmhq/allm"
	"github.com/allmhq/allm/actor"
	"github.com/allmhq/allm/failover"
	"github.com/allmhq/allm/internal/transport/anthropic"
	"github.com/allmhq/allm/internal/transport/google"
	"github.com/allmhq/allm/internal/transport/mistral"
	"github.com/allmhq/allm/internal/transport/openai"
	"github.com/allmhq/allm/keystore"
	"github.com/allmhq/allm/mailbox"
)

// Config configures a Backend.
type Config struct {
	// MasterKey optionally seeds the default provider's master
	// credential, so a freshly created backend can serve prompts without
	// a prior SetAPIKeys call.
	MasterKey string

	// Transports overrides the transport for specific providers. Any
	// provider without an entry gets its vendor SDK transport. Tests
	// inject stubs here.
	Transports map[allm.Provider]allm.Transport

	// Actor applies to every provider actor.
	Actor actor.Config

	// Failover tunes attempt spacing.
	Failover failover.Config

	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// ProviderModels is one provider's slice of a model-list aggregation.
// Err is set when that provider's listing failed; other providers'
// results are unaffected.
type ProviderModels struct {
	Models []string
	Err    error
}

// ModelLists maps every registered provider to its listing outcome.
type ModelLists map[allm.Provider]ProviderModels

// Backend is the top-level orchestrator. Create one per application
// session with New and release it with Shutdown.
type Backend struct {
	log    *zap.Logger
	keys   *keystore.Store
	actors map[allm.Provider]*actor.Actor
	policy *failover.Policy

	mbox     *mailbox.Queue[command]
	fallback []allm.Candidate // owned exclusively by the dispatch loop

	inflight sync.WaitGroup // failover supervisions + aggregations
	closing  atomic.Bool
	loopDone chan struct{}
}

// New creates the backend, registers one actor per known provider, and
// starts the dispatch loop.
func New(cfg Config) *Backend {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Actor.Logger == nil {
		cfg.Actor.Logger = log
	}

	keys := keystore.New(cfg.MasterKey)

	b := &Backend{
		log:      log.Named("backend"),
		keys:     keys,
		actors:   make(map[allm.Provider]*actor.Actor),
		policy:   failover.New(cfg.Failover, log.Named("failover")),
		mbox:     mailbox.New[command](),
		loopDone: make(chan struct{}),
	}

	for _, p := range allm.KnownProviders() {
		t, ok := cfg.Transports[p]
		if !ok {
			t = defaultTransport(p, log)
		}
		b.actors[p] = actor.New(p, t, keys, cfg.Actor)
	}

	b.log.Debug("backend created", zap.Int("providers", len(b.actors)))
	go b.loop()
	return b
}

// defaultTransport returns the vendor SDK transport for a provider.
func defaultTransport(p allm.Provider, log *zap.Logger) allm.Transport {
	switch p {
	case allm.ProviderOpenAI:
		return openai.New(log)
	case allm.ProviderAnthropic:
		return anthropic.New(log)
	case allm.ProviderGoogle:
		return google.New(log)
	default:
		return mistral.New(log)
	}
}

// SendPrompt enqueues a prompt and returns its future immediately. The
// model's owning provider is tried first, then the fallback preference.
// Fails synchronously only after shutdown.
func (b *Backend) SendPrompt(prompt, model string) (*allm.Promise[string], error) {
	reply := allm.NewPromise[string]()
	if !b.mbox.Push(sendPromptCmd{prompt: prompt, model: model, reply: reply}) {
		return nil, allm.ErrShutdown
	}
	return reply, nil
}

// SetAPIKeys applies all specs to the key store as one atomic update.
// No request dispatched after the returned future resolves observes a
// stale key.
func (b *Backend) SetAPIKeys(specs []allm.APIKeySpec) (*allm.Promise[allm.Ack], error) {
	reply := allm.NewPromise[allm.Ack]()
	if !b.mbox.Push(setKeysCmd{specs: specs, reply: reply}) {
		return nil, allm.ErrShutdown
	}
	return reply, nil
}

// GetModelLists fans a model-list query out to every provider actor and
// aggregates the results. Per-provider failures are reported in the
// aggregate, not surfaced as a failure of the whole call.
func (b *Backend) GetModelLists() (*allm.Promise[ModelLists], error) {
	reply := allm.NewPromise[ModelLists]()
	if !b.mbox.Push(getModelsCmd{reply: reply}) {
		return nil, allm.ErrShutdown
	}
	return reply, nil
}

// SetModelFallbackPreference atomically replaces the ordered candidate
// list used when no pinned provider resolves, and as the retry order
// after the primary candidate.
func (b *Backend) SetModelFallbackPreference(prefs []allm.Candidate) (*allm.Promise[allm.Ack], error) {
	reply := allm.NewPromise[allm.Ack]()
	if !b.mbox.Push(setFallbackCmd{prefs: prefs, reply: reply}) {
		return nil, allm.ErrShutdown
	}
	return reply, nil
}

// Shutdown stops every provider actor, waits for in-flight work to
// drain, then stops the dispatch loop. Idempotent: every call resolves
// Ok once shutdown has completed.
func (b *Backend) Shutdown() *allm.Promise[allm.Ack] {
	reply := allm.NewPromise[allm.Ack]()
	if b.mbox.Push(shutdownCmd{reply: reply}) {
		return reply
	}
	// Loop already stopped or stopping; acknowledge once it has.
	go func() {
		<-b.loopDone
		reply.Resolve(allm.Ack{})
	}()
	return reply
}
