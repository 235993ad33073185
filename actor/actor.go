// Package actor implements the per-provider worker that serializes all
// calls to one provider transport. Commands are enqueued and processed
// strictly in arrival order; every command delivers exactly one terminal
// outcome through its reply promise, and the actor never retries
// internally. Failover across providers is the policy layer's job.
package actor

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/allmhq/allm"
	"github.com/allmhq/allm/keystore"
	"github.com/allmhq/allm/mailbox"
)

// Config tunes one actor.
type Config struct {
	// Parallelism is the number of workers draining the queue. The
	// default of 1 gives strict FIFO completion order; higher values
	// allow bounded same-provider overlap, keeping start order but not
	// completion order.
	Parallelism int

	// RequestTimeout bounds each transport call. Default 60s.
	RequestTimeout time.Duration

	// MaxTokens and Temperature are the generation parameters applied to
	// every prompt. Defaults: 1024 tokens, temperature 0.7.
	MaxTokens   int
	Temperature float64

	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.Parallelism < 1 {
		c.Parallelism = 1
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = allm.DefaultMaxTokens
	}
	if c.Temperature <= 0 {
		c.Temperature = allm.DefaultTemperature
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

type command interface{ isCommand() }

type sendPromptCmd struct {
	prompt string
	model  string
	reply  *allm.Promise[string]
}

type getModelsCmd struct {
	reply *allm.Promise[[]string]
}

type setKeyCmd struct {
	model string
	key   string
	reply *allm.Promise[allm.Ack]
}

func (sendPromptCmd) isCommand() {}
func (getModelsCmd) isCommand()  {}
func (setKeyCmd) isCommand()     {}

// Actor owns the command queue and worker lifetime for one provider.
type Actor struct {
	provider  allm.Provider
	transport allm.Transport
	keys      *keystore.Store
	cfg       Config
	log       *zap.Logger

	mbox *mailbox.Queue[command]
	wg   sync.WaitGroup
	done chan struct{}
}

// New creates the actor and starts its worker(s).
func New(provider allm.Provider, transport allm.Transport, keys *keystore.Store, cfg Config) *Actor {
	cfg = cfg.withDefaults()
	a := &Actor{
		provider:  provider,
		transport: transport,
		keys:      keys,
		cfg:       cfg,
		log:       cfg.Logger.With(zap.String("provider", provider.String())),
		mbox:      mailbox.New[command](),
		done:      make(chan struct{}),
	}
	a.wg.Add(cfg.Parallelism)
	for i := 0; i < cfg.Parallelism; i++ {
		go a.work()
	}
	go func() {
		a.wg.Wait()
		close(a.done)
	}()
	return a
}

// Provider returns the provider this actor drives.
func (a *Actor) Provider() allm.Provider { return a.provider }

// SendPrompt enqueues a prompt. Returns immediately; fails synchronously
// only when the worker has already terminated.
func (a *Actor) SendPrompt(prompt, model string, reply *allm.Promise[string]) error {
	if !a.mbox.Push(sendPromptCmd{prompt: prompt, model: model, reply: reply}) {
		return allm.NewActorUnavailable(a.provider)
	}
	return nil
}

// GetModels enqueues a model-listing request.
func (a *Actor) GetModels(reply *allm.Promise[[]string]) error {
	if !a.mbox.Push(getModelsCmd{reply: reply}) {
		return allm.NewActorUnavailable(a.provider)
	}
	return nil
}

// SetAPIKey enqueues a key update scoped to this provider. An empty
// model sets the master key.
func (a *Actor) SetAPIKey(model, key string, reply *allm.Promise[allm.Ack]) error {
	if !a.mbox.Push(setKeyCmd{model: model, key: key, reply: reply}) {
		return allm.NewActorUnavailable(a.provider)
	}
	return nil
}

// Shutdown stops intake, lets in-flight and already-queued commands
// finish, then acknowledges. Safe to call more than once.
func (a *Actor) Shutdown(reply *allm.Promise[allm.Ack]) {
	a.mbox.Close()
	go func() {
		<-a.done
		a.log.Debug("actor stopped")
		reply.Resolve(allm.Ack{})
	}()
}

// Done is closed once every worker has exited.
func (a *Actor) Done() <-chan struct{} { return a.done }

func (a *Actor) work() {
	defer a.wg.Done()
	for {
		cmd, ok := a.mbox.Pop()
		if !ok {
			return
		}
		switch c := cmd.(type) {
		case sendPromptCmd:
			a.handleSendPrompt(c)
		case getModelsCmd:
			a.handleGetModels(c)
		case setKeyCmd:
			a.handleSetKey(c)
		}
	}
}

func (a *Actor) handleSendPrompt(cmd sendPromptCmd) {
	key, err := a.keys.Resolve(a.provider, cmd.model)
	if err != nil {
		a.log.Debug("key resolution failed", zap.String("model", cmd.model))
		cmd.reply.Reject(err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.RequestTimeout)
	defer cancel()

	req := allm.PromptRequest{
		Model:       cmd.model,
		Messages:    []allm.Message{{Role: allm.RoleUser, Content: cmd.prompt}},
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	}

	start := time.Now()
	text, err := a.transport.SendPrompt(ctx, key, req)
	if err != nil {
		a.log.Debug("prompt failed",
			zap.String("model", cmd.model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		cmd.reply.Reject(a.classify(err, cmd.model))
		return
	}
	a.log.Debug("prompt succeeded",
		zap.String("model", cmd.model),
		zap.Duration("elapsed", time.Since(start)))
	cmd.reply.Resolve(text)
}

func (a *Actor) handleGetModels(cmd getModelsCmd) {
	key, err := a.keys.Resolve(a.provider, "")
	if err != nil {
		cmd.reply.Reject(err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.RequestTimeout)
	defer cancel()

	models, err := a.transport.ListModels(ctx, key)
	if err != nil {
		a.log.Debug("model listing failed", zap.Error(err))
		cmd.reply.Reject(a.classify(err, ""))
		return
	}
	cmd.reply.Resolve(models)
}

func (a *Actor) handleSetKey(cmd setKeyCmd) {
	a.keys.Apply([]allm.APIKeySpec{{Provider: a.provider, Model: cmd.model, Key: cmd.key}})
	cmd.reply.Resolve(allm.Ack{})
}

// classify maps an unclassified transport error into the taxonomy.
// Well-behaved transports already return *allm.Error; this catches
// context deadlines and raw connection errors from SDK internals.
func (a *Actor) classify(err error, model string) error {
	var ae *allm.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return allm.NewTimeout(a.provider, model)
	}
	return allm.NewTransportFailure(a.provider, err)
}
