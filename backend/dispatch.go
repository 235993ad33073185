package backend

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/allmhq/allm"
)

type command interface{ isCommand() }

type sendPromptCmd struct {
	prompt string
	model  string
	reply  *allm.Promise[string]
}

type setKeysCmd struct {
	specs []allm.APIKeySpec
	reply *allm.Promise[allm.Ack]
}

type getModelsCmd struct {
	reply *allm.Promise[ModelLists]
}

type setFallbackCmd struct {
	prefs []allm.Candidate
	reply *allm.Promise[allm.Ack]
}

type shutdownCmd struct {
	reply *allm.Promise[allm.Ack]
}

func (sendPromptCmd) isCommand()  {}
func (setKeysCmd) isCommand()     {}
func (getModelsCmd) isCommand()   {}
func (setFallbackCmd) isCommand() {}
func (shutdownCmd) isCommand()    {}

// loop is the single orchestrator worker. It consumes commands strictly
// in submission order and never awaits transport I/O: prompt work is
// enqueued into provider actors and supervised off-loop.
func (b *Backend) loop() {
	defer close(b.loopDone)
	for {
		cmd, ok := b.mbox.Pop()
		if !ok {
			return
		}
		if b.closing.Load() {
			// Commands queued behind a shutdown command.
			b.rejectLate(cmd)
			continue
		}
		switch c := cmd.(type) {
		case sendPromptCmd:
			b.handleSendPrompt(c)
		case setKeysCmd:
			b.handleSetKeys(c)
		case getModelsCmd:
			b.handleGetModels(c)
		case setFallbackCmd:
			b.handleSetFallback(c)
		case shutdownCmd:
			b.handleShutdown(c)
		}
	}
}

// rejectLate settles commands that were still queued when shutdown ran.
// Repeated shutdowns stay idempotent and acknowledge success.
func (b *Backend) rejectLate(cmd command) {
	switch c := cmd.(type) {
	case sendPromptCmd:
		c.reply.Reject(allm.ErrShutdown)
	case setKeysCmd:
		c.reply.Reject(allm.ErrShutdown)
	case getModelsCmd:
		c.reply.Reject(allm.ErrShutdown)
	case setFallbackCmd:
		c.reply.Reject(allm.ErrShutdown)
	case shutdownCmd:
		c.reply.Resolve(allm.Ack{})
	}
}

// actorDispatcher adapts the actor registry to the failover policy.
type actorDispatcher struct {
	b *Backend
}

func (d actorDispatcher) Dispatch(c allm.Candidate, prompt string, reply *allm.Promise[string]) error {
	a, ok := d.b.actors[c.Provider]
	if !ok {
		return &allm.Error{Kind: allm.KindInvalidConfiguration, Provider: c.Provider, Msg: "no actor registered"}
	}
	return a.SendPrompt(prompt, c.Model, reply)
}

func (b *Backend) handleSendPrompt(cmd sendPromptCmd) {
	requestID := uuid.NewString()
	candidates := b.candidatesFor(cmd.model)
	b.log.Debug("dispatching prompt",
		zap.String("request_id", requestID),
		zap.String("model", cmd.model),
		zap.Int("candidates", len(candidates)))

	// Bridge the policy's outcome to the caller so shutdown can wait for
	// every in-flight request to settle.
	inner := allm.NewPromise[string]()
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		out := <-inner.Outcome()
		if out.Err != nil {
			b.log.Debug("prompt settled with error", zap.String("request_id", requestID), zap.Error(out.Err))
			cmd.reply.Reject(out.Err)
			return
		}
		cmd.reply.Resolve(out.Value)
	}()

	b.policy.Execute(actorDispatcher{b: b}, cmd.prompt, candidates, inner)
}

// candidatesFor builds the attempt order for one request: the primary
// candidate first, then the fallback preference with the primary and any
// duplicates removed.
func (b *Backend) candidatesFor(model string) []allm.Candidate {
	var primary allm.Candidate
	switch {
	case model != "":
		if p, ok := allm.ProviderForModel(model); ok {
			primary = allm.Candidate{Provider: p, Model: model}
		} else if len(b.fallback) > 0 {
			// Unknown naming scheme: try the preferred provider with the
			// requested model before the configured pairs.
			primary = allm.Candidate{Provider: b.fallback[0].Provider, Model: model}
		} else {
			primary = allm.Candidate{Provider: allm.DefaultProvider, Model: model}
		}
	case len(b.fallback) > 0:
		primary = b.fallback[0]
	default:
		primary = allm.Candidate{Provider: allm.DefaultProvider, Model: allm.DefaultModel}
	}

	out := make([]allm.Candidate, 0, len(b.fallback)+1)
	out = append(out, primary)
	seen := map[allm.Candidate]bool{primary: true}
	for _, c := range b.fallback {
		if !seen[c] {
			out = append(out, c)
			seen[c] = true
		}
	}
	return out
}

func (b *Backend) handleSetKeys(cmd setKeysCmd) {
	for _, spec := range cmd.specs {
		if _, ok := b.actors[spec.Provider]; !ok {
			cmd.reply.Reject(&allm.Error{
				Kind:     allm.KindInvalidConfiguration,
				Provider: spec.Provider,
				Msg:      "unknown provider",
			})
			return
		}
	}
	b.keys.Apply(cmd.specs)
	b.log.Debug("api keys applied", zap.Int("specs", len(cmd.specs)))
	cmd.reply.Resolve(allm.Ack{})
}

func (b *Backend) handleGetModels(cmd getModelsCmd) {
	type pending struct {
		provider allm.Provider
		reply    *allm.Promise[[]string]
	}

	pendings := make([]pending, 0, len(b.actors))
	lists := make(ModelLists, len(b.actors))
	for p, a := range b.actors {
		reply := allm.NewPromise[[]string]()
		if err := a.GetModels(reply); err != nil {
			lists[p] = ProviderModels{Err: err}
			continue
		}
		pendings = append(pendings, pending{provider: p, reply: reply})
	}

	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		for _, pd := range pendings {
			out := <-pd.reply.Outcome()
			lists[pd.provider] = ProviderModels{Models: out.Value, Err: out.Err}
		}
		cmd.reply.Resolve(lists)
	}()
}

func (b *Backend) handleSetFallback(cmd setFallbackCmd) {
	for _, c := range cmd.prefs {
		if _, ok := b.actors[c.Provider]; !ok {
			cmd.reply.Reject(&allm.Error{
				Kind:     allm.KindInvalidConfiguration,
				Provider: c.Provider,
				Msg:      "unknown provider",
			})
			return
		}
	}
	b.fallback = append([]allm.Candidate(nil), cmd.prefs...)
	b.log.Debug("fallback preference replaced", zap.Int("candidates", len(b.fallback)))
	cmd.reply.Resolve(allm.Ack{})
}

// handleShutdown stops intake, shuts every actor down, waits for their
// workers and for in-flight supervisions, then acknowledges. The loop
// keeps running only to settle commands that were already queued.
func (b *Backend) handleShutdown(cmd shutdownCmd) {
	b.log.Info("shutting down")
	b.closing.Store(true)
	b.mbox.Close()

	acks := make([]*allm.Promise[allm.Ack], 0, len(b.actors))
	for _, a := range b.actors {
		ack := allm.NewPromise[allm.Ack]()
		a.Shutdown(ack)
		acks = append(acks, ack)
	}
	for _, ack := range acks {
		<-ack.Outcome()
	}

	b.inflight.Wait()
	b.log.Info("shutdown complete")
	cmd.reply.Resolve(allm.Ack{})
}
