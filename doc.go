// Package allm provides one uniform request/response interface over
// several independent LLM HTTP providers, with automatic failover to
// alternate (provider, model) candidates when a request fails.
//
// The orchestration engine lives in [github.com/allmhq/allm/backend].
// Each provider is driven by its own actor (an independent worker
// consuming a FIFO command queue), so requests to distinct providers run
// concurrently while requests to the same provider are serialized.
// Submitting a command never waits on network I/O: every operation
// returns a [Promise] immediately and delivers exactly one terminal
// outcome through it.
//
// # Basic Usage
//
//	b := backend.New(backend.Config{MasterKey: os.Getenv("ALLM_MISTRAL_API_KEY")})
//	defer b.Shutdown()
//
//	fut, err := b.SendPrompt("Say hello.", "mistral-small-latest")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	text, err := fut.Await(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(text)
//
// Credentials are resolved in two tiers: a model-specific key takes
// precedence over the provider's master key. Failover order is the
// pinned model's provider first, then the configured fallback
// preference; when every candidate fails the caller receives an
// [ExhaustedError] listing each attempted candidate with its cause.
package allm
