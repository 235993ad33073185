package allm

import "context"

// Generation defaults applied when a request leaves them unset.
const (
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.7
)

// PromptRequest is the uniform request handed to every Transport.
type PromptRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Transport performs one network call against a single provider with an
// already-resolved API key. Implementations classify every failure into
// the *Error taxonomy instead of leaking raw SDK or HTTP errors.
type Transport interface {
	// SendPrompt posts the conversation to the provider's chat-completion
	// endpoint and returns the generated text.
	SendPrompt(ctx context.Context, apiKey string, req PromptRequest) (string, error)

	// ListModels fetches the provider's available model identifiers.
	ListModels(ctx context.Context, apiKey string) ([]string, error)
}
