// Package mistral implements the provider transport for Mistral's API.
// The API is OpenAI-compatible, so the transport is the OpenAI one
// pointed at Mistral's base URL.
package mistral

import (
	"go.uber.org/zap"

	"github.com/allmhq/allm"
	"github.com/allmhq/allm/internal/transport/openai"
)

const apiBase = "https://api.mistral.ai/v1"

// New creates the Mistral transport.
func New(log *zap.Logger) *openai.Transport {
	return openai.NewCompatible(allm.ProviderMistral, apiBase, log)
}
