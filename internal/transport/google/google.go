// Package google implements the provider transport for Google's Gemini
// API via the GenAI SDK.
package google

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/allmhq/allm"
)

// Transport implements allm.Transport over the Google GenAI SDK. One SDK
// client is cached per API key, since keys are resolved per request.
type Transport struct {
	log *zap.Logger

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// New creates the Google transport.
func New(log *zap.Logger) *Transport {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transport{
		log:     log.Named("transport").With(zap.String("provider", allm.ProviderGoogle.String())),
		clients: make(map[string]*genai.Client),
	}
}

func (t *Transport) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.clients[apiKey]; ok {
		return c, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, allm.NewTransportFailure(allm.ProviderGoogle, err)
	}
	t.clients[apiKey] = c
	return c, nil
}

// SendPrompt posts the conversation and concatenates the text parts of
// the first candidate.
func (t *Transport) SendPrompt(ctx context.Context, apiKey string, req allm.PromptRequest) (string, error) {
	client, err := t.client(ctx, apiKey)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		config.Temperature = &temp
	}

	resp, err := client.Models.GenerateContent(ctx, req.Model, convertMessages(req.Messages), config)
	if err != nil {
		return "", t.wrapError(err, req.Model)
	}

	content := ""
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			content += part.Text
		}
	}
	if content == "" {
		return "", allm.NewMalformedResponse(allm.ProviderGoogle, errors.New("response contained no candidates"))
	}
	return content, nil
}

// ListModels fetches the available model identifiers. The SDK reports
// resource names like "models/gemini-2.0-flash"; the prefix is stripped.
func (t *Transport) ListModels(ctx context.Context, apiKey string) ([]string, error) {
	client, err := t.client(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	var names []string
	for m, err := range client.Models.All(ctx) {
		if err != nil {
			return nil, t.wrapError(err, "")
		}
		names = append(names, strings.TrimPrefix(m.Name, "models/"))
	}
	t.log.Debug("listed models", zap.Int("count", len(names)))
	return names, nil
}

func convertMessages(messages []allm.Message) []*genai.Content {
	var contents []*genai.Content
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		role := genai.RoleUser
		if msg.Role == allm.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}
	return contents
}

// wrapError classifies an SDK error into the allm taxonomy. The GenAI
// SDK does not expose response headers, so no Retry-After is available.
func (t *Transport) wrapError(err error, model string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return allm.NewTimeout(allm.ProviderGoogle, model)
	}
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return allm.NewTransportFailure(allm.ProviderGoogle, err)
	}
	e := allm.NewProviderRejected(allm.ProviderGoogle, apiErr.Code, apiErr.Message, err)
	e.Model = model
	return e
}
