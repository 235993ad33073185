// Package openai implements the provider transport for OpenAI's chat
// API, and for any OpenAI-compatible endpoint reached through a custom
// base URL (the Mistral transport reuses it that way).
package openai

import (
	"context"
	"errors"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/allmhq/allm"
)

// Transport implements allm.Transport over the OpenAI SDK. One SDK
// client is cached per API key, since keys are resolved per request.
type Transport struct {
	provider allm.Provider
	baseURL  string
	log      *zap.Logger

	mu      sync.Mutex
	clients map[string]*openai.Client
}

// New creates a transport against the OpenAI API.
func New(log *zap.Logger) *Transport {
	return NewCompatible(allm.ProviderOpenAI, "", log)
}

// NewCompatible creates a transport against an OpenAI-compatible API at
// baseURL, reporting failures under the given provider identity.
func NewCompatible(provider allm.Provider, baseURL string, log *zap.Logger) *Transport {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transport{
		provider: provider,
		baseURL:  baseURL,
		log:      log.Named("transport").With(zap.String("provider", provider.String())),
		clients:  make(map[string]*openai.Client),
	}
}

func (t *Transport) client(apiKey string) *openai.Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.clients[apiKey]; ok {
		return c
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if t.baseURL != "" {
		opts = append(opts, option.WithBaseURL(t.baseURL))
	}
	c := openai.NewClient(opts...)
	t.clients[apiKey] = &c
	return &c
}

// SendPrompt posts a chat completion and returns the first choice's text.
func (t *Transport) SendPrompt(ctx context.Context, apiKey string, req allm.PromptRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: convertMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	resp, err := t.client(apiKey).Chat.Completions.New(ctx, params)
	if err != nil {
		return "", t.wrapError(err, req.Model)
	}
	if len(resp.Choices) == 0 {
		return "", allm.NewMalformedResponse(t.provider, errors.New("response contained no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

// ListModels fetches the available model identifiers.
func (t *Transport) ListModels(ctx context.Context, apiKey string) ([]string, error) {
	page, err := t.client(apiKey).Models.List(ctx)
	if err != nil {
		return nil, t.wrapError(err, "")
	}
	names := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		names = append(names, m.ID)
	}
	t.log.Debug("listed models", zap.Int("count", len(names)))
	return names, nil
}

func convertMessages(messages []allm.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case allm.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case allm.RoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Content))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}

// wrapError classifies an SDK error into the allm taxonomy.
func (t *Transport) wrapError(err error, model string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return allm.NewTimeout(t.provider, model)
	}
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return allm.NewTransportFailure(t.provider, err)
	}
	e := allm.NewProviderRejected(t.provider, apiErr.StatusCode, "", err)
	e.Model = model
	e.RetryIn = allm.ParseRetryAfter(apiErr.Response)
	return e
}
