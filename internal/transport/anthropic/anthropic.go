// Package anthropic implements the provider transport for Anthropic's
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/allmhq/allm"
)

// Transport implements allm.Transport over the Anthropic SDK. One SDK
// client is cached per API key, since keys are resolved per request.
type Transport struct {
	log *zap.Logger

	mu      sync.Mutex
	clients map[string]*anthropic.Client
}

// New creates the Anthropic transport.
func New(log *zap.Logger) *Transport {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transport{
		log:     log.Named("transport").With(zap.String("provider", allm.ProviderAnthropic.String())),
		clients: make(map[string]*anthropic.Client),
	}
}

func (t *Transport) client(apiKey string) *anthropic.Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.clients[apiKey]; ok {
		return c
	}
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	t.clients[apiKey] = &c
	return &c
}

// SendPrompt posts the conversation and concatenates the text blocks of
// the reply.
func (t *Transport) SendPrompt(ctx context.Context, apiKey string, req allm.PromptRequest) (string, error) {
	msgs, system := convertMessages(req.Messages)
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = allm.DefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  msgs,
	}
	if len(system) > 0 {
		params.System = system
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	resp, err := t.client(apiKey).Messages.New(ctx, params)
	if err != nil {
		return "", t.wrapError(err, req.Model)
	}

	content := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	if content == "" {
		return "", allm.NewMalformedResponse(allm.ProviderAnthropic, errors.New("response contained no text blocks"))
	}
	return content, nil
}

// ListModels fetches the available model identifiers.
func (t *Transport) ListModels(ctx context.Context, apiKey string) ([]string, error) {
	page, err := t.client(apiKey).Models.List(ctx, anthropic.ModelListParams{})
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

func convertMessages(messages []allm.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var result []anthropic.MessageParam
	var system []anthropic.TextBlockParam

	for _, msg := range messages {
		// The API rejects empty text blocks.
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case allm.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case allm.RoleAssistant:
			result = append(result, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return result, system
}

// wrapError classifies an SDK error into the allm taxonomy.
func (t *Transport) wrapError(err error, model string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return allm.NewTimeout(allm.ProviderAnthropic, model)
	}
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return allm.NewTransportFailure(allm.ProviderAnthropic, err)
	}
	e := allm.NewProviderRejected(allm.ProviderAnthropic, apiErr.StatusCode, "", err)
	e.Model = model
	e.RetryIn = allm.ParseRetryAfter(apiErr.Response)
	return e
}
