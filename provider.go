package allm

import "strings"

// Provider identifies an LLM provider backend.
type Provider string

// String returns the provider identifier.
func (p Provider) String() string { return string(p) }

// Supported providers. The set is closed: adding a provider means adding
// one Transport implementation plus one registry entry in the backend.
const (
	ProviderMistral   Provider = "mistral"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
)

// DefaultProvider is used when a request pins no model and no fallback
// preference is configured.
const DefaultProvider = ProviderMistral

// DefaultModel is the model used when a request names none.
const DefaultModel = "mistral-small-latest"

// KnownProviders returns all supported providers in registry order.
func KnownProviders() []Provider {
	return []Provider{ProviderMistral, ProviderOpenAI, ProviderAnthropic, ProviderGoogle}
}

// ParseProvider validates a provider identifier, case-insensitively.
func ParseProvider(s string) (Provider, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, p := range KnownProviders() {
		if string(p) == name {
			return p, true
		}
	}
	return "", false
}

// Candidate is a (provider, model) pair eligible for one failover attempt.
type Candidate struct {
	Provider Provider
	Model    string
}

// String returns "provider/model".
func (c Candidate) String() string {
	return c.Provider.String() + "/" + c.Model
}

// APIKeySpec configures one credential entry. An empty Model sets the
// provider's master key. An empty Key deletes the entry.
type APIKeySpec struct {
	Provider Provider
	Model    string
	Key      string
}

// modelPrefixes maps model-name prefixes to their owning provider.
// Model identifiers are opaque strings; this covers the naming schemes
// the supported providers actually use.
var modelPrefixes = []struct {
	prefix   string
	provider Provider
}{
	{"claude", ProviderAnthropic},
	{"gpt", ProviderOpenAI},
	{"chatgpt", ProviderOpenAI},
	{"o1", ProviderOpenAI},
	{"o3", ProviderOpenAI},
	{"o4", ProviderOpenAI},
	{"gemini", ProviderGoogle},
	{"gemma", ProviderGoogle},
	{"imagen", ProviderGoogle},
	{"mistral", ProviderMistral},
	{"ministral", ProviderMistral},
	{"magistral", ProviderMistral},
	{"codestral", ProviderMistral},
	{"devstral", ProviderMistral},
	{"pixtral", ProviderMistral},
	{"open-mistral", ProviderMistral},
	{"open-mixtral", ProviderMistral},
}

// ProviderForModel resolves the provider that owns a model identifier.
// Returns false when the identifier matches no known naming scheme.
func ProviderForModel(model string) (Provider, bool) {
	m := strings.ToLower(strings.TrimSpace(model))
	for _, e := range modelPrefixes {
		if strings.HasPrefix(m, e.prefix) {
			return e.provider, true
		}
	}
	return "", false
}
