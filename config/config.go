// Package config loads orchestrator configuration from a YAML file and
// API keys from the environment. All fields have safe defaults so the
// library runs without any config file present.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/allmhq/allm"
)

// ProviderConfig tunes one provider's transport.
type ProviderConfig struct {
	Name        string `yaml:"name"`
	APIBase     string `yaml:"api_base,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs,omitempty"`
	Verbose     bool   `yaml:"verbose,omitempty"`
}

// FailoverConfig tunes candidate advancement.
type FailoverConfig struct {
	Enabled           bool    `yaml:"enabled"`
	MaxRetries        int     `yaml:"max_retries"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	InitialBackoffMS  int     `yaml:"initial_backoff_ms"`
}

// ServerConfig tunes the HTTP façade.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the full configuration document.
type Config struct {
	Providers []ProviderConfig `yaml:"providers"`
	Failover  FailoverConfig   `yaml:"failover"`
	Server    ServerConfig     `yaml:"server"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Failover: FailoverConfig{
			Enabled:           true,
			MaxRetries:        3,
			BackoffMultiplier: 2.0,
			InitialBackoffMS:  100,
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads the YAML file at path, layered over Default. An empty path
// returns Default unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Spacing converts the failover backoff settings into the minimum delay
// between consecutive attempts. Disabled failover means no delay.
func (f FailoverConfig) Spacing() time.Duration {
	if !f.Enabled || f.InitialBackoffMS <= 0 {
		return 0
	}
	return time.Duration(f.InitialBackoffMS) * time.Millisecond
}

// Provider returns the section for the named provider, if present.
func (c Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// APIKeyEnv returns the environment variable holding a provider's
// master key, e.g. ALLM_OPENAI_API_KEY.
func APIKeyEnv(provider allm.Provider) string {
	return "ALLM_" + strings.ToUpper(provider.String()) + "_API_KEY"
}

// APIKeysFromEnv collects master keys for every known provider from the
// environment. Providers without a key set are omitted.
func APIKeysFromEnv() []allm.APIKeySpec {
	var specs []allm.APIKeySpec
	for _, p := range allm.KnownProviders() {
		if key := os.Getenv(APIKeyEnv(p)); key != "" {
			specs = append(specs, allm.APIKeySpec{Provider: p, Key: key})
		}
	}
	return specs
}
