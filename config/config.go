// Package config loads and validates the runtime's YAML configuration and
// builds the provider and agent registries from it.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Config is the root of the YAML configuration.
type Config struct {
	// DefaultProvider names the provider used when an agent does not declare
	// one and no override is given.
	DefaultProvider string `yaml:"default_provider"`

	// Fallback is the ordered provider chain consulted when the preferred
	// backend is unhealthy.
	Fallback []string `yaml:"fallback"`

	Providers ProvidersConfig `yaml:"providers"`
	Agents    []AgentConfig   `yaml:"agents"`
}

// ProvidersConfig holds the per-backend option records. A nil record means
// the backend is not configured and will not be registered.
type ProvidersConfig struct {
	OpenAI *OpenAIConfig `yaml:"openai"`
	Azure  *AzureConfig  `yaml:"azure"`
	Ollama *OllamaConfig `yaml:"ollama"`
	Gollm  *GollmConfig  `yaml:"gollm"`
}

type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	DefaultModel   string `yaml:"default_model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type AzureConfig struct {
	APIKey         string            `yaml:"api_key"`
	Endpoint       string            `yaml:"endpoint"`
	Deployments    map[string]string `yaml:"deployments"`
	DefaultModel   string            `yaml:"default_model"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
}

type OllamaConfig struct {
	BaseURL        string `yaml:"base_url"`
	DefaultModel   string `yaml:"default_model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type GollmConfig struct {
	Backend        string `yaml:"backend"`
	APIKey         string `yaml:"api_key"`
	DefaultModel   string `yaml:"default_model"`
	MaxTokens      int    `yaml:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// AgentConfig declares one agent.
type AgentConfig struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Capabilities []string `yaml:"capabilities"`
	Languages    []string `yaml:"languages"`
	Priority     int      `yaml:"priority"`
	Provider     string   `yaml:"provider"`
	Model        string   `yaml:"model"`
	Temperature  float64  `yaml:"temperature"`
	MaxSteps     int      `yaml:"max_steps"`
	Tools        []string `yaml:"tools"`
	Tags         []string `yaml:"tags"`
}

// Load reads the YAML configuration file at path and returns a validated
// Config.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Unknown fields are rejected. Useful in tests where configs are constructed
// from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	configured := cfg.configuredProviderIDs()

	if cfg.DefaultProvider != "" && !slices.Contains(configured, cfg.DefaultProvider) {
		errs = append(errs, fmt.Errorf("default_provider %q is not configured; configured: %v", cfg.DefaultProvider, configured))
	}
	for _, id := range cfg.Fallback {
		if id != "stub" && !slices.Contains(configured, id) {
			errs = append(errs, fmt.Errorf("fallback entry %q is not configured", id))
		}
	}

	if cfg.Providers.Azure != nil {
		if cfg.Providers.Azure.Endpoint == "" {
			errs = append(errs, errors.New("providers.azure.endpoint is required"))
		}
		if len(cfg.Providers.Azure.Deployments) == 0 {
			errs = append(errs, errors.New("providers.azure.deployments must list at least one deployment"))
		}
	}
	if cfg.Providers.Gollm != nil && cfg.Providers.Gollm.Backend == "" {
		errs = append(errs, errors.New("providers.gollm.backend is required"))
	}

	namesSeen := make(map[string]int, len(cfg.Agents))
	for i, agent := range cfg.Agents {
		prefix := fmt.Sprintf("agents[%d]", i)
		if agent.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := namesSeen[agent.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of agents[%d]", prefix, agent.Name, prev))
			}
			namesSeen[agent.Name] = i
		}
		if len(agent.Capabilities) == 0 {
			errs = append(errs, fmt.Errorf("%s.capabilities must list at least one capability", prefix))
		}
		if agent.Provider != "" && agent.Provider != "stub" && !slices.Contains(configured, agent.Provider) {
			errs = append(errs, fmt.Errorf("%s.provider %q is not configured", prefix, agent.Provider))
		}
		if agent.MaxSteps < 0 {
			errs = append(errs, fmt.Errorf("%s.max_steps must not be negative", prefix))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) configuredProviderIDs() []string {
	var ids []string
	if c.Providers.OpenAI != nil {
		ids = append(ids, "openai")
	}
	if c.Providers.Azure != nil {
		ids = append(ids, "azure")
	}
	if c.Providers.Ollama != nil {
		ids = append(ids, "ollama")
	}
	if c.Providers.Gollm != nil {
		ids = append(ids, "gollm:"+c.Providers.Gollm.Backend)
	}
	return ids
}
