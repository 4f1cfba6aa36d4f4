package config

import (
	"fmt"

	"github.com/loomhq/loom/agentloop"
	"github.com/loomhq/loom/agents"
	"github.com/loomhq/loom/llm"
)

// BuildRegistry constructs an llm.Registry from the configuration: every
// configured backend is registered alongside the always-present stub, and
// the default and fallback chain are applied.
func BuildRegistry(cfg *Config) (*llm.Registry, error) {
	reg := llm.NewRegistry()

	if c := cfg.Providers.OpenAI; c != nil {
		reg.Register(llm.NewOpenAI(llm.OpenAIOptions{
			APIKey:         c.APIKey,
			BaseURL:        c.BaseURL,
			DefaultModel:   c.DefaultModel,
			TimeoutSeconds: c.TimeoutSeconds,
		}))
	}
	if c := cfg.Providers.Azure; c != nil {
		reg.Register(llm.NewAzure(llm.AzureOptions{
			APIKey:         c.APIKey,
			Endpoint:       c.Endpoint,
			Deployments:    c.Deployments,
			DefaultModel:   c.DefaultModel,
			TimeoutSeconds: c.TimeoutSeconds,
		}))
	}
	if c := cfg.Providers.Ollama; c != nil {
		p, err := llm.NewOllama(llm.OllamaOptions{
			BaseURL:        c.BaseURL,
			DefaultModel:   c.DefaultModel,
			TimeoutSeconds: c.TimeoutSeconds,
		})
		if err != nil {
			return nil, fmt.Errorf("config: ollama provider: %w", err)
		}
		reg.Register(p)
	}
	if c := cfg.Providers.Gollm; c != nil {
		p, err := llm.NewGollm(llm.GollmOptions{
			Backend:        c.Backend,
			APIKey:         c.APIKey,
			DefaultModel:   c.DefaultModel,
			MaxTokens:      c.MaxTokens,
			TimeoutSeconds: c.TimeoutSeconds,
		})
		if err != nil {
			return nil, fmt.Errorf("config: gollm provider: %w", err)
		}
		reg.Register(p)
	}

	if cfg.DefaultProvider != "" {
		if err := reg.SetDefault(cfg.DefaultProvider); err != nil {
			return nil, fmt.Errorf("config: default provider %q: %w", cfg.DefaultProvider, err)
		}
	}
	if len(cfg.Fallback) > 0 {
		reg.SetFallback(cfg.Fallback...)
	}
	return reg, nil
}

// BuildAgents constructs the agent registry from the configuration, binding
// each declared agent to the shared provider and tool registries.
func BuildAgents(cfg *Config, providers *llm.Registry, tools *agentloop.ToolRegistry) *agents.Registry {
	reg := agents.NewRegistry()
	for _, a := range cfg.Agents {
		reg.Register(agents.NewLoopAgent(agents.Metadata{
			Name:         a.Name,
			Description:  a.Description,
			Capabilities: a.Capabilities,
			Languages:    a.Languages,
			Priority:     a.Priority,
			Provider:     a.Provider,
			Model:        a.Model,
			Temperature:  a.Temperature,
			MaxSteps:     a.MaxSteps,
			Tools:        a.Tools,
			Tags:         a.Tags,
		}, providers, tools))
	}
	return reg
}
