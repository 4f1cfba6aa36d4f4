package config

import (
	"strings"
	"testing"

	"github.com/loomhq/loom/agentloop"
	"github.com/loomhq/loom/llm"
)

const validYAML = `
default_provider: openai
fallback: [openai, ollama, stub]
providers:
  openai:
    api_key: sk-test
    default_model: gpt-5.2
  ollama:
    base_url: http://localhost:11434
  azure:
    api_key: az-test
    endpoint: https://example.openai.azure.com/
    default_model: gpt-5.2
    deployments:
      gpt-5.2: prod-gpt52
agents:
  - name: coder
    capabilities: [code_generation]
    languages: [go]
    priority: 1
    provider: openai
    tools: [read_file, write_file]
  - name: reviewer
    capabilities: [code_review]
    priority: 2
`

func TestLoadFromReaderValid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultProvider != "openai" {
		t.Errorf("default_provider = %q", cfg.DefaultProvider)
	}
	if cfg.Providers.OpenAI == nil || cfg.Providers.OpenAI.APIKey != "sk-test" {
		t.Error("openai provider record not decoded")
	}
	if len(cfg.Agents) != 2 {
		t.Fatalf("got %d agents", len(cfg.Agents))
	}
	if cfg.Agents[0].Tools[0] != "read_file" {
		t.Errorf("agent tools = %v", cfg.Agents[0].Tools)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("default_provder: openai\n"))
	if err == nil {
		t.Fatal("misspelled field must be rejected")
	}
}

func TestValidateJoinsAllFailures(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`
default_provider: missing
providers:
  azure:
    api_key: x
agents:
  - name: ""
    capabilities: []
  - name: dup
    capabilities: [a]
  - name: dup
    capabilities: [a]
`))
	if err == nil {
		t.Fatal("invalid config must fail")
	}
	msg := err.Error()
	for _, want := range []string{
		"default_provider",
		"azure.endpoint",
		"deployments",
		"name is required",
		"duplicate",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("joined error missing %q in:\n%s", want, msg)
		}
	}
}

func TestValidateUnknownAgentProvider(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`
agents:
  - name: coder
    capabilities: [gen]
    provider: nonexistent
`))
	if err == nil || !strings.Contains(err.Error(), "nonexistent") {
		t.Fatalf("unknown agent provider must fail, got %v", err)
	}
}

func TestBuildRegistry(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatal(err)
	}
	reg, err := BuildRegistry(cfg)
	if err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"openai", "ollama", "azure", llm.StubProviderID} {
		if _, err := reg.Get(id); err != nil {
			t.Errorf("provider %q not registered: %v", id, err)
		}
	}
	p, err := reg.Default()
	if err != nil {
		t.Fatal(err)
	}
	if p.ID() != "openai" {
		t.Errorf("default = %q", p.ID())
	}
}

func TestBuildAgents(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatal(err)
	}
	providers, err := BuildRegistry(cfg)
	if err != nil {
		t.Fatal(err)
	}

	reg := BuildAgents(cfg, providers, agentloop.NewToolRegistry())
	if len(reg.List()) != 2 {
		t.Fatalf("got %d agents", len(reg.List()))
	}
	a, err := reg.Route("code_review", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if a.Metadata().Name != "reviewer" {
		t.Errorf("routed to %q", a.Metadata().Name)
	}
}
