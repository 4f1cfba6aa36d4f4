package agents

import (
	"context"
	"errors"
	"testing"
)

// fakeAgent is a metadata-only Agent for router tests.
type fakeAgent struct {
	meta Metadata
}

func (f *fakeAgent) Metadata() Metadata { return f.meta }
func (f *fakeAgent) Execute(_ context.Context, _ Context) (*Output, error) {
	return &Output{Content: f.meta.Name}, nil
}

func register(r *Registry, meta Metadata) {
	r.Register(&fakeAgent{meta: meta})
}

func TestRouteByCapability(t *testing.T) {
	r := NewRegistry()
	register(r, Metadata{Name: "reviewer", Capabilities: []string{"code_review"}})
	register(r, Metadata{Name: "generator", Capabilities: []string{"code_generation"}})

	a, err := r.Route("code_generation", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if a.Metadata().Name != "generator" {
		t.Errorf("routed to %q", a.Metadata().Name)
	}
}

func TestRouteLanguageFilter(t *testing.T) {
	r := NewRegistry()
	register(r, Metadata{Name: "go-only", Capabilities: []string{"gen"}, Languages: []string{"go"}})
	register(r, Metadata{Name: "any-lang", Capabilities: []string{"gen"}, Priority: 5})

	// Language-specific agent matches its language.
	a, err := r.Route("gen", "go", "")
	if err != nil {
		t.Fatal(err)
	}
	if a.Metadata().Name != "go-only" {
		t.Errorf("routed to %q, want the language-specific agent", a.Metadata().Name)
	}

	// Other languages fall through to the language-agnostic agent.
	a, err = r.Route("gen", "rust", "")
	if err != nil {
		t.Fatal(err)
	}
	if a.Metadata().Name != "any-lang" {
		t.Errorf("routed to %q, want the language-agnostic agent", a.Metadata().Name)
	}
}

func TestRouteLowestPriorityWins(t *testing.T) {
	r := NewRegistry()
	register(r, Metadata{Name: "backup", Capabilities: []string{"gen"}, Priority: 10})
	register(r, Metadata{Name: "primary", Capabilities: []string{"gen"}, Priority: 1})

	a, err := r.Route("gen", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if a.Metadata().Name != "primary" {
		t.Errorf("routed to %q, want lowest priority", a.Metadata().Name)
	}
}

func TestRouteTiesByRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	register(r, Metadata{Name: "first", Capabilities: []string{"gen"}, Priority: 1})
	register(r, Metadata{Name: "second", Capabilities: []string{"gen"}, Priority: 1})

	a, err := r.Route("gen", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if a.Metadata().Name != "first" {
		t.Errorf("tie broken wrong: %q", a.Metadata().Name)
	}
}

func TestRouteProviderOverride(t *testing.T) {
	r := NewRegistry()
	register(r, Metadata{Name: "pinned", Capabilities: []string{"gen"}, Provider: "openai", Priority: 1})
	register(r, Metadata{Name: "portable", Capabilities: []string{"gen"}, Priority: 2})

	a, err := r.Route("gen", "", "ollama")
	if err != nil {
		t.Fatal(err)
	}
	if a.Metadata().Name != "portable" {
		t.Errorf("provider-pinned agent should be excluded, got %q", a.Metadata().Name)
	}
}

func TestRouteNoMatch(t *testing.T) {
	r := NewRegistry()
	register(r, Metadata{Name: "gen", Capabilities: []string{"gen"}})

	_, err := r.Route("refactor", "go", "")
	var noAgent *ErrNoAgent
	if !errors.As(err, &noAgent) {
		t.Fatalf("got %v, want *ErrNoAgent", err)
	}
	if noAgent.Capability != "refactor" {
		t.Errorf("error missing capability, got %+v", noAgent)
	}
}

func TestRegisterReplacesDuplicate(t *testing.T) {
	r := NewRegistry()
	register(r, Metadata{Name: "dup", Capabilities: []string{"a"}})
	register(r, Metadata{Name: "other", Capabilities: []string{"b"}})
	register(r, Metadata{Name: "dup", Capabilities: []string{"c"}})

	if len(r.List()) != 2 {
		t.Fatalf("got %d agents, want 2", len(r.List()))
	}
	a, ok := r.Get("dup")
	if !ok {
		t.Fatal("agent missing")
	}
	if a.Metadata().Capabilities[0] != "c" {
		t.Error("duplicate registration did not replace")
	}
	// Replacement keeps the original position.
	if r.List()[0].Metadata().Name != "dup" {
		t.Error("replacement moved the agent")
	}
}
