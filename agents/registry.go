package agents

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// ErrNoAgent reports that no registered agent covers a capability request.
type ErrNoAgent struct {
	Capability string
	Language   string
}

func (e *ErrNoAgent) Error() string {
	if e.Language != "" {
		return fmt.Sprintf("no agent for capability %q (language %q)", e.Capability, e.Language)
	}
	return fmt.Sprintf("no agent for capability %q", e.Capability)
}

// Registry holds registered agents and routes tasks to them by capability.
type Registry struct {
	mu     sync.RWMutex
	agents []Agent
	index  map[string]int
}

// NewRegistry creates an empty agent Registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register adds an agent. A duplicate name replaces the previous agent in
// place, keeping its registration position, and logs a warning.
func (r *Registry) Register(a Agent) {
	name := a.Metadata().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, exists := r.index[name]; exists {
		slog.Warn("agent re-registered, replacing previous instance", "agent", name)
		r.agents[i] = a
		return
	}
	r.index[name] = len(r.agents)
	r.agents = append(r.agents, a)
}

// Get returns an agent by name.
func (r *Registry) Get(name string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.agents[i], true
}

// List returns all agents in registration order.
func (r *Registry) List() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, len(r.agents))
	copy(out, r.agents)
	return out
}

// Route selects the agent for a capability. Candidates must declare the
// capability and either be language-agnostic or cover the language; when
// providerOverride is set, agents pinned to a different provider are
// excluded. Among candidates the lowest Priority wins, ties resolved by
// registration order.
func (r *Registry) Route(capability, language, providerOverride string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best Agent
	bestPriority := 0
	for _, a := range r.agents {
		meta := a.Metadata()
		if !slices.Contains(meta.Capabilities, capability) {
			continue
		}
		if language != "" && len(meta.Languages) > 0 && !slices.Contains(meta.Languages, language) {
			continue
		}
		if providerOverride != "" && meta.Provider != "" && meta.Provider != providerOverride {
			continue
		}
		if best == nil || meta.Priority < bestPriority {
			best = a
			bestPriority = meta.Priority
		}
	}
	if best == nil {
		return nil, &ErrNoAgent{Capability: capability, Language: language}
	}
	return best, nil
}
