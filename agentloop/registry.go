package agentloop

import (
	"log/slog"
	"sync"
)

// ToolRegistry manages tool registration and lookup. Registration happens at
// startup; lookups during runs are concurrent and lock-cheap.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewToolRegistry creates an empty ToolRegistry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering an ID that already exists is a no-op:
// the first registration wins and the duplicate is logged.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.ID]; exists {
		slog.Warn("duplicate tool registration ignored", "tool", tool.ID)
		return
	}
	r.tools[tool.ID] = tool
	r.order = append(r.order, tool.ID)
}

// Get returns a registered tool by ID.
func (r *ToolRegistry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[id]
	return t, ok
}

// Names returns the IDs of all registered tools in registration order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// All returns every registered tool in registration order.
func (r *ToolRegistry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tools[id])
	}
	return out
}

// Subset returns the named tools, in the given order, skipping unknown IDs.
// Used to scope a run to an agent's declared tool list.
func (r *ToolRegistry) Subset(ids ...string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(ids))
	for _, id := range ids {
		if t, ok := r.tools[id]; ok {
			out = append(out, t)
		}
	}
	return out
}
