package llm

// catalogEntry describes a model known ahead of time. The catalog backs
// alias resolution and the availability fast path for backends that cannot
// enumerate their own models.
type catalogEntry struct {
	ID            string
	Backend       string
	ContextWindow int
	Aliases       []string
}

// catalog is the built-in model table (mid 2026).
var catalog = []catalogEntry{
	// Anthropic (reached through the universal adapter)
	{ID: "claude-opus-4-6", Backend: "anthropic", ContextWindow: 200000, Aliases: []string{"opus", "claude-opus"}},
	{ID: "claude-sonnet-4-5", Backend: "anthropic", ContextWindow: 200000, Aliases: []string{"sonnet", "claude-sonnet"}},

	// OpenAI
	{ID: "gpt-5.2", Backend: "openai", ContextWindow: 1047576, Aliases: []string{"gpt5"}},
	{ID: "gpt-5.2-mini", Backend: "openai", ContextWindow: 1047576, Aliases: []string{"gpt5-mini"}},
	{ID: "gpt-4o-mini", Backend: "openai", ContextWindow: 128000, Aliases: []string{"4o-mini"}},

	// Groq-hosted open models
	{ID: "llama-3.3-70b-versatile", Backend: "groq", ContextWindow: 131072, Aliases: []string{"llama-70b"}},

	// Common local models
	{ID: "llama3.2", Backend: "ollama", ContextWindow: 131072, Aliases: []string{"llama3"}},
	{ID: "qwen2.5-coder", Backend: "ollama", ContextWindow: 32768, Aliases: []string{"qwen-coder"}},
}

// ResolveAlias maps a catalog alias to its canonical model ID. Unknown names
// pass through unchanged.
func ResolveAlias(name string) string {
	for i := range catalog {
		if catalog[i].ID == name {
			return name
		}
		for _, alias := range catalog[i].Aliases {
			if alias == name {
				return catalog[i].ID
			}
		}
	}
	return name
}

// CatalogHas reports whether the catalog knows the model (by ID or alias)
// for the given backend.
func CatalogHas(backend, model string) bool {
	for i := range catalog {
		if catalog[i].Backend != backend {
			continue
		}
		if catalog[i].ID == model {
			return true
		}
		for _, alias := range catalog[i].Aliases {
			if alias == model {
				return true
			}
		}
	}
	return false
}

// CatalogModels returns the catalog entries for a backend, all entries when
// backend is empty.
func CatalogModels(backend string) []ModelInfo {
	var out []ModelInfo
	for _, e := range catalog {
		if backend != "" && e.Backend != backend {
			continue
		}
		out = append(out, ModelInfo{ID: e.ID, Provider: e.Backend, ContextWindow: e.ContextWindow})
	}
	return out
}

// ContextWindow returns the known context window for a model, 0 if unknown.
func ContextWindow(model string) int {
	id := ResolveAlias(model)
	for i := range catalog {
		if catalog[i].ID == id {
			return catalog[i].ContextWindow
		}
	}
	return 0
}
