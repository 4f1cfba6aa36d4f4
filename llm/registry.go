package llm

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Registry holds all registered providers, keyed case-insensitively by
// provider ID. It is populated once at startup and read-mostly afterwards;
// a deterministic stub is always present as the last-resort fallback.
//
// Presence in the registry does not imply the backend is reachable; health
// is evaluated lazily by callers, never cached here.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string // lower-cased IDs in registration order
	defaultID string
	fallback  []string
}

// NewRegistry creates a Registry with the stub provider pre-registered.
func NewRegistry() *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	r.Register(NewStub("ok"))
	return r
}

// Register adds a provider. Re-registering an ID (case-insensitive) replaces
// the previous instance and logs a warning; registration order is preserved
// for deterministic iteration.
func (r *Registry) Register(p Provider) {
	key := strings.ToLower(p.ID())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[key]; exists {
		slog.Warn("provider re-registered, replacing previous instance", "provider", key)
	} else {
		r.order = append(r.order, key)
	}
	r.providers[key] = p
}

// Get retrieves a provider by ID, case-insensitively.
func (r *Registry) Get(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[strings.ToLower(id)]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return p, nil
}

// SetDefault sets the default provider by ID.
func (r *Registry) SetDefault(id string) error {
	key := strings.ToLower(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[key]; !ok {
		return ErrProviderNotFound
	}
	r.defaultID = key
	return nil
}

// Default retrieves the configured default provider. When no default was
// configured, the first registered provider is used.
func (r *Registry) Default() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultID != "" {
		return r.providers[r.defaultID], nil
	}
	if len(r.order) > 0 {
		return r.providers[r.order[0]], nil
	}
	return nil, ErrProviderNotFound
}

// SetFallback declares the ordered fallback chain consulted by FirstHealthy.
func (r *Registry) SetFallback(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = r.fallback[:0]
	for _, id := range ids {
		r.fallback = append(r.fallback, strings.ToLower(id))
	}
}

// List returns all providers in registration order.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.providers[key])
	}
	return out
}

// FirstHealthy walks the configured fallback chain in declared order and
// returns the first provider whose IsHealthy probe answers true. With no
// chain configured it starts from the default. The stub, which is always
// healthy, terminates the search if listed; if nothing answers, the stub is
// returned anyway so callers always get a working provider.
func (r *Registry) FirstHealthy(ctx context.Context) Provider {
	r.mu.RLock()
	chain := make([]string, len(r.fallback))
	copy(chain, r.fallback)
	if len(chain) == 0 {
		if r.defaultID != "" {
			chain = append(chain, r.defaultID)
		}
		chain = append(chain, r.order...)
	}
	r.mu.RUnlock()

	for _, id := range chain {
		p, err := r.Get(id)
		if err != nil {
			continue
		}
		if p.IsHealthy(ctx) {
			return p
		}
	}
	stub, _ := r.Get(StubProviderID)
	return stub
}

// HealthCheck probes all providers concurrently and reports the ListModels
// error per provider ID; a nil entry means the backend answered.
func (r *Registry) HealthCheck(ctx context.Context) map[string]error {
	providers := r.List()

	results := make(map[string]error, len(providers))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range providers {
		g.Go(func() error {
			_, err := p.ListModels(ctx)
			mu.Lock()
			results[strings.ToLower(p.ID())] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
