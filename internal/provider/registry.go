package provider

import (
	"context"
	"sync"
	"time"
)

// Registry holds all registered adapters keyed by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[ProviderName]Checker
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[ProviderName]Checker),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name, or nil if not registered.
func (r *Registry) Get(name ProviderName) Checker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// All returns all registered providers in a stable order.
func (r *Registry) All() []Checker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Checker
	for _, name := range AllProviderNames() {
		if p, ok := r.providers[name]; ok {
			result = append(result, p)
		}
	}
	return result
}

// Status is the outcome of a connection test for one provider.
type Status struct {
	Name         ProviderName `json:"name"`
	DisplayName  string       `json:"display_name"`
	RequiresAuth bool         `json:"requires_auth"`
	OK           bool         `json:"ok"`
	Error        string       `json:"error,omitempty"`
	Latency      string       `json:"latency"`
}

// TestAll runs TestConnection on every registered provider in order.
func (r *Registry) TestAll(ctx context.Context) []Status {
	providers := r.All()
	out := make([]Status, 0, len(providers))
	for _, p := range providers {
		start := time.Now()
		err := p.TestConnection(ctx)
		s := Status{
			Name:         p.Name(),
			DisplayName:  p.Name().DisplayName(),
			RequiresAuth: p.RequiresAuth(),
			OK:           err == nil,
			Latency:      time.Since(start).Round(time.Millisecond).String(),
		}
		if err != nil {
			s.Error = err.Error()
		}
		out = append(out, s)
	}
	return out
}
