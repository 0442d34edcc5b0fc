package agents

import (
	"context"
	"sync"

	"finsight/internal/invoker"
	"finsight/pkg/errors"
)

// Capability is an invocable analysis unit. Implementations are safe for
// concurrent use: their only state is a static prompt template.
type Capability interface {
	// ID returns the agent identifier.
	ID() string

	// Analyze runs the agent's analysis over collected financial data
	// and returns a normalized result. It never returns an error; model
	// and parse failures degrade into the result body.
	Analyze(ctx context.Context, data map[string]any) invoker.Result
}

// Registry holds the capabilities available to the orchestrator. Built
// once at startup and read-only afterwards, so concurrent reads during
// workflow runs are safe.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[string]Capability
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{
		capabilities: make(map[string]Capability),
	}
}

// Register adds a capability. Registering a duplicate ID is an error.
func (r *Registry) Register(c Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.capabilities[c.ID()]; exists {
		return errors.Wrapf(errors.ErrInvalidInput, "capability %s already registered", c.ID())
	}
	r.capabilities[c.ID()] = c
	return nil
}

// Get returns the capability with the given ID.
func (r *Registry) Get(id string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.capabilities[id]
	return c, ok
}

// IDs returns the registered capability identifiers.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.capabilities))
	for id := range r.capabilities {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.capabilities)
}
