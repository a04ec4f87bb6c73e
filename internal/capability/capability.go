// Package capability defines the unit of business logic the orchestration
// core invokes, and the registry that catalogs the units available to a
// process. The registry is populated once at startup and treated as
// immutable for the process lifetime.
package capability

import (
	"context"
	"fmt"

	"github.com/parleyhq/parley/internal/schema"
	"github.com/parleyhq/parley/pkg/models"
)

// Capability is a named, schema-described unit of business logic.
// Implementations must be safe for concurrent invocation: the core may run
// independent capabilities of the same turn in parallel.
type Capability interface {
	// Name returns the unique registry name.
	Name() string
	// Description documents the capability for the resolver's prompts.
	Description() string
	// InputSchema declares the parameter object Invoke accepts. The core
	// validates params against it before every invocation.
	InputSchema() *schema.Object
	// DependsOn lists capability names whose success this capability
	// requires within the same turn.
	DependsOn() []string
	// Invoke executes the capability. ctx carries the per-task timeout.
	Invoke(ctx context.Context, params map[string]any, inv *Invocation) (*models.InvocationResult, error)
}

// Invocation is the read-only context handed to every invocation. It is
// shared across concurrent invocations in a batch; capabilities must not
// mutate it. State changes go into the returned InvocationResult instead.
type Invocation struct {
	// SessionID identifies the owning session.
	SessionID string
	// TurnID identifies the turn being executed.
	TurnID string
	// State is a snapshot of the session's accumulated state at turn start.
	State map[string]any
	// Results holds the successful results of capabilities from earlier
	// batches, keyed by capability name. The scheduler writes it only
	// between batches, so reads during an invocation are race-free.
	Results map[string]*models.InvocationResult
}

// DependencyResult returns the successful result of a declared dependency,
// or nil if the dependency did not run or did not succeed.
func (inv *Invocation) DependencyResult(name string) *models.InvocationResult {
	if inv == nil || inv.Results == nil {
		return nil
	}
	return inv.Results[name]
}

// Registry is the catalog of invocable capabilities. Registration order is
// preserved; it is the tie-break order wherever determinism matters.
type Registry struct {
	ordered []Capability
	byName  map[string]Capability
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Capability)}
}

// Register adds a capability. Duplicate names are a configuration bug.
func (r *Registry) Register(c Capability) error {
	name := c.Name()
	if name == "" {
		return fmt.Errorf("capability has empty name")
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("capability %q already registered", name)
	}
	r.byName[name] = c
	r.ordered = append(r.ordered, c)
	return nil
}

// MustRegister registers a capability and panics on error. Intended for
// static startup wiring.
func (r *Registry) MustRegister(c Capability) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

// Get returns the capability with the given name, or nil.
func (r *Registry) Get(name string) Capability {
	return r.byName[name]
}

// Names returns registered capability names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ordered))
	for _, c := range r.ordered {
		names = append(names, c.Name())
	}
	return names
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	return len(r.ordered)
}
