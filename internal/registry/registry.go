// Package registry provides action registration and lookup for the Dagger
// console. It manages a process-wide table of named zero-argument actions
// that the console invokes when the operator types a registered name.
package registry

import (
	"sort"
	"strings"
	"sync"

	"dagger/internal/logger"
)

// Action is a zero-argument callable reachable from the console by typing
// its registered name verbatim. A returned error propagates out of the
// console loop; actions are trusted setup code, not operator input.
type Action func() error

// Registry manages action registration and lookup.
// It provides thread-safe registration and retrieval of actions by name.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// New creates a new action registry with an empty action table.
func New() *Registry {
	return &Registry{
		actions: make(map[string]Action),
	}
}

// Register stores fn under name and returns fn unchanged, so call sites can
// wrap a function definition without disturbing it:
//
//	var screenshot = registry.Global().Register("screenshot", func() error { ... })
//
// A duplicate name overwrites the previous entry with a logged warning.
// Registering an empty name or a nil action is ignored with a warning.
func (r *Registry) Register(name string, fn Action) Action {
	if name == "" || fn == nil {
		logger.Warn("Ignoring invalid action registration", "action", name)
		return fn
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[name]; exists {
		logger.Warn("Overwriting previously registered action", "action", name)
	}
	r.actions[name] = fn
	return fn
}

// Lookup retrieves an action by name. Returns the action and true if found,
// or nil and false if no action is registered under that name.
func (r *Registry) Lookup(name string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, exists := r.actions[name]
	return fn, exists
}

// Names returns the sorted names of all registered actions.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered actions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions)
}

// Render produces a human-readable listing of all registered action names,
// one per line, in sorted order.
func (r *Registry) Render() string {
	names := r.Names()
	if len(names) == 0 {
		return "No registered actions."
	}
	var sb strings.Builder
	sb.WriteString("Registered actions:")
	for _, name := range names {
		sb.WriteString("\n\t")
		sb.WriteString(name)
	}
	return sb.String()
}

// global is the process-wide registry instance. Actions register themselves
// with it during host initialization and script loading, strictly before any
// console loop starts; the loop itself only reads.
var global = New()

// Global returns the process-wide registry instance.
func Global() *Registry {
	return global
}
