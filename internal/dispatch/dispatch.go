package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Function names the model is prompted against. The set is closed; anything
// else is rejected with ErrUnknownFunction.
const (
	FunctionManageEvents = "manage_events"
	FunctionManageTasks  = "manage_tasks"
	FunctionManageHabits = "manage_habits"
	FunctionManageGoals  = "manage_goals"
)

// Recoverable dispatch failures. Both abort a single call and leave the
// conversation untouched; callers decide how to render them.
var (
	ErrUnknownFunction    = errors.New("unknown function")
	ErrMalformedArguments = errors.New("malformed function arguments")
)

// Result is the outcome of a dispatched function call.
type Result struct {
	Function string
	Success  bool
	Message  string
	Details  map[string]any
}

// Manager executes planner actions for one function name. Implementations
// may be local CRUD facades or remote JSON-RPC clients.
type Manager interface {
	// Execute runs a single action with its parameter bag.
	Execute(ctx context.Context, action string, params map[string]any) (Result, error)

	// Close releases any resources held by the manager.
	Close() error

	// Name returns the manager identifier
	Name() string
}

// Registry routes function names to managers.
type Registry struct {
	managers map[string]Manager
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		managers: make(map[string]Manager),
	}
}

// Register binds a function name to a manager, replacing any previous binding.
func (r *Registry) Register(function string, m Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.managers[function] = m
}

// Get retrieves the manager bound to a function name.
func (r *Registry) Get(function string) (Manager, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.managers[function]
	return m, ok
}

// All returns all registered managers.
func (r *Registry) All() []Manager {
	r.mu.RLock()
	defer r.mu.RUnlock()
	managers := make([]Manager, 0, len(r.managers))
	for _, m := range r.managers {
		managers = append(managers, m)
	}
	return managers
}

// Count returns the number of registered managers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.managers)
}

// Close closes all registered managers.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for function, m := range r.managers {
		if err := m.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close manager for %s: %w", function, err)
		}
	}
	return firstErr
}
