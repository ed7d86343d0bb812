package saga

import (
	"fmt"
	"sync"
)

// Registry maps step names to executors. Definitions reference steps by
// name; the orchestrator resolves them here at run time.
type Registry struct {
	mu    sync.RWMutex
	execs map[string]Executor
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{execs: make(map[string]Executor)}
}

// Register binds an executor to a step name. Registering the same name twice
// is an error.
func (r *Registry) Register(name string, exec Executor) error {
	if name == "" || exec == nil {
		return fmt.Errorf("%w: name and executor required", ErrConfiguration)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.execs[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateStep, name)
	}
	r.execs[name] = exec
	return nil
}

// Lookup returns the executor registered under name.
func (r *Registry) Lookup(name string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.execs[name]
	return exec, ok
}
