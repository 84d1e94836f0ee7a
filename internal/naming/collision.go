package naming

import "sync"

// Registry tracks which source file owns each identifier within one run.
// Two sources extracting to the same identifier would write the same
// outputs, so the second claim is refused. All methods are goroutine-safe.
type Registry struct {
	mu     sync.Mutex
	owners map[string]string // identifier → source path that owns it
}

// NewRegistry creates a ready-to-use registry.
func NewRegistry() *Registry {
	return &Registry{owners: make(map[string]string)}
}

// Claim records source as the owner of id. If id is unclaimed (or already
// owned by source) it returns ok=true. Otherwise it returns the current
// owner and ok=false.
func (r *Registry) Claim(id, source string) (owner string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, exists := r.owners[id]
	if !exists || owner == source {
		r.owners[id] = source
		return source, true
	}
	return owner, false
}
