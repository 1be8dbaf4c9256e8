package engine

import "sync"

// Registry hands out one engine per subject. Constructing a second engine
// for the same subject would create a competing cooldown ledger, so the
// registry is the only sanctioned way to obtain engines in a process.
//
// It is an explicit factory owned by the composition root, not an ambient
// global: callers construct one and pass it by reference.
type Registry struct {
	mu      sync.Mutex
	build   func(subject string) *Engine
	engines map[string]*Engine
}

// NewRegistry creates a registry using build to construct missing engines.
func NewRegistry(build func(subject string) *Engine) *Registry {
	return &Registry{
		build:   build,
		engines: make(map[string]*Engine),
	}
}

// Get returns the engine for subject, constructing it on first use.
func (r *Registry) Get(subject string) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.engines[subject]; ok {
		return e
	}
	e := r.build(subject)
	r.engines[subject] = e
	return e
}

// Subjects lists the subjects with live engines.
func (r *Registry) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.engines))
	for s := range r.engines {
		out = append(out, s)
	}
	return out
}
