package scraper

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps platform names to controllers. It is created and owned
// by the process entry point and passed to whatever needs a controller.
type Registry struct {
	mu          sync.RWMutex
	controllers map[string]*Controller
	fallback    string
}

// NewRegistry returns an empty registry. The first registered platform
// becomes the default.
func NewRegistry() *Registry {
	return &Registry{controllers: make(map[string]*Controller)}
}

// Register adds a controller under name.
func (r *Registry) Register(name string, c *Controller) error {
	if name == "" {
		return fmt.Errorf("platform name is required")
	}
	if c == nil {
		return fmt.Errorf("platform %q: controller is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.controllers[name]; ok {
		return fmt.Errorf("platform %q already registered", name)
	}
	r.controllers[name] = c
	if r.fallback == "" {
		r.fallback = name
	}
	return nil
}

// Lookup returns the controller for name, or the default when name is empty.
func (r *Registry) Lookup(name string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.fallback
	}
	c, ok := r.controllers[name]
	return c, ok
}

// Names lists registered platforms in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.controllers))
	for name := range r.controllers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
