package bayes

import (
	"fmt"
	"sync"
)

// Registry holds one Engine per rating model.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]*Engine
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]*Engine)}
}

// Register builds the engine of a rating model. Settings are merged over the
// defaults, or over the current settings when the model is registered again.
func (r *Registry) Register(model RatingModel, settings Settings, deps Deps) (*Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	base := DefaultSettings()
	if existing, ok := r.engines[model.Name]; ok {
		base = existing.Settings()
	}

	engine, err := New(model, base.Merge(settings), deps)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", model.Name, err)
	}
	r.engines[model.Name] = engine
	return engine, nil
}

// Engine returns the engine registered for a rating model.
func (r *Registry) Engine(model string) (*Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	engine, ok := r.engines[model]
	return engine, ok
}
