package skill

import (
	"context"
	"sync"

	"goa.design/clue/log"
)

// Registry is the central catalog of executable skills. It stores factories
// keyed by skill ID and preserves registration order for stable listings.
// Registration is last-write-wins so applications can override a seeded skill
// with their own implementation.
//
// Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	order     []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a skill factory under the ID reported by the factory's
// Definition. Registering an already-known ID replaces the previous factory
// and keeps the original position in listings.
func (r *Registry) Register(ctx context.Context, f Factory) {
	def := f().Definition()

	r.mu.Lock()
	if _, known := r.factories[def.ID]; !known {
		r.order = append(r.order, def.ID)
	}
	r.factories[def.ID] = f
	r.mu.Unlock()

	log.Info(ctx, log.KV{K: "msg", V: "registered skill"}, log.KV{K: "skill_id", V: def.ID}, log.KV{K: "category", V: def.Category})
}

// Get returns a fresh instance of the skill with the given ID. The second
// return value reports whether the ID is registered.
func (r *Registry) Get(id string) (Skill, bool) {
	r.mu.RLock()
	f, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return f(), true
}

// Definition returns the definition of the skill with the given ID.
func (r *Registry) Definition(id string) (Definition, bool) {
	s, ok := r.Get(id)
	if !ok {
		return Definition{}, false
	}
	return s.Definition(), true
}

// ListAll returns the definitions of every registered skill in registration
// order.
func (r *Registry) ListAll() []Definition {
	r.mu.RLock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	r.mu.RUnlock()

	defs := make([]Definition, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.Get(id); ok {
			defs = append(defs, s.Definition())
		}
	}
	return defs
}

// ListByCategory returns the definitions of registered skills in the given
// category, in registration order.
func (r *Registry) ListByCategory(c Category) []Definition {
	var defs []Definition
	for _, d := range r.ListAll() {
		if d.Category == c {
			defs = append(defs, d)
		}
	}
	return defs
}
