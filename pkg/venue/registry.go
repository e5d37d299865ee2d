package venue

import (
	"fmt"
	"sync"
)

// Registry manages the venues known to this node in a thread-safe manner.
// Keyed by fingerprint so that any caller-supplied descriptor resolves to the
// same entry the orders were posted against.
type Registry struct {
	mu     sync.RWMutex
	venues map[ID]*Venue
}

// NewRegistry creates an empty venue registry.
func NewRegistry() *Registry {
	return &Registry{venues: make(map[ID]*Venue)}
}

// Register adds a venue to the registry.
// Returns error if a venue with the same fingerprint already exists.
func (r *Registry) Register(v *Venue) error {
	if v == nil {
		return fmt.Errorf("cannot register nil venue")
	}
	if err := v.Validate(); err != nil {
		return err
	}

	id := v.Fingerprint()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.venues[id]; exists {
		return fmt.Errorf("venue %s already registered", id.Hex())
	}
	r.venues[id] = v
	return nil
}

// Get retrieves a venue by fingerprint.
func (r *Registry) Get(id ID) (*Venue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, exists := r.venues[id]
	if !exists {
		return nil, fmt.Errorf("venue %s not found", id.Hex())
	}
	return v, nil
}

// List returns all registered venues.
// Returns a copy of the slice to avoid concurrent modification.
func (r *Registry) List() []*Venue {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Venue, 0, len(r.venues))
	for _, v := range r.venues {
		out = append(out, v)
	}
	return out
}

// Exists checks if a venue is registered.
func (r *Registry) Exists(id ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.venues[id]
	return ok
}

// Count returns the total number of registered venues.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.venues)
}
