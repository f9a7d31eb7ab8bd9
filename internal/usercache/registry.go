// Package usercache holds cached collections that belong to one user, such
// as favorites and generated recipes, and the registry that tells the rest of
// the system which keys are user-scoped.
package usercache

import (
	"sort"
	"sync"
)

// KeyFunc derives the storage key of a user-scoped cache for userID.
type KeyFunc func(userID string) string

// Registry records every user-scoped cache so that clearing a user's data
// removes exactly the keys that belong to them.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]KeyFunc
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]KeyFunc)}
}

// Register adds or replaces the cache called name.
func (r *Registry) Register(name string, fn KeyFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = fn
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KeysFor returns the keys of every registered cache for userID, sorted.
func (r *Registry) KeysFor(userID string) []string {
	if userID == "" {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.entries))
	for _, fn := range r.entries {
		keys = append(keys, fn(userID))
	}
	sort.Strings(keys)
	return keys
}
