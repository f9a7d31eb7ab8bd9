package auth

import (
	"sync"

	"github.com/fitforge/fitforge-backend/internal/auth/domain"
)

// IdentityFeed holds the authenticated identity of one device and notifies
// listeners of each change. Repeated identical identities are dropped.
type IdentityFeed struct {
	// publishing serializes Publish so listeners see changes in order
	publishing sync.Mutex

	mu        sync.Mutex
	current   *domain.Identity
	listeners map[int]func(*domain.Identity)
	nextID    int
}

func NewIdentityFeed() *IdentityFeed {
	return &IdentityFeed{listeners: make(map[int]func(*domain.Identity))}
}

// CurrentUser returns the last published identity, nil when signed out.
func (f *IdentityFeed) CurrentUser() *domain.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil
	}
	id := *f.current
	return &id
}

// Publish records id as the current identity and calls every listener
// before returning. It reports whether the identity changed. A nil id means
// signed out.
func (f *IdentityFeed) Publish(id *domain.Identity) bool {
	f.publishing.Lock()
	defer f.publishing.Unlock()

	f.mu.Lock()
	if domain.Same(f.current, id) {
		f.mu.Unlock()
		return false
	}
	if id != nil {
		cp := *id
		id = &cp
	}
	f.current = id
	listeners := make([]func(*domain.Identity), 0, len(f.listeners))
	for _, fn := range f.listeners {
		listeners = append(listeners, fn)
	}
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(copyIdentity(id))
	}
	return true
}

// OnChange registers fn to run on every identity change, on the publishing
// goroutine. The returned function removes it.
func (f *IdentityFeed) OnChange(fn func(*domain.Identity)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	f.listeners[id] = fn

	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func copyIdentity(id *domain.Identity) *domain.Identity {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}
