// Package session clears per-user caches when the signed-in user of a device
// changes.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fitforge/fitforge-backend/internal/auth"
	authdomain "github.com/fitforge/fitforge-backend/internal/auth/domain"
	"github.com/fitforge/fitforge-backend/internal/keystore"
	"github.com/fitforge/fitforge-backend/internal/logging"
)

const (
	KeyCurrentUser  = "sessionCurrentUser"
	KeyPreviousUser = "sessionPrevUser"
)

const followTimeout = 5 * time.Second

// Clearer removes every user-scoped cache of one user.
type Clearer interface {
	Clear(ctx context.Context, userID string)
}

// Invalidator tracks the current user of a device and clears the caches of
// the outgoing user on every identity change.
type Invalidator struct {
	kv     *keystore.Store
	caches Clearer
	logger *zap.Logger

	mu       sync.Mutex
	current  string
	previous string
}

// New restores the ids persisted by an earlier run. If the previous user's
// caches may not have been cleared, they are cleared again.
func New(ctx context.Context, kv *keystore.Store, caches Clearer, logger *zap.Logger) *Invalidator {
	inv := &Invalidator{
		kv:       kv,
		caches:   caches,
		logger:   logging.OrNop(logger),
		current:  keystore.Load(ctx, kv, KeyCurrentUser, ""),
		previous: keystore.Load(ctx, kv, KeyPreviousUser, ""),
	}
	if inv.previous != "" && inv.previous != inv.current {
		inv.caches.Clear(ctx, inv.previous)
	}
	return inv
}

func (i *Invalidator) Current() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.current
}

func (i *Invalidator) Previous() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.previous
}

// HandleUserChange switches the device to id, nil meaning signed out. It
// reports whether the user changed; repeating the same identity is a no-op.
func (i *Invalidator) HandleUserChange(ctx context.Context, id *authdomain.Identity) bool {
	next := ""
	if id != nil {
		next = id.UID
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if next == i.current {
		return false
	}

	outgoing := i.current
	if outgoing != "" {
		i.previous = outgoing
		i.kv.Save(ctx, KeyPreviousUser, outgoing)
		i.caches.Clear(ctx, outgoing)
	}
	i.setCurrent(ctx, next)

	i.logger.Info("session user changed",
		zap.String("from", outgoing),
		zap.String("to", next))
	return true
}

// Logout clears the current user's caches without waiting for the identity
// feed to report the sign-out.
func (i *Invalidator) Logout(ctx context.Context) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.current == "" {
		return
	}
	i.caches.Clear(ctx, i.current)
	i.previous = i.current
	i.kv.Save(ctx, KeyPreviousUser, i.current)
	i.setCurrent(ctx, "")
}

func (i *Invalidator) setCurrent(ctx context.Context, uid string) {
	i.current = uid
	if uid == "" {
		i.kv.Remove(ctx, KeyCurrentUser)
		return
	}
	i.kv.Save(ctx, KeyCurrentUser, uid)
}

// Follow applies every identity change published on feed, in publish
// order, until the returned function is called. Clearing runs under its own
// timeout so a canceled request cannot leave a switch half done.
func (i *Invalidator) Follow(feed *auth.IdentityFeed) func() {
	return feed.OnChange(func(id *authdomain.Identity) {
		ctx, cancel := context.WithTimeout(context.Background(), followTimeout)
		defer cancel()
		i.HandleUserChange(ctx, id)
	})
}
