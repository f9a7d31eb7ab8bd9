package usercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/fitforge/fitforge-backend/internal/keystore"
)

const knownUsersKey = "knownUsers"

var ErrUnknownCollection = errors.New("unknown cache collection")

// Collection describes one cached collection. Scoped collections are stored
// once per user and are cleared when that user leaves the device.
type Collection struct {
	Name   string
	Scoped bool
	TTL    time.Duration
}

var (
	Favorites         = Collection{Name: "nutrition_favorites", Scoped: true}
	GeneratedRecipes  = Collection{Name: "generated_recipes", Scoped: true, TTL: 7 * 24 * time.Hour}
	GeneratedPrograms = Collection{Name: "generated_programs", Scoped: true, TTL: 7 * 24 * time.Hour}
	PublicRecipes     = Collection{Name: "nutrition_public_recipes", TTL: 24 * time.Hour}
)

var collections = []Collection{Favorites, GeneratedRecipes, GeneratedPrograms, PublicRecipes}

// Lookup finds a collection by name.
func Lookup(name string) (Collection, error) {
	for _, c := range collections {
		if c.Name == name {
			return c, nil
		}
	}
	return Collection{}, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
}

// Key returns the storage key of c for userID. userID is ignored for public
// collections.
func (c Collection) Key(userID string) string {
	if !c.Scoped {
		return c.Name
	}
	return fmt.Sprintf("%s_%s", c.Name, userID)
}

type Cache struct {
	store    *keystore.Store
	registry *Registry
}

// NewCache registers every scoped collection with registry.
func NewCache(store *keystore.Store, registry *Registry) *Cache {
	for _, c := range collections {
		if c.Scoped {
			registry.Register(c.Name, c.Key)
		}
	}
	return &Cache{store: store, registry: registry}
}

// Get returns the cached items, or nil when nothing is cached.
func (c *Cache) Get(ctx context.Context, col Collection, userID string) json.RawMessage {
	return keystore.Load[json.RawMessage](ctx, c.store, col.Key(userID), nil)
}

func (c *Cache) Put(ctx context.Context, col Collection, userID string, items json.RawMessage) bool {
	if col.Scoped && userID == "" {
		return false
	}
	var opts []keystore.SaveOption
	if col.TTL > 0 {
		opts = append(opts, keystore.WithTTL(col.TTL))
	}
	if !c.store.Save(ctx, col.Key(userID), items, opts...) {
		return false
	}
	if col.Scoped {
		c.rememberUser(ctx, userID)
	}
	return true
}

// Clear removes every registered user-scoped key for userID.
func (c *Cache) Clear(ctx context.Context, userID string) {
	keys := c.registry.KeysFor(userID)
	if len(keys) == 0 {
		return
	}
	c.store.Remove(ctx, keys...)
	c.forgetUser(ctx, userID)
}

// ClearAll removes the scoped caches of every user seen on this device.
func (c *Cache) ClearAll(ctx context.Context) {
	for _, uid := range c.KnownUsers(ctx) {
		c.store.Remove(ctx, c.registry.KeysFor(uid)...)
	}
	c.store.Remove(ctx, knownUsersKey)
}

// KnownUsers lists the users that have scoped data cached on this device.
func (c *Cache) KnownUsers(ctx context.Context) []string {
	return keystore.Load[[]string](ctx, c.store, knownUsersKey, nil)
}

func (c *Cache) rememberUser(ctx context.Context, userID string) {
	users := c.KnownUsers(ctx)
	if slices.Contains(users, userID) {
		return
	}
	c.store.Save(ctx, knownUsersKey, append(users, userID))
}

func (c *Cache) forgetUser(ctx context.Context, userID string) {
	users := c.KnownUsers(ctx)
	idx := slices.Index(users, userID)
	if idx < 0 {
		return
	}
	c.store.Save(ctx, knownUsersKey, slices.Delete(users, idx, idx+1))
}
