package usercache

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitforge/fitforge-backend/internal/keystore"
)

func setupCache(t *testing.T) (*Cache, *keystore.Store, *Registry) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := keystore.New(client, "fitforge:dev:test")
	registry := NewRegistry()
	return NewCache(store, registry), store, registry
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("b", func(uid string) string { return "b_" + uid })
	r.Register("a", func(uid string) string { return "a_" + uid })

	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.Equal(t, []string{"a_u1", "b_u1"}, r.KeysFor("u1"))
	assert.Nil(t, r.KeysFor(""))
}

func TestNewCache_RegistersScopedCollections(t *testing.T) {
	_, _, registry := setupCache(t)

	assert.Equal(t, []string{"generated_programs", "generated_recipes", "nutrition_favorites"}, registry.Names())
	assert.Equal(t, []string{
		"generated_programs_userA",
		"generated_recipes_userA",
		"nutrition_favorites_userA",
	}, registry.KeysFor("userA"))
}

func TestLookup(t *testing.T) {
	c, err := Lookup("nutrition_public_recipes")
	require.NoError(t, err)
	assert.False(t, c.Scoped)
	assert.Equal(t, "nutrition_public_recipes", c.Key("userA"))

	_, err = Lookup("secrets")
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestCache_PutGetClear(t *testing.T) {
	cache, store, _ := setupCache(t)
	ctx := context.Background()
	items := json.RawMessage(`["r1","r2"]`)

	require.True(t, cache.Put(ctx, Favorites, "userA", items))
	require.True(t, cache.Put(ctx, GeneratedRecipes, "userB", json.RawMessage(`[{"id":"x"}]`)))
	require.True(t, cache.Put(ctx, PublicRecipes, "", json.RawMessage(`[1]`)))

	assert.JSONEq(t, `["r1","r2"]`, string(cache.Get(ctx, Favorites, "userA")))
	assert.Nil(t, cache.Get(ctx, Favorites, "userB"))
	assert.ElementsMatch(t, []string{"userA", "userB"}, cache.KnownUsers(ctx))

	cache.Clear(ctx, "userA")
	assert.False(t, store.Exists(ctx, "nutrition_favorites_userA"))
	assert.True(t, store.Exists(ctx, "generated_recipes_userB"))
	assert.True(t, store.Exists(ctx, "nutrition_public_recipes"))
	assert.Equal(t, []string{"userB"}, cache.KnownUsers(ctx))

	cache.ClearAll(ctx)
	assert.False(t, store.Exists(ctx, "generated_recipes_userB"))
	assert.True(t, store.Exists(ctx, "nutrition_public_recipes"))
	assert.Empty(t, cache.KnownUsers(ctx))
}

func TestCache_PutScopedRequiresUser(t *testing.T) {
	cache, _, _ := setupCache(t)
	assert.False(t, cache.Put(context.Background(), Favorites, "", json.RawMessage(`[]`)))
}
