package formcache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitforge/fitforge-backend/internal/keystore"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func setupCache(t *testing.T) (*Cache, *keystore.Store, *fakeClock) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &fakeClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	kv := keystore.New(client, "fitforge:dev:forms", keystore.WithClock(clock.Now))
	return New(kv, nil), kv, clock
}

func TestCache_SaveLoad(t *testing.T) {
	cache, _, clock := setupCache(t)
	ctx := context.Background()

	require.True(t, cache.SaveFormData(ctx, "profile-form", map[string]any{"firstName": "Ana", "age": 30}))
	require.True(t, cache.SaveFormData(ctx, "nutrition-form", map[string]any{"dietType": "vegan"}))

	got := cache.LoadFormData(ctx, "profile-form")
	assert.Equal(t, map[string]any{"firstName": "Ana", "age": float64(30)}, got)

	at, ok := cache.SavedAt(ctx, "profile-form")
	require.True(t, ok)
	assert.Equal(t, clock.Now().UnixMilli(), at.UnixMilli())

	assert.Equal(t, map[string]any{}, cache.LoadFormData(ctx, "unknown"))
}

func TestCache_SaveReplacesDraft(t *testing.T) {
	cache, _, _ := setupCache(t)
	ctx := context.Background()

	cache.SaveFormData(ctx, "f", map[string]any{"a": "1", "b": "2"})
	cache.SaveFormData(ctx, "f", map[string]any{"a": "3"})

	assert.Equal(t, map[string]any{"a": "3"}, cache.LoadFormData(ctx, "f"))
}

func TestCache_ClearFormData(t *testing.T) {
	cache, _, _ := setupCache(t)
	ctx := context.Background()

	cache.SaveFormData(ctx, "a", map[string]any{"x": true})
	cache.SaveFormData(ctx, "b", map[string]any{"y": true})

	require.True(t, cache.ClearFormData(ctx, "a"))
	require.True(t, cache.ClearFormData(ctx, "missing"))
	assert.Empty(t, cache.LoadFormData(ctx, "a"))
	assert.Equal(t, map[string]any{"y": true}, cache.LoadFormData(ctx, "b"))
}

func TestCache_CleanExpiredFormData(t *testing.T) {
	cache, kv, clock := setupCache(t)
	ctx := context.Background()

	cache.SaveFormData(ctx, "old", map[string]any{"v": "old"})
	clock.Advance(2 * time.Hour)
	cache.SaveFormData(ctx, "recent", map[string]any{"v": "recent", "nested": map[string]any{"k": []any{"a", float64(1)}}})
	before := keystore.Load[map[string]map[string]any](ctx, kv, Key, nil)["recent"]

	clock.Advance(ExpireAfter - time.Hour)
	assert.Equal(t, 1, cache.CleanExpiredFormData(ctx))

	assert.Empty(t, cache.LoadFormData(ctx, "old"))
	after := keystore.Load[map[string]map[string]any](ctx, kv, Key, nil)["recent"]
	assert.Equal(t, before, after)

	assert.Equal(t, 0, cache.CleanExpiredFormData(ctx))
}

func TestCache_CleanDropsUnstampedDrafts(t *testing.T) {
	cache, kv, _ := setupCache(t)
	ctx := context.Background()

	require.True(t, kv.Save(ctx, Key, map[string]map[string]any{"legacy": {"v": 1}}))
	assert.Equal(t, 1, cache.CleanExpiredFormData(ctx))
}

func TestCache_SweepFromAnotherProcessKeepsNewDrafts(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	clock := &fakeClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}

	// the api and the worker each hold their own connection and Cache
	newCache := func() *Cache {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return New(keystore.New(client, "fitforge:dev:forms", keystore.WithClock(clock.Now)), nil)
	}
	api, worker := newCache(), newCache()
	ctx := context.Background()

	require.True(t, api.SaveFormData(ctx, "stale", map[string]any{"step": 1}))
	clock.Advance(ExpireAfter + time.Minute)

	const drafts = 20
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < drafts; i++ {
			assert.True(t, api.SaveFormData(ctx, fmt.Sprintf("form-%d", i), map[string]any{"i": i}))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < drafts; i++ {
			worker.CleanExpiredFormData(ctx)
		}
	}()
	wg.Wait()
	worker.CleanExpiredFormData(ctx)

	_, ok := api.SavedAt(ctx, "stale")
	assert.False(t, ok)
	for i := 0; i < drafts; i++ {
		assert.Equal(t, map[string]any{"i": float64(i)}, api.LoadFormData(ctx, fmt.Sprintf("form-%d", i)))
	}
}
