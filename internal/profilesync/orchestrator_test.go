package profilesync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	authdomain "github.com/fitforge/fitforge-backend/internal/auth/domain"
	"github.com/fitforge/fitforge-backend/internal/keystore"
	"github.com/fitforge/fitforge-backend/internal/profiles/domain"
	"github.com/fitforge/fitforge-backend/internal/profiles/localstore"
	"github.com/fitforge/fitforge-backend/internal/remote"
	"github.com/fitforge/fitforge-backend/internal/usercache"
)

var syncTime = time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)

// gatedStore counts reads of the users collection and can hold or fail them.
type gatedStore struct {
	*remote.MemoryStore
	reads   atomic.Int32
	entered chan struct{}
	release chan struct{}
	failAll bool
	once    sync.Once
}

func (g *gatedStore) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	if g.failAll {
		return nil, errors.New("network down")
	}
	if collection == remote.UsersCollection {
		g.reads.Add(1)
		if g.release != nil {
			g.once.Do(func() { close(g.entered) })
			<-g.release
		}
	}
	return g.MemoryStore.Get(ctx, collection, id)
}

type fixture struct {
	orch   *Orchestrator
	local  *localstore.Store
	store  *gatedStore
	caches *usercache.Cache
}

func setup(t *testing.T) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	kv := keystore.New(client, "fitforge:dev:test", keystore.WithClock(func() time.Time { return syncTime }))
	caches := usercache.NewCache(kv, usercache.NewRegistry())
	local := localstore.New(kv, caches, "1.0.0", nil)

	store := &gatedStore{MemoryStore: remote.NewMemoryStore()}
	svc := remote.NewProfileService(store,
		remote.WithRetry(time.Millisecond, 3),
		remote.WithWriteRate(rate.Inf, 0),
		remote.WithClock(func() time.Time { return syncTime }),
	).WithMirror(local)

	orch := New(local, svc, WithClock(func() time.Time { return syncTime }))
	return &fixture{orch: orch, local: local, store: store, caches: caches}
}

func strPtr(s string) *string { return &s }

var (
	ana = &authdomain.Identity{UID: "u-ana", Email: "ana@example.com", DisplayName: "Ana"}
	ben = &authdomain.Identity{UID: "u-ben", Email: "ben@example.com", DisplayName: "Ben"}
)

func TestSync_NoUserClearsMirror(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.True(t, f.local.SaveUserProfile(ctx, domain.UserProfile{FirstName: strPtr("Ana")}))

	res := f.orch.Sync(ctx, nil)

	assert.Equal(t, OutcomeNoUser, res.Outcome)
	assert.False(t, f.local.HasAnyProfile(ctx))
	assert.Equal(t, StateNoUser, f.orch.State(""))
}

func TestSync_RemoteWins(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.store.Set(ctx, remote.UsersCollection, ana.UID, map[string]any{
		"email":            ana.Email,
		"userProfile":      map[string]any{"firstName": "Remote"},
		"nutritionProfile": map[string]any{"dietType": "vegan", "cookingTime": "quick"},
	}))
	require.True(t, f.local.SaveUserProfile(ctx, domain.UserProfile{FirstName: strPtr("Local")}))

	res := f.orch.Sync(ctx, ana)

	require.Equal(t, OutcomeFound, res.Outcome)
	assert.True(t, res.Synced())
	assert.Equal(t, "Remote", *f.local.LoadUserProfile(ctx).FirstName)
	assert.Equal(t, domain.DietVegan, f.local.LoadNutritionProfile(ctx).DietType)
	assert.Equal(t, StateSynced, f.orch.State(ana.UID))

	session, ok := f.local.LoadUserSession(ctx)
	require.True(t, ok)
	assert.Equal(t, ana.UID, session.UserID)
	assert.Equal(t, syncTime, f.local.LastSync(ctx).UTC())
}

func TestSync_MigratesLocalProfile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.True(t, f.local.SaveEquipmentProfile(ctx, domain.EquipmentProfile{
		Location:      domain.LocationGym,
		HomeEquipment: domain.TagSet{},
	}))

	res := f.orch.Sync(ctx, ana)

	require.Equal(t, OutcomeMigrated, res.Outcome)
	require.NotNil(t, res.Document)
	assert.Equal(t, domain.LocationGym, res.Document.EquipmentProfile.Location)

	stored, err := f.store.MemoryStore.Get(ctx, remote.UsersCollection, ana.UID)
	require.NoError(t, err)
	assert.Equal(t, ana.Email, stored["email"])
	assert.Equal(t, "gym", stored["equipmentProfile"].(map[string]any)["location"])
	assert.Equal(t, StateSynced, f.orch.State(ana.UID))
	assert.Equal(t, domain.LocationGym, f.local.LoadEquipmentProfile(ctx).Location)
}

func TestSync_CreatesEmptyDocument(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res := f.orch.Sync(ctx, ana)

	require.Equal(t, OutcomeCreated, res.Outcome)
	stored, err := f.store.MemoryStore.Get(ctx, remote.UsersCollection, ana.UID)
	require.NoError(t, err)
	assert.Equal(t, ana.Email, stored["email"])
	assert.Equal(t, ana.DisplayName, stored["displayName"])
	assert.Equal(t, syncTime, stored["createdAt"])
	assert.Equal(t, syncTime, stored["updatedAt"])
	assert.False(t, f.local.HasAnyProfile(ctx))

	again := f.orch.Sync(ctx, ana)
	assert.Equal(t, OutcomeFound, again.Outcome)
	assert.Equal(t, ana.Email, again.Document.Email)
}

func TestSync_MigratesGoal(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.True(t, f.local.SaveUserProfile(ctx, domain.UserProfile{Goal: strPtr(domain.GoalGainMuscle)}))

	require.Equal(t, OutcomeMigrated, f.orch.Sync(ctx, ana).Outcome)

	stored, err := f.store.MemoryStore.Get(ctx, remote.UsersCollection, ana.UID)
	require.NoError(t, err)
	assert.Equal(t, "gain_muscle", stored["userProfile"].(map[string]any)["goal"])
}

func TestSync_SwitchingUserDoesNotMigratePreviousProfile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.store.Set(ctx, remote.UsersCollection, ana.UID, map[string]any{
		"email":       ana.Email,
		"userProfile": map[string]any{"firstName": "Ana", "goal": "lose_weight"},
	}))
	require.Equal(t, OutcomeFound, f.orch.Sync(ctx, ana).Outcome)
	require.True(t, f.local.HasAnyProfile(ctx))

	res := f.orch.Sync(ctx, ben)

	require.Equal(t, OutcomeCreated, res.Outcome)
	assert.True(t, res.Document.UserProfile.IsEmpty())

	stored, err := f.store.MemoryStore.Get(ctx, remote.UsersCollection, ben.UID)
	require.NoError(t, err)
	assert.Equal(t, ben.Email, stored["email"])
	assert.Empty(t, stored["userProfile"])
	assert.False(t, f.local.HasAnyProfile(ctx))

	session, ok := f.local.LoadUserSession(ctx)
	require.True(t, ok)
	assert.Equal(t, ben.UID, session.UserID)
}

func TestSync_SameUserStillMigratesEdits(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.Equal(t, OutcomeCreated, f.orch.Sync(ctx, ana).Outcome)
	require.NoError(t, f.store.Delete(ctx, remote.UsersCollection, ana.UID))
	require.True(t, f.local.SaveUserProfile(ctx, domain.UserProfile{FirstName: strPtr("Ana")}))

	res := f.orch.Sync(ctx, ana)
	require.Equal(t, OutcomeMigrated, res.Outcome)
	assert.Equal(t, "Ana", *res.Document.UserProfile.FirstName)
}

func TestSync_FailureLeavesMirror(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.store.failAll = true

	require.True(t, f.local.SaveUserProfile(ctx, domain.UserProfile{FirstName: strPtr("Local")}))

	res := f.orch.Sync(ctx, ana)

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, domain.ErrRemoteUnavailable)
	assert.Nil(t, res.Document)
	assert.Equal(t, StateFailed, f.orch.State(ana.UID))
	assert.Equal(t, "Local", *f.local.LoadUserProfile(ctx).FirstName)
	_, ok := f.local.LoadUserSession(ctx)
	assert.False(t, ok)
}

func TestSync_ConcurrentCallsShareOneRun(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.store.entered = make(chan struct{})
	f.store.release = make(chan struct{})

	var wg sync.WaitGroup
	results := make([]Result, 4)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = f.orch.Sync(ctx, ana)
	}()
	<-f.store.entered
	assert.Equal(t, StateSyncing, f.orch.State(ana.UID))

	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.orch.Sync(ctx, ana)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(f.store.release)
	wg.Wait()

	// the shared run's read plus the save's read back of the merged document
	assert.Equal(t, int32(2), f.store.reads.Load())
	for _, r := range results {
		assert.Equal(t, OutcomeCreated, r.Outcome)
	}
}

func TestSync_CanceledCallerDoesNotFailJoinedCallers(t *testing.T) {
	f := setup(t)
	f.store.entered = make(chan struct{})
	f.store.release = make(chan struct{})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan Result, 1)
	go func() { first <- f.orch.Sync(firstCtx, ana) }()
	<-f.store.entered

	second := make(chan Result, 1)
	go func() { second <- f.orch.Sync(context.Background(), ana) }()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	r := <-first
	assert.Equal(t, OutcomeFailed, r.Outcome)
	assert.ErrorIs(t, r.Err, context.Canceled)

	close(f.store.release)
	assert.Equal(t, OutcomeCreated, (<-second).Outcome)
	assert.Equal(t, int32(2), f.store.reads.Load())
	assert.Equal(t, StateSynced, f.orch.State(ana.UID))
}

func TestSaveProfile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("requires a user", func(t *testing.T) {
		err := f.orch.SaveProfile(ctx, nil, domain.KindUser, domain.UserProfile{})
		assert.ErrorIs(t, err, domain.ErrNoUser)
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		err := f.orch.SaveProfile(ctx, ana, domain.KindNutrition, domain.NutritionProfile{DietType: "carnivore"})
		assert.ErrorIs(t, err, domain.ErrInvalidProfile)

		err = f.orch.SaveProfile(ctx, ana, domain.KindUser, domain.NutritionProfile{})
		assert.ErrorIs(t, err, domain.ErrInvalidProfile)

		err = f.orch.SaveProfile(ctx, ana, domain.Kind("other"), domain.NutritionProfile{})
		assert.ErrorIs(t, err, domain.ErrUnknownKind)
	})

	t.Run("writes remotely and mirrors", func(t *testing.T) {
		p := domain.NutritionProfile{DietType: domain.DietVegetarian, CookingTime: domain.CookingLong}
		require.NoError(t, f.orch.SaveProfile(ctx, ana, domain.KindNutrition, p))

		stored, err := f.store.MemoryStore.Get(ctx, remote.UsersCollection, ana.UID)
		require.NoError(t, err)
		assert.Equal(t, "vegetarian", stored["nutritionProfile"].(map[string]any)["dietType"])
		assert.Equal(t, syncTime, stored["updatedAt"])
		assert.Equal(t, domain.DietVegetarian, f.local.LoadNutritionProfile(ctx).DietType)
		assert.Equal(t, StateNoUser, f.orch.State(ana.UID))
	})
}

func TestLogout(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.Equal(t, OutcomeCreated, f.orch.Sync(ctx, ana).Outcome)
	require.True(t, f.caches.Put(ctx, usercache.Favorites, ana.UID, []byte(`["r1"]`)))
	require.True(t, f.local.SaveUserProfile(ctx, domain.UserProfile{FirstName: strPtr("Ana")}))

	f.orch.Logout(ctx, ana.UID)

	assert.False(t, f.local.HasAnyProfile(ctx))
	assert.Nil(t, f.caches.Get(ctx, usercache.Favorites, ana.UID))
	assert.Equal(t, StateNoUser, f.orch.State(ana.UID))

	_, err := f.store.MemoryStore.Get(ctx, remote.UsersCollection, ana.UID)
	assert.NoError(t, err)
}
