// Package device assembles the per-device components. Each browser
// installation gets its own Redis namespace and its own session state.
package device

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fitforge/fitforge-backend/internal/auth"
	"github.com/fitforge/fitforge-backend/internal/formcache"
	"github.com/fitforge/fitforge-backend/internal/keystore"
	"github.com/fitforge/fitforge-backend/internal/logging"
	"github.com/fitforge/fitforge-backend/internal/profiles/localstore"
	"github.com/fitforge/fitforge-backend/internal/profilesync"
	"github.com/fitforge/fitforge-backend/internal/remote"
	"github.com/fitforge/fitforge-backend/internal/session"
	"github.com/fitforge/fitforge-backend/internal/usercache"
)

var ErrInvalidID = errors.New("invalid device id")

var idPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// ValidID reports whether id may be used as a device id.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Namespace returns the keystore namespace of a device.
func Namespace(base, deviceID string) string {
	return base + ":dev:" + deviceID
}

type Deps struct {
	Redis        *redis.Client
	Namespace    string
	AppVersion   string
	Profiles     *remote.ProfileService
	FormDebounce time.Duration
	MaxRetries   int
	Logger       *zap.Logger
}

// Session holds the components bound to one device.
type Session struct {
	ID           string
	KV           *keystore.Store
	Caches       *usercache.Cache
	Local        *localstore.Store
	Forms        *formcache.Cache
	Debouncer    *formcache.Debouncer
	Feed         *auth.IdentityFeed
	Invalidator  *session.Invalidator
	Remote       *remote.ProfileService
	Orchestrator *profilesync.Orchestrator

	unfollow func()
}

func (s *Session) close(ctx context.Context) {
	s.Debouncer.Stop(ctx)
	s.unfollow()
}

// Manager creates device sessions on first use and keeps them for the life
// of the process.
type Manager struct {
	deps   Deps
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:     deps,
		logger:   logging.OrNop(deps.Logger),
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) devicesKey() string {
	return m.deps.Namespace + ":devices"
}

// Get returns the session of deviceID, creating it on first use. Creating
// a session records the device, records the app version and drops expired
// form drafts.
func (m *Manager) Get(ctx context.Context, deviceID string) (*Session, error) {
	if !ValidID(deviceID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, deviceID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[deviceID]; ok {
		return s, nil
	}

	if err := m.deps.Redis.SAdd(ctx, m.devicesKey(), deviceID).Err(); err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}

	s := m.build(ctx, deviceID)
	m.sessions[deviceID] = s
	m.logger.Info("device session opened", zap.String("device_id", deviceID))
	return s, nil
}

func (m *Manager) build(ctx context.Context, deviceID string) *Session {
	log := m.logger.With(zap.String("device_id", deviceID))

	kv := keystore.New(m.deps.Redis, Namespace(m.deps.Namespace, deviceID), keystore.WithLogger(log))
	caches := usercache.NewCache(kv, usercache.NewRegistry())
	local := localstore.New(kv, caches, m.deps.AppVersion, log)
	forms := formcache.New(kv, log)
	profiles := m.deps.Profiles.WithMirror(local)

	local.EnsureAppVersion(ctx)
	if n := forms.CleanExpiredFormData(ctx); n > 0 {
		log.Info("expired form drafts removed", zap.Int("count", n))
	}

	feed := auth.NewIdentityFeed()
	inv := session.New(ctx, kv, caches, log)

	s := &Session{
		ID:          deviceID,
		KV:          kv,
		Caches:      caches,
		Local:       local,
		Forms:       forms,
		Debouncer:   formcache.NewDebouncer(forms, m.deps.FormDebounce, log),
		Feed:        feed,
		Invalidator: inv,
		Remote:      profiles,
		Orchestrator: profilesync.New(local, profiles,
			profilesync.WithLogger(log),
			profilesync.WithMaxRetries(m.deps.MaxRetries)),
		unfollow: inv.Follow(feed),
	}
	return s
}

// Devices lists every device ever seen, sorted.
func (m *Manager) Devices(ctx context.Context) ([]string, error) {
	ids, err := m.deps.Redis.SMembers(ctx, m.devicesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// FormCaches returns the form cache of every known device, for the expiry
// sweep. It does not open sessions.
func (m *Manager) FormCaches(ctx context.Context) ([]formcache.Sweepable, error) {
	ids, err := m.Devices(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]formcache.Sweepable, 0, len(ids))
	for _, id := range ids {
		kv := keystore.New(m.deps.Redis, Namespace(m.deps.Namespace, id), keystore.WithLogger(m.logger))
		out = append(out, formcache.New(kv, m.logger))
	}
	return out, nil
}

// Close flushes pending form drafts and stops every session.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		s.close(ctx)
		delete(m.sessions, id)
	}
}
