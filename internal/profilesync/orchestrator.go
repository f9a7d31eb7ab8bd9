// Package profilesync reconciles the device mirror with the remote user
// document when a user signs in.
package profilesync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	authdomain "github.com/fitforge/fitforge-backend/internal/auth/domain"
	"github.com/fitforge/fitforge-backend/internal/logging"
	"github.com/fitforge/fitforge-backend/internal/profiles/domain"
)

const defaultSyncTimeout = 30 * time.Second

type State string

const (
	StateNoUser    State = "NO_USER"
	StateSyncing   State = "SYNCING"
	StateSynced    State = "SYNCED"
	StateMigrating State = "MIGRATING"
	StateFailed    State = "FAILED"
)

// Outcome tells how a sync ended.
type Outcome string

const (
	OutcomeFound    Outcome = "found"
	OutcomeCreated  Outcome = "created"
	OutcomeMigrated Outcome = "migrated"
	OutcomeNoUser   Outcome = "no_user"
	OutcomeFailed   Outcome = "failed"
)

// Result of Sync. Document is set for found, created and migrated; Err only
// for failed.
type Result struct {
	Outcome  Outcome                    `json:"outcome"`
	Document *domain.RemoteUserDocument `json:"document,omitempty"`
	Err      error                      `json:"-"`
}

func (r Result) Synced() bool {
	return r.Outcome == OutcomeFound || r.Outcome == OutcomeCreated || r.Outcome == OutcomeMigrated
}

// LocalMirror is the device copy of the user's profiles.
type LocalMirror interface {
	LoadUserProfile(ctx context.Context) domain.UserProfile
	LoadEquipmentProfile(ctx context.Context) domain.EquipmentProfile
	LoadNutritionProfile(ctx context.Context) domain.NutritionProfile
	HasAnyProfile(ctx context.Context) bool
	LoadUserSession(ctx context.Context) (domain.UserSession, bool)
	MirrorRemote(ctx context.Context, doc *domain.RemoteUserDocument) bool
	SaveUserSession(ctx context.Context, session domain.UserSession) bool
	MarkLastSync(ctx context.Context) bool
	ClearUserData(ctx context.Context)
}

// Remote is the authoritative profile store. Its writes are expected to be
// mirrored into the LocalMirror.
type Remote interface {
	CheckConnection(ctx context.Context) bool
	GetUserProfileWithRetry(ctx context.Context, uid string, maxRetries int) (*domain.RemoteUserDocument, error)
	SaveCompleteProfile(ctx context.Context, uid string, doc *domain.RemoteUserDocument) error
	SaveProfile(ctx context.Context, uid string, kind domain.Kind, value any) error
}

type Option func(*Orchestrator)

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logging.OrNop(l) }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithSyncTimeout bounds one shared sync run. The run is detached from the
// caller's cancellation, so it only ends early on this timeout.
func WithSyncTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithMaxRetries sets the read attempts; zero keeps the remote default.
func WithMaxRetries(n int) Option {
	return func(o *Orchestrator) { o.maxRetries = n }
}

// Orchestrator runs the sign-in reconciliation for one device. Concurrent
// syncs of the same user share one run.
type Orchestrator struct {
	local      LocalMirror
	remote     Remote
	logger     *zap.Logger
	now        func() time.Time
	maxRetries int
	timeout    time.Duration

	group  singleflight.Group
	mu     sync.RWMutex
	states map[string]State
}

func New(local LocalMirror, remote Remote, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		local:   local,
		remote:  remote,
		logger:  zap.NewNop(),
		now:     time.Now,
		timeout: defaultSyncTimeout,
		states:  make(map[string]State),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the last state reached for uid. An empty uid, or a user
// never synced, is NO_USER.
func (o *Orchestrator) State(uid string) State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if s, ok := o.states[uid]; ok {
		return s
	}
	return StateNoUser
}

func (o *Orchestrator) setState(uid string, s State) {
	o.mu.Lock()
	o.states[uid] = s
	o.mu.Unlock()
	o.logger.Debug("sync state", zap.String("uid", uid), zap.String("state", string(s)))
}

// Sync reconciles the device with the remote document of id. Without an
// identity the device mirror is cleared. On failure the mirror is left as
// it was. A caller whose ctx ends gets a failed result while the shared run
// carries on for the others.
func (o *Orchestrator) Sync(ctx context.Context, id *authdomain.Identity) Result {
	if id == nil || id.UID == "" {
		o.local.ClearUserData(ctx)
		return Result{Outcome: OutcomeNoUser}
	}

	// joined callers must not inherit the first caller's cancellation
	ch := o.group.DoChan(id.UID, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
		defer cancel()
		return o.sync(runCtx, *id), nil
	})

	select {
	case r := <-ch:
		return r.Val.(Result)
	case <-ctx.Done():
		return Result{Outcome: OutcomeFailed, Err: ctx.Err()}
	}
}

func (o *Orchestrator) sync(ctx context.Context, id authdomain.Identity) Result {
	log := o.logger.With(zap.String("uid", id.UID))
	o.setState(id.UID, StateSyncing)

	if !o.remote.CheckConnection(ctx) {
		return o.fail(id.UID, log, domain.ErrRemoteUnavailable)
	}

	doc, err := o.remote.GetUserProfileWithRetry(ctx, id.UID, o.maxRetries)
	if err != nil {
		return o.fail(id.UID, log, err)
	}

	if doc != nil {
		o.local.MirrorRemote(ctx, doc)
		log.Info("remote profile restored")
		return o.done(ctx, id, Result{Outcome: OutcomeFound, Document: doc})
	}

	// the mirror still holds another user's profiles: they are not id's to
	// migrate
	if prev, ok := o.local.LoadUserSession(ctx); ok && prev.UserID != "" && prev.UserID != id.UID {
		log.Info("discarding mirror of previous user", zap.String("previous_uid", prev.UserID))
		o.local.ClearUserData(ctx)
	}

	if o.local.HasAnyProfile(ctx) {
		o.setState(id.UID, StateMigrating)
		doc = o.documentFromLocal(ctx, id)
		if err := o.remote.SaveCompleteProfile(ctx, id.UID, doc); err != nil {
			return o.fail(id.UID, log, fmt.Errorf("migrate local profile: %w", err))
		}
		log.Info("local profile migrated to remote")
		return o.done(ctx, id, Result{Outcome: OutcomeMigrated, Document: doc})
	}

	doc = o.emptyDocument(id)
	if err := o.remote.SaveCompleteProfile(ctx, id.UID, doc); err != nil {
		return o.fail(id.UID, log, fmt.Errorf("create remote profile: %w", err))
	}
	log.Info("remote profile created")
	return o.done(ctx, id, Result{Outcome: OutcomeCreated, Document: doc})
}

func (o *Orchestrator) done(ctx context.Context, id authdomain.Identity, r Result) Result {
	o.local.SaveUserSession(ctx, domain.UserSession{
		UserID:      id.UID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
	})
	o.local.MarkLastSync(ctx)
	o.setState(id.UID, StateSynced)
	return r
}

func (o *Orchestrator) fail(uid string, log *zap.Logger, err error) Result {
	o.setState(uid, StateFailed)
	if errors.Is(err, context.Canceled) {
		log.Info("profile sync canceled")
	} else {
		log.Error("profile sync failed", zap.Error(err))
	}
	return Result{Outcome: OutcomeFailed, Err: err}
}

func (o *Orchestrator) documentFromLocal(ctx context.Context, id authdomain.Identity) *domain.RemoteUserDocument {
	doc := o.emptyDocument(id)
	doc.UserProfile = o.local.LoadUserProfile(ctx)
	doc.EquipmentProfile = o.local.LoadEquipmentProfile(ctx)
	doc.NutritionProfile = o.local.LoadNutritionProfile(ctx)
	return doc
}

func (o *Orchestrator) emptyDocument(id authdomain.Identity) *domain.RemoteUserDocument {
	return &domain.RemoteUserDocument{
		Email:       id.Email,
		DisplayName: id.DisplayName,
		EquipmentProfile: domain.EquipmentProfile{
			HomeEquipment: domain.TagSet{},
		},
		NutritionProfile: domain.NutritionProfile{
			Allergies: []string{},
			Favorites: []string{},
		},
		CreatedAt: o.now().UTC(),
	}
}

// SaveProfile is the explicit save path: it writes one profile remotely,
// which mirrors it locally. It does not touch the sync state.
func (o *Orchestrator) SaveProfile(ctx context.Context, id *authdomain.Identity, kind domain.Kind, value any) error {
	if id == nil || id.UID == "" {
		return domain.ErrNoUser
	}
	if err := validate(kind, value); err != nil {
		return err
	}
	return o.remote.SaveProfile(ctx, id.UID, kind, value)
}

// Logout clears the device mirror. The remote document is kept.
func (o *Orchestrator) Logout(ctx context.Context, uid string) {
	o.local.ClearUserData(ctx)
	if uid != "" {
		o.setState(uid, StateNoUser)
	}
}

func validate(kind domain.Kind, value any) error {
	switch v := value.(type) {
	case domain.UserProfile:
		if kind == domain.KindUser {
			return v.Validate()
		}
	case domain.EquipmentProfile:
		if kind == domain.KindEquipment {
			return v.Validate()
		}
	case domain.NutritionProfile:
		if kind == domain.KindNutrition {
			return v.Validate()
		}
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
	}
	return fmt.Errorf("%w: %s expects a matching profile, got %T", domain.ErrInvalidProfile, kind, value)
}
