package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fitforge/fitforge-backend/internal/profiles/domain"
)

const (
	UsersCollection = "users"

	healthCollection = "_health"
	healthDocID      = "ping"
	pingTimeout      = 3 * time.Second
)

// Mirror receives every profile successfully written remotely so that the
// device copy matches the last known remote state.
type Mirror interface {
	SaveUserProfile(ctx context.Context, p domain.UserProfile) bool
	SaveEquipmentProfile(ctx context.Context, p domain.EquipmentProfile) bool
	SaveNutritionProfile(ctx context.Context, p domain.NutritionProfile) bool
}

// ProfileUpdate is a partial update of a user document; nil fields are left
// untouched.
type ProfileUpdate struct {
	DisplayName      *string
	UserProfile      *domain.UserProfile
	EquipmentProfile *domain.EquipmentProfile
	NutritionProfile *domain.NutritionProfile
}

type Option func(*ProfileService)

func WithLogger(l *zap.Logger) Option {
	return func(s *ProfileService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *ProfileService) { s.now = now }
}

// WithRetry sets the linear backoff unit and the default number of read
// attempts.
func WithRetry(base time.Duration, attempts int) Option {
	return func(s *ProfileService) {
		if base > 0 {
			s.retryBase = base
		}
		if attempts > 0 {
			s.maxRetries = attempts
		}
	}
}

// WithWriteRate throttles writes per user document. rate.Inf disables it.
func WithWriteRate(limit rate.Limit, burst int) Option {
	return func(s *ProfileService) { s.limiter = newWriteLimiter(limit, burst) }
}

// WithBackoffObserver is called with every delay the read retry waits.
func WithBackoffObserver(fn func(time.Duration)) Option {
	return func(s *ProfileService) { s.onBackoff = fn }
}

// ProfileService reads and writes the authoritative user documents. It is
// safe for concurrent use; WithMirror derives a copy bound to one device.
type ProfileService struct {
	store      DocumentStore
	mirror     Mirror
	limiter    *writeLimiter
	retryBase  time.Duration
	maxRetries int
	now        func() time.Time
	logger     *zap.Logger
	onBackoff  func(time.Duration)
}

func NewProfileService(store DocumentStore, opts ...Option) *ProfileService {
	s := &ProfileService{
		store:      store,
		limiter:    newWriteLimiter(rate.Limit(1), 5),
		retryBase:  DefaultRetryBase,
		maxRetries: DefaultMaxRetries,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithMirror returns a service that mirrors its writes into m. The copy
// shares the document store and the write limiter.
func (s *ProfileService) WithMirror(m Mirror) *ProfileService {
	c := *s
	c.mirror = m
	return &c
}

// GetUserProfile reads the user document once. It returns nil without an
// error when the user has no document.
func (s *ProfileService) GetUserProfile(ctx context.Context, uid string) (*domain.RemoteUserDocument, error) {
	if uid == "" {
		return nil, domain.ErrNoUser
	}

	data, err := s.store.Get(ctx, UsersCollection, uid)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", uid, err)
	}
	return doc, nil
}

// GetUserProfileWithRetry makes up to maxRetries read attempts, waiting
// attempt × base between failures. Exhaustion is reported as
// domain.ErrRemoteUnavailable wrapping the last error; it never means the
// user has no profile.
func (s *ProfileService) GetUserProfileWithRetry(ctx context.Context, uid string, maxRetries int) (*domain.RemoteUserDocument, error) {
	if uid == "" {
		return nil, domain.ErrNoUser
	}
	if maxRetries <= 0 {
		maxRetries = s.maxRetries
	}

	var (
		doc     *domain.RemoteUserDocument
		attempt int
	)
	backoff := observeBackoff(linearBackoff(s.retryBase, maxRetries), s.onBackoff)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		var err error
		doc, err = s.GetUserProfile(ctx, uid)
		if err == nil {
			return nil
		}
		s.logger.Warn("remote profile read failed",
			zap.String("uid", uid),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxRetries),
			zap.Error(err))
		return retry.RetryableError(err)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w after %d attempts: %w", domain.ErrRemoteUnavailable, attempt, err)
	}
	return doc, nil
}

// UpdateUserProfile applies a partial update to an existing document and
// stamps updatedAt.
func (s *ProfileService) UpdateUserProfile(ctx context.Context, uid string, update ProfileUpdate) error {
	if uid == "" {
		return domain.ErrNoUser
	}

	fields := map[string]any{fieldUpdatedAt: s.now().UTC()}
	if update.DisplayName != nil {
		fields[fieldDisplayName] = *update.DisplayName
	}
	for kind, v := range update.profiles() {
		m, err := encodeProfile(kind, v)
		if err != nil {
			return err
		}
		fields[string(kind)] = m
	}

	if err := s.limiter.Wait(ctx, uid); err != nil {
		return err
	}
	if err := s.store.Update(ctx, UsersCollection, uid, fields); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("user %s: %w", uid, domain.ErrProfileNotFound)
		}
		return fmt.Errorf("failed to update user %s: %w", uid, err)
	}

	s.mirrorUpdate(ctx, update)
	return nil
}

// SaveCompleteProfile upserts doc with merge semantics and stamps updatedAt.
// Fields the stored document has and doc leaves unset are preserved.
func (s *ProfileService) SaveCompleteProfile(ctx context.Context, uid string, doc *domain.RemoteUserDocument) error {
	if uid == "" {
		return domain.ErrNoUser
	}

	stamped := *doc
	stamped.UpdatedAt = s.now().UTC()
	data, err := encodeDocument(&stamped)
	if err != nil {
		return err
	}

	if err := s.limiter.Wait(ctx, uid); err != nil {
		return err
	}
	if err := s.store.Merge(ctx, UsersCollection, uid, data); err != nil {
		return fmt.Errorf("failed to save user %s: %w", uid, err)
	}

	doc.UpdatedAt = stamped.UpdatedAt
	if s.mirror == nil {
		return nil
	}

	// the mirror gets what the merge produced, not just what doc carried
	merged, err := s.GetUserProfile(ctx, uid)
	if err != nil || merged == nil {
		s.logger.Warn("failed to read merged profile, mirroring input",
			zap.String("uid", uid), zap.Error(err))
		merged = doc
	}
	s.mirror.SaveUserProfile(ctx, merged.UserProfile)
	s.mirror.SaveEquipmentProfile(ctx, merged.EquipmentProfile)
	s.mirror.SaveNutritionProfile(ctx, merged.NutritionProfile)
	return nil
}

// SaveProfile replaces one profile of the user document, creating the
// document if needed, and stamps updatedAt.
func (s *ProfileService) SaveProfile(ctx context.Context, uid string, kind domain.Kind, value any) error {
	if uid == "" {
		return domain.ErrNoUser
	}

	m, err := encodeProfile(kind, value)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	fields := map[string]any{string(kind): m, fieldUpdatedAt: now}

	if err := s.limiter.Wait(ctx, uid); err != nil {
		return err
	}
	err = s.store.Update(ctx, UsersCollection, uid, fields)
	if errors.Is(err, ErrNotFound) {
		fields[fieldCreatedAt] = now
		err = s.store.Merge(ctx, UsersCollection, uid, fields)
	}
	if err != nil {
		return fmt.Errorf("failed to save %s for user %s: %w", kind, uid, err)
	}

	s.mirrorProfile(ctx, value)
	return nil
}

// FindByEmail returns the ids of user documents registered with email.
func (s *ProfileService) FindByEmail(ctx context.Context, email string) ([]string, error) {
	snaps, err := s.store.QueryByField(ctx, UsersCollection, fieldEmail, email)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		ids = append(ids, snap.ID)
	}
	return ids, nil
}

// DeleteUserProfile removes the remote document. The device mirror is left
// to the caller.
func (s *ProfileService) DeleteUserProfile(ctx context.Context, uid string) error {
	if uid == "" {
		return domain.ErrNoUser
	}
	if err := s.store.Delete(ctx, UsersCollection, uid); err != nil {
		return fmt.Errorf("failed to delete user %s: %w", uid, err)
	}
	return nil
}

// CheckConnection checks the store with a read of a sentinel document. A
// missing sentinel still proves connectivity. The result is not cached.
func (s *ProfileService) CheckConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	_, err := s.store.Get(ctx, healthCollection, healthDocID)
	if err == nil || errors.Is(err, ErrNotFound) {
		return true
	}
	s.logger.Warn("remote store unreachable", zap.Error(err))
	return false
}

func (u ProfileUpdate) profiles() map[domain.Kind]any {
	out := make(map[domain.Kind]any, 3)
	if u.UserProfile != nil {
		out[domain.KindUser] = *u.UserProfile
	}
	if u.EquipmentProfile != nil {
		out[domain.KindEquipment] = *u.EquipmentProfile
	}
	if u.NutritionProfile != nil {
		out[domain.KindNutrition] = *u.NutritionProfile
	}
	return out
}

func (s *ProfileService) mirrorUpdate(ctx context.Context, u ProfileUpdate) {
	for _, v := range u.profiles() {
		s.mirrorProfile(ctx, v)
	}
}

func (s *ProfileService) mirrorProfile(ctx context.Context, v any) {
	if s.mirror == nil {
		return
	}
	switch p := v.(type) {
	case domain.UserProfile:
		s.mirror.SaveUserProfile(ctx, p)
	case domain.EquipmentProfile:
		s.mirror.SaveEquipmentProfile(ctx, p)
	case domain.NutritionProfile:
		s.mirror.SaveNutritionProfile(ctx, p)
	}
}
