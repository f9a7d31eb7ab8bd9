// Package localstore is the device-side mirror of a user's profiles, plus the
// onboarding and settings state that never leaves the device.
package localstore

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fitforge/fitforge-backend/internal/keystore"
	"github.com/fitforge/fitforge-backend/internal/logging"
	"github.com/fitforge/fitforge-backend/internal/profiles/domain"
	"github.com/fitforge/fitforge-backend/internal/usercache"
)

// Keys of the device namespace.
const (
	KeyUserProfile             = "userProfile"
	KeyEquipmentProfile        = "equipmentProfile"
	KeyNutritionProfile        = "nutritionProfile"
	KeyAppSettings             = "appSettings"
	KeyFormData                = "formData"
	KeyQuestionnaireState      = "questionnaireState"
	KeyPersonalizedSuggestions = "personalizedSuggestions"
	KeyRecipesCache            = "recipesCache"
	KeyProgramsCache           = "programsCache"
	KeyLastSync                = "lastSync"
	KeyUserSession             = "userSession"
	KeyAppVersion              = "appVersion"
)

// userDataKeys are removed by ClearUserData before the per-user caches.
var userDataKeys = []string{
	KeyUserProfile,
	KeyEquipmentProfile,
	KeyNutritionProfile,
	KeyQuestionnaireState,
	KeyUserSession,
	KeyPersonalizedSuggestions,
	KeyRecipesCache,
	KeyProgramsCache,
	KeyLastSync,
}

type Store struct {
	kv         *keystore.Store
	caches     *usercache.Cache
	appVersion string
	logger     *zap.Logger
}

func New(kv *keystore.Store, caches *usercache.Cache, appVersion string, logger *zap.Logger) *Store {
	return &Store{
		kv:         kv,
		caches:     caches,
		appVersion: appVersion,
		logger:     logging.OrNop(logger),
	}
}

func (s *Store) SaveUserProfile(ctx context.Context, p domain.UserProfile) bool {
	return s.kv.Save(ctx, KeyUserProfile, p)
}

func (s *Store) LoadUserProfile(ctx context.Context) domain.UserProfile {
	return keystore.Load(ctx, s.kv, KeyUserProfile, domain.UserProfile{})
}

func (s *Store) SaveEquipmentProfile(ctx context.Context, p domain.EquipmentProfile) bool {
	return s.kv.Save(ctx, KeyEquipmentProfile, p)
}

func (s *Store) LoadEquipmentProfile(ctx context.Context) domain.EquipmentProfile {
	p := keystore.Load(ctx, s.kv, KeyEquipmentProfile, domain.EquipmentProfile{})
	if p.HomeEquipment == nil {
		p.HomeEquipment = domain.TagSet{}
	}
	return p
}

func (s *Store) SaveNutritionProfile(ctx context.Context, p domain.NutritionProfile) bool {
	return s.kv.Save(ctx, KeyNutritionProfile, p)
}

func (s *Store) LoadNutritionProfile(ctx context.Context) domain.NutritionProfile {
	p := keystore.Load(ctx, s.kv, KeyNutritionProfile, domain.NutritionProfile{})
	if p.Allergies == nil {
		p.Allergies = []string{}
	}
	if p.Favorites == nil {
		p.Favorites = []string{}
	}
	return p
}

// SaveQuestionnaireState stamps the state with the current time; the stamp
// is what ShouldRestartQuestionnaire measures idleness against.
func (s *Store) SaveQuestionnaireState(ctx context.Context, q domain.QuestionnaireState) bool {
	q.Timestamp = s.kv.Now().UnixMilli()
	if q.Answers == nil {
		q.Answers = map[string]any{}
	}
	return s.kv.Save(ctx, KeyQuestionnaireState, q)
}

func (s *Store) LoadQuestionnaireState(ctx context.Context) domain.QuestionnaireState {
	q := keystore.Load(ctx, s.kv, KeyQuestionnaireState, domain.QuestionnaireState{})
	if q.Answers == nil {
		q.Answers = map[string]any{}
	}
	return q
}

func (s *Store) ClearQuestionnaireState(ctx context.Context) {
	s.kv.Remove(ctx, KeyQuestionnaireState)
}

func (s *Store) SaveAppSettings(ctx context.Context, settings domain.AppSettings) bool {
	return s.kv.Save(ctx, KeyAppSettings, settings)
}

func (s *Store) LoadAppSettings(ctx context.Context) domain.AppSettings {
	return keystore.Load(ctx, s.kv, KeyAppSettings, domain.DefaultAppSettings())
}

func (s *Store) SaveUserSession(ctx context.Context, session domain.UserSession) bool {
	if session.LoggedInAt == 0 {
		session.LoggedInAt = s.kv.Now().UnixMilli()
	}
	return s.kv.Save(ctx, KeyUserSession, session)
}

func (s *Store) LoadUserSession(ctx context.Context) (domain.UserSession, bool) {
	var session domain.UserSession
	ok := s.kv.LoadInto(ctx, KeyUserSession, &session)
	return session, ok
}

func (s *Store) MarkLastSync(ctx context.Context) bool {
	return s.kv.Save(ctx, KeyLastSync, s.kv.Now().UnixMilli())
}

// LastSync returns the zero time if the device never synced.
func (s *Store) LastSync(ctx context.Context) time.Time {
	ms := keystore.Load[int64](ctx, s.kv, KeyLastSync, 0)
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// EnsureAppVersion records the running app version and reports whether it
// differs from the one recorded before.
func (s *Store) EnsureAppVersion(ctx context.Context) bool {
	previous := keystore.Load(ctx, s.kv, KeyAppVersion, "")
	if previous == s.appVersion {
		return false
	}
	s.kv.Save(ctx, KeyAppVersion, s.appVersion)
	if previous != "" {
		s.logger.Info("app version changed", zap.String("from", previous), zap.String("to", s.appVersion))
	}
	return true
}

// IsConfigurationComplete reports whether onboarding is done: either the
// questionnaire was completed, or the equipment location, diet type and
// cooking time are all set.
func (s *Store) IsConfigurationComplete(ctx context.Context) bool {
	if s.LoadQuestionnaireState(ctx).Completed {
		return true
	}
	equipment := s.LoadEquipmentProfile(ctx)
	nutrition := s.LoadNutritionProfile(ctx)
	return equipment.Location != "" && nutrition.DietType != "" && nutrition.CookingTime != ""
}

// ShouldRestartQuestionnaire reports whether onboarding must be entered
// again: configuration is incomplete and nothing is in progress, or the
// questionnaire in progress was abandoned.
func (s *Store) ShouldRestartQuestionnaire(ctx context.Context) bool {
	q := s.LoadQuestionnaireState(ctx)
	if q.Stale(s.kv.Now()) {
		return true
	}
	return !s.IsConfigurationComplete(ctx) && !q.IsActive
}

// HasAnyProfile reports whether at least one profile holds user data.
func (s *Store) HasAnyProfile(ctx context.Context) bool {
	return !s.LoadUserProfile(ctx).IsEmpty() ||
		!s.LoadEquipmentProfile(ctx).IsEmpty() ||
		!s.LoadNutritionProfile(ctx).IsEmpty()
}

// MirrorRemote replaces the local profiles with the remote document.
func (s *Store) MirrorRemote(ctx context.Context, doc *domain.RemoteUserDocument) bool {
	ok := s.SaveUserProfile(ctx, doc.UserProfile)
	ok = s.SaveEquipmentProfile(ctx, doc.EquipmentProfile) && ok
	ok = s.SaveNutritionProfile(ctx, doc.NutritionProfile) && ok
	return ok
}

// ClearUserData removes everything that belongs to the signed-in user,
// including the per-user caches of every user seen on this device. Settings,
// form drafts and public caches survive.
func (s *Store) ClearUserData(ctx context.Context) {
	s.kv.Remove(ctx, userDataKeys...)
	if s.caches != nil {
		s.caches.ClearAll(ctx)
	}
	s.logger.Debug("local user data cleared")
}
