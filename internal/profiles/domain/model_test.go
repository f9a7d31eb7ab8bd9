package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestTagSet(t *testing.T) {
	set := NewTagSet("kettlebell", "dumbbells", "", "kettlebell")
	assert.Equal(t, TagSet{"dumbbells", "kettlebell"}, set)
	assert.True(t, set.Contains("dumbbells"))
	assert.False(t, set.Contains("barbell"))

	b, err := json.Marshal(TagSet{"z", "a", "z"})
	require.NoError(t, err)
	assert.JSONEq(t, `["a","z"]`, string(b))

	var decoded TagSet
	require.NoError(t, json.Unmarshal([]byte(`["mat","band","mat"]`), &decoded))
	assert.Equal(t, TagSet{"band", "mat"}, decoded)
}

func TestProfiles_IsEmpty(t *testing.T) {
	assert.True(t, UserProfile{}.IsEmpty())
	assert.False(t, UserProfile{Goal: strPtr(GoalGainMuscle)}.IsEmpty())

	assert.True(t, EquipmentProfile{}.IsEmpty())
	assert.True(t, EquipmentProfile{HomeEquipment: TagSet{}}.IsEmpty())
	assert.False(t, EquipmentProfile{Location: LocationGym}.IsEmpty())

	assert.True(t, NutritionProfile{Allergies: []string{}}.IsEmpty())
	assert.False(t, NutritionProfile{Favorites: []string{"r1"}}.IsEmpty())
}

func TestQuestionnaireState_Stale(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		state QuestionnaireState
		want  bool
	}{
		{"inactive", QuestionnaireState{Timestamp: now.Add(-time.Hour).UnixMilli()}, false},
		{"fresh", QuestionnaireState{IsActive: true, Timestamp: now.Add(-29 * time.Minute).UnixMilli()}, false},
		{"abandoned", QuestionnaireState{IsActive: true, Timestamp: now.Add(-31 * time.Minute).UnixMilli()}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Stale(now))
		})
	}
}

func TestValidate(t *testing.T) {
	age := 200
	assert.NoError(t, UserProfile{Goal: strPtr(GoalMaintain), ActivityLevel: strPtr(ActivityVeryActive)}.Validate())
	assert.ErrorIs(t, UserProfile{Goal: strPtr("bulk")}.Validate(), ErrInvalidProfile)
	assert.ErrorIs(t, UserProfile{Age: &age}.Validate(), ErrInvalidProfile)

	assert.NoError(t, EquipmentProfile{Location: LocationBoth}.Validate())
	assert.ErrorIs(t, EquipmentProfile{Location: "park"}.Validate(), ErrInvalidProfile)

	assert.NoError(t, NutritionProfile{}.Validate())
	assert.ErrorIs(t, NutritionProfile{DietType: "keto"}.Validate(), ErrInvalidProfile)
	assert.ErrorIs(t, NutritionProfile{CookingTime: "forever"}.Validate(), ErrInvalidProfile)
}

func TestKind_Valid(t *testing.T) {
	assert.True(t, KindNutrition.Valid())
	assert.False(t, Kind("appSettings").Valid())
}
