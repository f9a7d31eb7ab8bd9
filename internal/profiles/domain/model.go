package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// Goal values accepted for UserProfile.Goal.
const (
	GoalLoseWeight = "lose_weight"
	GoalGainMuscle = "gain_muscle"
	GoalMaintain   = "maintain"
)

// Activity levels accepted for UserProfile.ActivityLevel.
const (
	ActivitySedentary  = "sedentary"
	ActivityLight      = "light"
	ActivityModerate   = "moderate"
	ActivityActive     = "active"
	ActivityVeryActive = "very_active"
)

// Training locations accepted for EquipmentProfile.Location.
const (
	LocationHome = "home"
	LocationGym  = "gym"
	LocationBoth = "both"
)

// Diet types accepted for NutritionProfile.DietType.
const (
	DietOmnivore   = "omnivore"
	DietVegetarian = "vegetarian"
	DietVegan      = "vegan"
)

// Cooking times accepted for NutritionProfile.CookingTime.
const (
	CookingQuick  = "quick"
	CookingMedium = "medium"
	CookingLong   = "long"
)

// UserProfile holds identity and fitness data. A nil field means the user
// has not configured it yet.
type UserProfile struct {
	FirstName     *string  `json:"firstName,omitempty" firestore:"firstName,omitempty"`
	LastName      *string  `json:"lastName,omitempty" firestore:"lastName,omitempty"`
	Age           *int     `json:"age,omitempty" firestore:"age,omitempty"`
	Gender        *string  `json:"gender,omitempty" firestore:"gender,omitempty"`
	Weight        *float64 `json:"weight,omitempty" firestore:"weight,omitempty"`
	Height        *float64 `json:"height,omitempty" firestore:"height,omitempty"`
	Goal          *string  `json:"goal,omitempty" firestore:"goal,omitempty"`
	ActivityLevel *string  `json:"activityLevel,omitempty" firestore:"activityLevel,omitempty"`
}

func (p UserProfile) IsEmpty() bool {
	return p == UserProfile{}
}

type EquipmentProfile struct {
	Location      string `json:"location" firestore:"location"`
	HomeEquipment TagSet `json:"homeEquipment" firestore:"homeEquipment"`
	GymFrequency  string `json:"gymFrequency" firestore:"gymFrequency"`
}

func (p EquipmentProfile) IsEmpty() bool {
	return p.Location == "" && len(p.HomeEquipment) == 0 && p.GymFrequency == ""
}

type NutritionProfile struct {
	DietType    string   `json:"dietType" firestore:"dietType"`
	CookingTime string   `json:"cookingTime" firestore:"cookingTime"`
	Allergies   []string `json:"allergies" firestore:"allergies"`
	Favorites   []string `json:"favorites" firestore:"favorites"`
}

func (p NutritionProfile) IsEmpty() bool {
	return p.DietType == "" && p.CookingTime == "" && len(p.Allergies) == 0 && len(p.Favorites) == 0
}

// TagSet is a set of equipment tags. It is encoded as a sorted JSON array.
type TagSet []string

// NewTagSet de-duplicates and sorts tags.
func NewTagSet(tags ...string) TagSet {
	seen := make(map[string]struct{}, len(tags))
	out := make(TagSet, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (s TagSet) Contains(tag string) bool {
	i := sort.SearchStrings(s, tag)
	return i < len(s) && s[i] == tag
}

func (s TagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string(NewTagSet(s...)))
}

func (s *TagSet) UnmarshalJSON(b []byte) error {
	var tags []string
	if err := json.Unmarshal(b, &tags); err != nil {
		return err
	}
	*s = NewTagSet(tags...)
	return nil
}

// QuestionnaireStaleAfter is how long an active questionnaire may sit idle
// before it is considered abandoned.
const QuestionnaireStaleAfter = 30 * time.Minute

// QuestionnaireState tracks onboarding progress. Timestamp is in ms.
type QuestionnaireState struct {
	IsActive    bool           `json:"isActive"`
	CurrentStep int            `json:"currentStep"`
	Answers     map[string]any `json:"answers"`
	Completed   bool           `json:"completed"`
	Timestamp   int64          `json:"timestamp"`
}

// Stale reports whether an active questionnaire has been idle too long.
func (q QuestionnaireState) Stale(now time.Time) bool {
	if !q.IsActive {
		return false
	}
	return now.Sub(time.UnixMilli(q.Timestamp)) > QuestionnaireStaleAfter
}

type NotificationSettings struct {
	WorkoutReminders bool `json:"workoutReminders"`
	MealReminders    bool `json:"mealReminders"`
	ProgressUpdates  bool `json:"progressUpdates"`
}

type AppSettings struct {
	Theme         string               `json:"theme"`
	Language      string               `json:"language"`
	Notifications NotificationSettings `json:"notifications"`
	AutoSync      bool                 `json:"autoSync"`
}

func DefaultAppSettings() AppSettings {
	return AppSettings{
		Theme:    "light",
		Language: "fr",
		Notifications: NotificationSettings{
			WorkoutReminders: true,
			MealReminders:    true,
			ProgressUpdates:  true,
		},
		AutoSync: true,
	}
}

// UserSession is the last authenticated identity seen on a device.
type UserSession struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	LoggedInAt  int64  `json:"loggedInAt"`
}

// RemoteUserDocument is the authoritative per-user record held remotely.
type RemoteUserDocument struct {
	Email            string           `json:"email" firestore:"email"`
	DisplayName      string           `json:"displayName" firestore:"displayName"`
	UserProfile      UserProfile      `json:"userProfile" firestore:"userProfile"`
	EquipmentProfile EquipmentProfile `json:"equipmentProfile" firestore:"equipmentProfile"`
	NutritionProfile NutritionProfile `json:"nutritionProfile" firestore:"nutritionProfile"`
	CreatedAt        time.Time        `json:"createdAt" firestore:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt" firestore:"updatedAt"`
}

// Kind names one of the three profile sub-documents.
type Kind string

const (
	KindUser      Kind = "userProfile"
	KindEquipment Kind = "equipmentProfile"
	KindNutrition Kind = "nutritionProfile"
)

func (k Kind) Valid() bool {
	switch k {
	case KindUser, KindEquipment, KindNutrition:
		return true
	}
	return false
}
