package domain

import (
	"fmt"
	"slices"
)

var (
	goals          = []string{GoalLoseWeight, GoalGainMuscle, GoalMaintain}
	activityLevels = []string{ActivitySedentary, ActivityLight, ActivityModerate, ActivityActive, ActivityVeryActive}
	locations      = []string{LocationHome, LocationGym, LocationBoth}
	dietTypes      = []string{DietOmnivore, DietVegetarian, DietVegan}
	cookingTimes   = []string{CookingQuick, CookingMedium, CookingLong}
)

func (p UserProfile) Validate() error {
	if p.Goal != nil && !slices.Contains(goals, *p.Goal) {
		return fmt.Errorf("%w: goal %q", ErrInvalidProfile, *p.Goal)
	}
	if p.ActivityLevel != nil && !slices.Contains(activityLevels, *p.ActivityLevel) {
		return fmt.Errorf("%w: activityLevel %q", ErrInvalidProfile, *p.ActivityLevel)
	}
	if p.Age != nil && (*p.Age < 0 || *p.Age > 150) {
		return fmt.Errorf("%w: age %d", ErrInvalidProfile, *p.Age)
	}
	if p.Weight != nil && *p.Weight < 0 {
		return fmt.Errorf("%w: weight must not be negative", ErrInvalidProfile)
	}
	if p.Height != nil && *p.Height < 0 {
		return fmt.Errorf("%w: height must not be negative", ErrInvalidProfile)
	}
	return nil
}

func (p EquipmentProfile) Validate() error {
	if p.Location != "" && !slices.Contains(locations, p.Location) {
		return fmt.Errorf("%w: location %q", ErrInvalidProfile, p.Location)
	}
	return nil
}

func (p NutritionProfile) Validate() error {
	if p.DietType != "" && !slices.Contains(dietTypes, p.DietType) {
		return fmt.Errorf("%w: dietType %q", ErrInvalidProfile, p.DietType)
	}
	if p.CookingTime != "" && !slices.Contains(cookingTimes, p.CookingTime) {
		return fmt.Errorf("%w: cookingTime %q", ErrInvalidProfile, p.CookingTime)
	}
	return nil
}
