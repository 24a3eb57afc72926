package planner

import (
	"strings"

	"trip-planner/internal/domain"
)

const (
	BudgetLow      = "low"
	BudgetModerate = "moderate"
	BudgetHigh     = "high"

	defaultCurrency      = "USD"
	defaultDuration      = 3
	defaultPurpose       = "Leisure"
	defaultPreferences   = "general sightseeing"
	defaultNone          = "none"
	defaultAccommodation = "standard"
)

// ClassifyBudget maps a free-text budget description onto low, moderate or
// high. Matching is a case-insensitive substring test, checked in that order;
// anything unrecognised is moderate.
func ClassifyBudget(budget string) string {
	b := strings.ToLower(budget)
	switch {
	case strings.Contains(b, "low"), strings.Contains(b, "tight"):
		return BudgetLow
	case strings.Contains(b, "moderate"):
		return BudgetModerate
	case strings.Contains(b, "high"), strings.Contains(b, "luxury"):
		return BudgetHigh
	default:
		return BudgetModerate
	}
}

// Normalize fills every missing preference with its default. City is passed
// through and the generated output is left alone. Normalize never fails and
// applying it twice gives the same record as applying it once.
func Normalize(rec domain.TripPreferenceRecord) domain.TripPreferenceRecord {
	rec.TripPreferences = NormalizePreferences(rec.TripPreferences)
	return rec
}

func NormalizePreferences(p domain.TripPreferences) domain.TripPreferences {
	p.Budget = ClassifyBudget(p.Budget)
	p.Currency = orDefault(p.Currency, defaultCurrency)
	if p.Duration <= 0 {
		p.Duration = defaultDuration
	}
	p.Purpose = orDefault(p.Purpose, defaultPurpose)
	p.Preferences = orDefault(p.Preferences, defaultPreferences)
	p.DietaryPreferences = orDefault(p.DietaryPreferences, defaultNone)
	p.SpecificInterests = orDefault(p.SpecificInterests, defaultNone)
	p.MobilityConcerns = orDefault(p.MobilityConcerns, defaultNone)
	p.AccommodationPreferences = orDefault(p.AccommodationPreferences, defaultAccommodation)
	p.AdditionalInput = orDefault(p.AdditionalInput, defaultNone)
	return p
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
