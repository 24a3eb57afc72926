package domain

import (
	"strings"
	"time"
)

// TripPreferences holds the trip inputs collected from the form. Every field
// is optional on input.
type TripPreferences struct {
	City                     string `json:"city"`
	Budget                   string `json:"budget"`
	Currency                 string `json:"currency"`
	Duration                 int    `json:"duration"`
	Purpose                  string `json:"purpose"`
	Preferences              string `json:"preferences"`
	DietaryPreferences       string `json:"dietaryPreferences"`
	SpecificInterests        string `json:"specificInterests"`
	MobilityConcerns         string `json:"mobilityConcerns"`
	AccommodationPreferences string `json:"accommodationPreferences"`
	AdditionalInput          string `json:"additionalInput"`
}

// TripPreferenceRecord is the per-session record: the latest preferences plus
// the generated output. It is owned by a single session and never shared.
// FormInput keeps the preferences as submitted, before normalization.
type TripPreferenceRecord struct {
	SessionID string
	TripPreferences
	FormInput      TripPreferences
	Itinerary      string
	MessageHistory []ChatMessage
	UpdatedAt      time.Time
}

// Currencies lists the selectable currency codes. The first entry is the
// form default.
var Currencies = []string{"USD", "EUR", "GBP", "INR", "JPY", "AUD", "CAD"}

// Purposes lists the selectable trip purposes. The empty entry means unset.
var Purposes = []string{"", "Leisure", "Adventure", "Business", "Romantic", "Family"}

func IsCurrency(v string) bool {
	return contains(Currencies, v)
}

func IsPurpose(v string) bool {
	return contains(Purposes, v)
}

// CanonicalCurrency returns the listed currency matching v case-insensitively,
// or v unchanged when none matches.
func CanonicalCurrency(v string) string {
	return canonical(Currencies, v)
}

// CanonicalPurpose returns the listed purpose matching v case-insensitively,
// or v unchanged when none matches.
func CanonicalPurpose(v string) string {
	return canonical(Purposes, v)
}

func canonical(list []string, v string) string {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return s
		}
	}
	return v
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
