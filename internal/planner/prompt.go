package planner

import (
	"fmt"
	"strings"
	"text/template"

	"trip-planner/internal/domain"
)

const humanTurn = "Create a detailed itinerary for my trip."

var systemTemplate = template.Must(template.New("itinerary_system").Option("missingkey=error").Parse(strings.Join([]string{
	"You are a helpful travel assistant. Using the provided information, generate:",
	"1. Top-rated attractions and activities at the destination.",
	"2. Suggestions aligned with user preferences (e.g., 'Hidden Gems').",
	"3. A well-structured itinerary with timing and grouping of activities for each day.",
	"",
	"Use the following inputs (some might be missing):",
	"City: {{.City}}, Budget: {{.Budget}} {{.Currency}}, Duration: {{.Duration}} days, Purpose: {{.Purpose}}, " +
		"Preferences: {{.Preferences}}, Dietary Preferences: {{.DietaryPreferences}}, Specific Interests: {{.SpecificInterests}}, " +
		"Mobility Concerns: {{.MobilityConcerns}}, Accommodation Preferences: {{.AccommodationPreferences}}, " +
		"Additional Input: {{.AdditionalInput}}.",
}, "\n")))

// RenderPrompt builds the system and human messages for one itinerary
// request from already-normalized preferences.
func RenderPrompt(p domain.TripPreferences) ([]domain.ChatMessage, error) {
	var b strings.Builder
	if err := systemTemplate.Execute(&b, p); err != nil {
		return nil, fmt.Errorf("planner: render prompt: %w", err)
	}
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: b.String()},
		{Role: domain.RoleUser, Content: humanTurn},
	}, nil
}
