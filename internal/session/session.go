// Package session keeps one TripPreferenceRecord per interactive session.
// All stores return copies, so callers never share a record's history slice.
package session

import (
	"time"

	"trip-planner/internal/domain"
)

const DefaultTTL = time.Hour

// document is the serialized form of a record used by stores that keep
// opaque values.
type document struct {
	SessionID      string                 `json:"sessionId"`
	Preferences    domain.TripPreferences `json:"preferences"`
	FormInput      domain.TripPreferences `json:"formInput"`
	Itinerary      string                 `json:"itinerary"`
	MessageHistory []domain.ChatMessage   `json:"messageHistory"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

func toDocument(rec domain.TripPreferenceRecord) document {
	return document{
		SessionID:      rec.SessionID,
		Preferences:    rec.TripPreferences,
		FormInput:      rec.FormInput,
		Itinerary:      rec.Itinerary,
		MessageHistory: rec.MessageHistory,
		UpdatedAt:      rec.UpdatedAt,
	}
}

func (d document) record() domain.TripPreferenceRecord {
	return domain.TripPreferenceRecord{
		SessionID:       d.SessionID,
		TripPreferences: d.Preferences,
		FormInput:       d.FormInput,
		Itinerary:       d.Itinerary,
		MessageHistory:  d.MessageHistory,
		UpdatedAt:       d.UpdatedAt,
	}
}

func clone(rec domain.TripPreferenceRecord) domain.TripPreferenceRecord {
	if rec.MessageHistory != nil {
		rec.MessageHistory = append([]domain.ChatMessage(nil), rec.MessageHistory...)
	}
	return rec
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
