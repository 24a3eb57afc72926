package planner

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"trip-planner/internal/domain"
)

// SessionStore keeps one TripPreferenceRecord per interactive session.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (domain.TripPreferenceRecord, bool, error)
	Save(ctx context.Context, rec domain.TripPreferenceRecord) error
}

// Service runs the generate action for one session at a time: apply the
// submitted preferences, normalize them, request an itinerary and keep the
// result with the session.
type Service struct {
	requester *Requester
	sessions  SessionStore
	now       func() time.Time
}

type GenerateInput struct {
	SessionID   string
	Preferences domain.TripPreferences
}

type GenerateOutput struct {
	SessionID   string
	Preferences domain.TripPreferences
	Itinerary   string
}

func NewService(r *Requester, s SessionStore) (*Service, error) {
	if r == nil {
		return nil, errors.New("planner: requester must not be nil")
	}
	if s == nil {
		return nil, errors.New("planner: session store must not be nil")
	}
	return &Service{requester: r, sessions: s, now: time.Now}, nil
}

func (s *Service) Generate(ctx context.Context, in GenerateInput) (GenerateOutput, error) {
	if !domain.IsCurrency(in.Preferences.Currency) && in.Preferences.Currency != "" {
		return GenerateOutput{}, newError(ErrorInvalidInput, "unsupported_currency", nil)
	}
	if !domain.IsPurpose(in.Preferences.Purpose) {
		return GenerateOutput{}, newError(ErrorInvalidInput, "unsupported_purpose", nil)
	}

	var rec domain.TripPreferenceRecord
	found := false
	if id, ok := canonicalSessionID(in.SessionID); ok {
		loaded, exists, err := s.sessions.Load(ctx, id)
		if err != nil {
			return GenerateOutput{}, newError(ErrorInternal, "session_load_error", err)
		}
		if exists {
			rec, found = loaded, true
			rec.SessionID = id
		}
	}
	// Unknown or malformed ids are never adopted; the caller gets a fresh one.
	if !found {
		rec = domain.TripPreferenceRecord{SessionID: newUUID()}
	}
	sessionID := rec.SessionID

	rec.TripPreferences = in.Preferences
	rec.FormInput = in.Preferences
	rec = Normalize(rec)

	itinerary, err := s.requester.Request(ctx, &rec)
	if err != nil {
		return GenerateOutput{}, err
	}

	rec.UpdatedAt = s.now().UTC()
	if err := s.sessions.Save(ctx, rec); err != nil {
		return GenerateOutput{}, newError(ErrorInternal, "session_save_error", err)
	}

	return GenerateOutput{
		SessionID:   sessionID,
		Preferences: rec.TripPreferences,
		Itinerary:   itinerary,
	}, nil
}

// Session returns the stored record for display. An id that is not a UUID
// is reported as not found.
func (s *Service) Session(ctx context.Context, sessionID string) (domain.TripPreferenceRecord, bool, error) {
	sessionID, ok := canonicalSessionID(sessionID)
	if !ok {
		return domain.TripPreferenceRecord{}, false, nil
	}
	rec, found, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return domain.TripPreferenceRecord{}, false, newError(ErrorInternal, "session_load_error", err)
	}
	return rec, found, nil
}

// canonicalSessionID accepts only the canonical 36-character UUID form.
func canonicalSessionID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) != 36 {
		return "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

var newUUID = func() string {
	return uuid.NewString()
}
