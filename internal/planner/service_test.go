package planner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trip-planner/internal/domain"
	"trip-planner/internal/integrations/gemini"
	"trip-planner/internal/integrations/openai"
)

type mockLLM struct {
	answer    string
	err       error
	captured  domain.ChatRequest
	callCount int
}

func (m *mockLLM) Chat(_ context.Context, req domain.ChatRequest) (string, error) {
	m.callCount++
	m.captured = req
	return m.answer, m.err
}

type mockSessions struct {
	records  map[string]domain.TripPreferenceRecord
	loadErr  error
	saveErr  error
	saved    []domain.TripPreferenceRecord
	loadedID string
}

func newMockSessions() *mockSessions {
	return &mockSessions{records: map[string]domain.TripPreferenceRecord{}}
}

func (m *mockSessions) Load(_ context.Context, id string) (domain.TripPreferenceRecord, bool, error) {
	m.loadedID = id
	if m.loadErr != nil {
		return domain.TripPreferenceRecord{}, false, m.loadErr
	}
	rec, ok := m.records[id]
	return rec, ok, nil
}

func (m *mockSessions) Save(_ context.Context, rec domain.TripPreferenceRecord) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, rec)
	m.records[rec.SessionID] = rec
	return nil
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

const sessionA = "6f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3d4e5f"

func newTestService(t *testing.T, llm LLMClient, s SessionStore) *Service {
	t.Helper()
	r, err := NewRequester(llm, "llama-3.3-70b-versatile")
	require.NoError(t, err)
	svc, err := NewService(r, s)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return svc
}

func expectPlannerError(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var plannerErr *Error
	require.ErrorAs(t, err, &plannerErr)
	require.Equal(t, code, plannerErr.Code)
	require.Equal(t, reason, plannerErr.Reason)
}

func TestNewRequester_ValidatesDependencies(t *testing.T) {
	_, err := NewRequester(nil, "model")
	require.Error(t, err)

	_, err = NewRequester(&mockLLM{}, " ")
	require.Error(t, err)
}

func TestNewService_ValidatesDependencies(t *testing.T) {
	r, err := NewRequester(&mockLLM{}, "model")
	require.NoError(t, err)

	_, err = NewService(nil, newMockSessions())
	require.Error(t, err)

	_, err = NewService(r, nil)
	require.Error(t, err)
}

func TestRequester_SendsFixedModelAndZeroTemperature(t *testing.T) {
	llm := &mockLLM{answer: "## Day 1"}
	r, err := NewRequester(llm, "llama-3.3-70b-versatile")
	require.NoError(t, err)

	rec := Normalize(domain.TripPreferenceRecord{TripPreferences: domain.TripPreferences{City: "Paris"}})
	text, err := r.Request(context.Background(), &rec)
	require.NoError(t, err)
	require.Equal(t, "## Day 1", text)

	require.Equal(t, "llama-3.3-70b-versatile", llm.captured.Model)
	require.Zero(t, llm.captured.Temperature)
	require.Len(t, llm.captured.Messages, 2)
	require.Contains(t, llm.captured.Messages[0].Content, "City: Paris")
	require.Equal(t, "llama-3.3-70b-versatile", r.Model())
}

func TestRequester_SuccessUpdatesItineraryAndHistory(t *testing.T) {
	r, err := NewRequester(&mockLLM{answer: "new plan"}, "m")
	require.NoError(t, err)

	rec := domain.TripPreferenceRecord{
		Itinerary:      "old plan",
		MessageHistory: []domain.ChatMessage{{Role: domain.RoleAssistant, Content: "old plan"}},
	}
	_, err = r.Request(context.Background(), &rec)
	require.NoError(t, err)
	require.Equal(t, "new plan", rec.Itinerary)
	require.Equal(t, []domain.ChatMessage{
		{Role: domain.RoleAssistant, Content: "old plan"},
		{Role: domain.RoleAssistant, Content: "new plan"},
	}, rec.MessageHistory)
}

func TestRequester_ReturnsResponseVerbatim(t *testing.T) {
	raw := "  **Day 1**\n\n- Louvre\n  "
	r, err := NewRequester(&mockLLM{answer: raw}, "m")
	require.NoError(t, err)

	rec := domain.TripPreferenceRecord{}
	text, err := r.Request(context.Background(), &rec)
	require.NoError(t, err)
	require.Equal(t, raw, text)
	require.Equal(t, raw, rec.Itinerary)
}

func TestRequester_FailureLeavesRecordUntouched(t *testing.T) {
	r, err := NewRequester(&mockLLM{err: errors.New("connection reset by peer")}, "m")
	require.NoError(t, err)

	history := []domain.ChatMessage{{Role: domain.RoleAssistant, Content: "old plan"}}
	rec := domain.TripPreferenceRecord{Itinerary: "old plan", MessageHistory: history}
	_, err = r.Request(context.Background(), &rec)
	expectPlannerError(t, err, ErrorUpstream, "llm_error")
	require.Contains(t, err.Error(), "connection reset by peer")
	require.Equal(t, "old plan", rec.Itinerary)
	require.Equal(t, history, rec.MessageHistory)
}

func TestRequester_NilRecord(t *testing.T) {
	r, err := NewRequester(&mockLLM{}, "m")
	require.NoError(t, err)
	_, err = r.Request(context.Background(), nil)
	expectPlannerError(t, err, ErrorInternal, "nil_record")
}

func TestRequester_ClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   ErrorCode
		reason string
	}{
		{name: "missing key", err: fmt.Errorf("openai: %w", domain.ErrCredentials), code: ErrorCredentials, reason: "llm_credentials_unavailable"},
		{name: "401", err: &openai.HTTPStatusError{StatusCode: http.StatusUnauthorized, Body: "invalid api key"}, code: ErrorCredentials, reason: "llm_unauthorized"},
		{name: "403", err: &openai.HTTPStatusError{StatusCode: http.StatusForbidden}, code: ErrorCredentials, reason: "llm_unauthorized"},
		{name: "429", err: &openai.HTTPStatusError{StatusCode: http.StatusTooManyRequests, Body: "quota exceeded"}, code: ErrorRateLimited, reason: "llm_quota_exceeded"},
		{name: "gemini 429", err: &gemini.StatusError{StatusCode: http.StatusTooManyRequests, Err: errors.New("Resource has been exhausted")}, code: ErrorRateLimited, reason: "llm_quota_exceeded"},
		{name: "gemini 403", err: &gemini.StatusError{StatusCode: http.StatusForbidden, Err: errors.New("API key not valid")}, code: ErrorCredentials, reason: "llm_unauthorized"},
		{name: "500", err: &openai.HTTPStatusError{StatusCode: http.StatusInternalServerError}, code: ErrorUpstream, reason: "llm_error"},
		{name: "deadline", err: fmt.Errorf("openai: request failed: %w", context.DeadlineExceeded), code: ErrorUpstreamTimeout, reason: "llm_timeout"},
		{name: "net timeout", err: fmt.Errorf("openai: request failed: %w", timeoutErr{}), code: ErrorUpstreamTimeout, reason: "llm_timeout"},
		{name: "malformed", err: errors.New("openai: decode response: invalid character"), code: ErrorUpstream, reason: "llm_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewRequester(&mockLLM{err: tc.err}, "m")
			require.NoError(t, err)
			rec := domain.TripPreferenceRecord{}
			_, err = r.Request(context.Background(), &rec)
			expectPlannerError(t, err, tc.code, tc.reason)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestGenerate_HappyPath_NewSession(t *testing.T) {
	prev := newUUID
	newUUID = func() string { return "session-new" }
	t.Cleanup(func() { newUUID = prev })

	sessions := newMockSessions()
	svc := newTestService(t, &mockLLM{answer: "Day 1: Eiffel Tower"}, sessions)

	out, err := svc.Generate(context.Background(), GenerateInput{
		Preferences: domain.TripPreferences{City: "Paris"},
	})
	require.NoError(t, err)
	require.Equal(t, "session-new", out.SessionID)
	require.Equal(t, "Day 1: Eiffel Tower", out.Itinerary)
	require.Equal(t, "moderate", out.Preferences.Budget)
	require.Equal(t, "USD", out.Preferences.Currency)
	require.Equal(t, 3, out.Preferences.Duration)
	require.Equal(t, "Leisure", out.Preferences.Purpose)

	require.Len(t, sessions.saved, 1)
	saved := sessions.saved[0]
	require.Equal(t, "session-new", saved.SessionID)
	require.Equal(t, "Day 1: Eiffel Tower", saved.Itinerary)
	require.Len(t, saved.MessageHistory, 1)
	require.Equal(t, domain.RoleAssistant, saved.MessageHistory[0].Role)
	require.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), saved.UpdatedAt)
}

func TestGenerate_ExistingSession_ReplacesPreferencesAndAppendsHistory(t *testing.T) {
	sessions := newMockSessions()
	sessions.records[sessionA] = domain.TripPreferenceRecord{
		SessionID:       sessionA,
		TripPreferences: domain.TripPreferences{City: "Rome", DietaryPreferences: "vegan"},
		Itinerary:       "old",
		MessageHistory:  []domain.ChatMessage{{Role: domain.RoleAssistant, Content: "old"}},
	}
	svc := newTestService(t, &mockLLM{answer: "new"}, sessions)

	out, err := svc.Generate(context.Background(), GenerateInput{
		SessionID:   " " + sessionA + " ",
		Preferences: domain.TripPreferences{City: "Milan", Budget: "tight"},
	})
	require.NoError(t, err)
	require.Equal(t, sessionA, out.SessionID)
	require.Equal(t, sessionA, sessions.loadedID)

	saved := sessions.records[sessionA]
	require.Equal(t, "Milan", saved.City)
	require.Equal(t, "low", saved.Budget)
	require.Equal(t, "none", saved.DietaryPreferences)
	require.Equal(t, "new", saved.Itinerary)
	require.Len(t, saved.MessageHistory, 2)
	require.Equal(t, domain.TripPreferences{City: "Milan", Budget: "tight"}, saved.FormInput)
}

func TestGenerate_RejectsClientChosenSessionIDs(t *testing.T) {
	prev := newUUID
	newUUID = func() string { return "issued-by-service" }
	t.Cleanup(func() { newUUID = prev })

	cases := []struct {
		name       string
		id         string
		expectLoad bool
	}{
		{name: "short", id: "x"},
		{name: "oversized", id: strings.Repeat("a", 5007)},
		{name: "uuid with urn prefix", id: "urn:uuid:" + sessionA},
		{name: "braced uuid", id: "{" + sessionA + "}"},
		{name: "unknown uuid", id: "0b7d3c1e-2f4a-4b6c-9d8e-7f6a5b4c3d2e", expectLoad: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sessions := newMockSessions()
			svc := newTestService(t, &mockLLM{answer: "plan"}, sessions)

			out, err := svc.Generate(context.Background(), GenerateInput{SessionID: tc.id})
			require.NoError(t, err)
			require.Equal(t, "issued-by-service", out.SessionID)
			require.Contains(t, sessions.records, "issued-by-service")
			require.NotContains(t, sessions.records, tc.id)
			if tc.expectLoad {
				require.Equal(t, tc.id, sessions.loadedID)
			} else {
				require.Empty(t, sessions.loadedID)
			}
		})
	}
}

func TestGenerate_SessionIDIsCanonicalized(t *testing.T) {
	sessions := newMockSessions()
	sessions.records[sessionA] = domain.TripPreferenceRecord{SessionID: sessionA, Itinerary: "old"}
	svc := newTestService(t, &mockLLM{answer: "new"}, sessions)

	out, err := svc.Generate(context.Background(), GenerateInput{SessionID: strings.ToUpper(sessionA)})
	require.NoError(t, err)
	require.Equal(t, sessionA, out.SessionID)
	require.Equal(t, "new", sessions.records[sessionA].Itinerary)
}

func TestGenerate_LLMFailure_DoesNotSave(t *testing.T) {
	sessions := newMockSessions()
	sessions.records[sessionA] = domain.TripPreferenceRecord{SessionID: sessionA, Itinerary: "old"}
	svc := newTestService(t, &mockLLM{err: &openai.HTTPStatusError{StatusCode: http.StatusTooManyRequests, Body: "quota"}}, sessions)

	_, err := svc.Generate(context.Background(), GenerateInput{SessionID: sessionA})
	expectPlannerError(t, err, ErrorRateLimited, "llm_quota_exceeded")
	require.Contains(t, err.Error(), "quota")
	require.Empty(t, sessions.saved)
	require.Equal(t, "old", sessions.records[sessionA].Itinerary)
}

func TestGenerate_ValidationErrors(t *testing.T) {
	llm := &mockLLM{answer: "x"}
	svc := newTestService(t, llm, newMockSessions())

	_, err := svc.Generate(context.Background(), GenerateInput{Preferences: domain.TripPreferences{Currency: "XYZ"}})
	expectPlannerError(t, err, ErrorInvalidInput, "unsupported_currency")

	_, err = svc.Generate(context.Background(), GenerateInput{Preferences: domain.TripPreferences{Purpose: "Pilgrimage"}})
	expectPlannerError(t, err, ErrorInvalidInput, "unsupported_purpose")
	require.Zero(t, llm.callCount)
}

func TestGenerate_NegativeDurationIsNotAnError(t *testing.T) {
	svc := newTestService(t, &mockLLM{answer: "x"}, newMockSessions())
	out, err := svc.Generate(context.Background(), GenerateInput{Preferences: domain.TripPreferences{Duration: -4}})
	require.NoError(t, err)
	require.Equal(t, 3, out.Preferences.Duration)
}

func TestGenerate_SessionErrors(t *testing.T) {
	sessions := newMockSessions()
	sessions.loadErr = errors.New("dynamodb down")
	llm := &mockLLM{answer: "x"}
	svc := newTestService(t, llm, sessions)
	_, err := svc.Generate(context.Background(), GenerateInput{SessionID: sessionA})
	expectPlannerError(t, err, ErrorInternal, "session_load_error")
	require.Zero(t, llm.callCount)

	sessions = newMockSessions()
	sessions.saveErr = errors.New("write failed")
	svc = newTestService(t, &mockLLM{answer: "x"}, sessions)
	_, err = svc.Generate(context.Background(), GenerateInput{SessionID: sessionA})
	expectPlannerError(t, err, ErrorInternal, "session_save_error")
}

func TestSession(t *testing.T) {
	sessions := newMockSessions()
	sessions.records[sessionA] = domain.TripPreferenceRecord{SessionID: sessionA, Itinerary: "plan"}
	svc := newTestService(t, &mockLLM{}, sessions)

	rec, found, err := svc.Session(context.Background(), sessionA)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "plan", rec.Itinerary)

	_, found, err = svc.Session(context.Background(), "  ")
	require.NoError(t, err)
	require.False(t, found)

	sessions.loadedID = ""
	_, found, err = svc.Session(context.Background(), "not-a-uuid")
	require.NoError(t, err)
	require.False(t, found)
	require.Empty(t, sessions.loadedID)

	sessions.loadErr = errors.New("boom")
	_, _, err = svc.Session(context.Background(), sessionA)
	expectPlannerError(t, err, ErrorInternal, "session_load_error")
}
