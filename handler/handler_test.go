package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"trip-planner/internal/domain"
	"trip-planner/internal/planner"
	"trip-planner/internal/web"
)

type stubGenerator struct {
	out planner.GenerateOutput
	err error
	in  planner.GenerateInput
	rec domain.TripPreferenceRecord
}

func (s *stubGenerator) Generate(_ context.Context, in planner.GenerateInput) (planner.GenerateOutput, error) {
	s.in = in
	return s.out, s.err
}

func (s *stubGenerator) Session(_ context.Context, id string) (domain.TripPreferenceRecord, bool, error) {
	if id == "" || id != s.rec.SessionID {
		return domain.TripPreferenceRecord{}, false, nil
	}
	return s.rec, true, nil
}

type itineraryBody struct {
	SessionID     string `json:"sessionId"`
	Itinerary     string `json:"itinerary"`
	ItineraryHTML string `json:"itineraryHtml"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func makeEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/itinerary",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func mustNewHandler(t *testing.T, gen web.Generator) *Handler {
	t.Helper()
	app, err := web.NewApp(gen, nil, time.Hour)
	require.NoError(t, err)
	h, err := NewHandler(app)
	require.NoError(t, err)
	return h
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestHandle_HappyPath(t *testing.T) {
	gen := &stubGenerator{out: planner.GenerateOutput{SessionID: "sess-1", Itinerary: "## Day 1"}}
	h := mustNewHandler(t, gen)

	resp, err := h.Handle(context.Background(), makeEvent(`{"city":"Paris","duration":2}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Paris", gen.in.Preferences.City)
	require.Equal(t, 2, gen.in.Preferences.Duration)

	out := parseBody[itineraryBody](t, resp.Body)
	require.Equal(t, "sess-1", out.SessionID)
	require.Equal(t, "## Day 1", out.Itinerary)
	require.Contains(t, out.ItineraryHTML, "<h2>Day 1</h2>")
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
	require.Contains(t, resp.Headers["Set-Cookie"], "planner_session=sess-1")
}

func TestHandle_SessionFromCookie(t *testing.T) {
	gen := &stubGenerator{out: planner.GenerateOutput{SessionID: "sess-2"}}
	h := mustNewHandler(t, gen)

	event := makeEvent(`{"city":"Rome"}`)
	event.Headers["cookie"] = "planner_session=sess-2"
	_, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "sess-2", gen.in.SessionID)
}

func TestHandle_Base64Body(t *testing.T) {
	gen := &stubGenerator{out: planner.GenerateOutput{SessionID: "sess-3"}}
	h := mustNewHandler(t, gen)

	event := makeEvent(base64.StdEncoding.EncodeToString([]byte(`{"city":"Oslo"}`)))
	event.IsBase64Encoded = true
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Oslo", gen.in.Preferences.City)

	event = makeEvent("%%%")
	event.IsBase64Encoded = true
	resp, err = h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandle_InvalidBody(t *testing.T) {
	h := mustNewHandler(t, &stubGenerator{})

	resp, err := h.Handle(context.Background(), makeEvent(`not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Empty(t, resp.Headers["Set-Cookie"])

	out := parseBody[errorBody](t, resp.Body)
	require.Equal(t, string(planner.ErrorInvalidInput), out.Error)
}

func TestHandle_MapsPlannerErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid input", err: &planner.Error{Code: planner.ErrorInvalidInput, Reason: "unsupported_currency"}, status: http.StatusBadRequest, code: string(planner.ErrorInvalidInput)},
		{name: "credentials", err: &planner.Error{Code: planner.ErrorCredentials, Reason: "llm_credentials_unavailable"}, status: http.StatusInternalServerError, code: string(planner.ErrorCredentials)},
		{name: "rate limited", err: &planner.Error{Code: planner.ErrorRateLimited, Reason: "llm_quota_exceeded"}, status: http.StatusTooManyRequests, code: string(planner.ErrorRateLimited)},
		{name: "timeout", err: &planner.Error{Code: planner.ErrorUpstreamTimeout, Reason: "llm_timeout"}, status: http.StatusGatewayTimeout, code: string(planner.ErrorUpstreamTimeout)},
		{name: "upstream", err: &planner.Error{Code: planner.ErrorUpstream, Reason: "llm_error"}, status: http.StatusBadGateway, code: string(planner.ErrorUpstream)},
		{name: "internal", err: &planner.Error{Code: planner.ErrorInternal, Reason: "session_save_error"}, status: http.StatusInternalServerError, code: string(planner.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(planner.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := mustNewHandler(t, &stubGenerator{err: tc.err})

			resp, err := h.Handle(context.Background(), makeEvent(`{"city":"Paris"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorBody](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
			require.Equal(t, tc.err.Error(), out.Message)
		})
	}
}

func TestHandle_IndexPage(t *testing.T) {
	gen := &stubGenerator{rec: domain.TripPreferenceRecord{
		SessionID:       "sess-1",
		TripPreferences: domain.TripPreferences{City: "Lima", Currency: "USD"},
		Itinerary:       "Ceviche tour",
	}}
	h := mustNewHandler(t, gen)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		Path:       "/",
		Headers:    map[string]string{"Cookie": "planner_session=sess-1"},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/html; charset=utf-8", resp.Headers["Content-Type"])
	require.Contains(t, resp.Body, `value="Lima"`)
	require.Contains(t, resp.Body, "<p>Ceviche tour</p>")
}

func TestHandle_HealthAndNotFound(t *testing.T) {
	h := mustNewHandler(t, &stubGenerator{})

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/health"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = h.Handle(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodDelete, Path: "/itinerary"})
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h := mustNewHandler(t, &stubGenerator{out: planner.GenerateOutput{SessionID: "sess-1"}})

	event := makeEvent(`{"city":"Paris"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}
