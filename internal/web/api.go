// Package web serves the trip planner page and its JSON API. App holds the
// transport-independent request handling shared by the chi router and the
// Lambda handler.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"trip-planner/internal/domain"
	"trip-planner/internal/planner"
)

const SessionCookieName = "planner_session"

// Generator is the planner surface used by the web layer.
type Generator interface {
	Generate(ctx context.Context, in planner.GenerateInput) (planner.GenerateOutput, error)
	Session(ctx context.Context, sessionID string) (domain.TripPreferenceRecord, bool, error)
}

type itineraryRequest struct {
	SessionID                string          `json:"sessionId"`
	City                     string          `json:"city"`
	Budget                   string          `json:"budget"`
	Currency                 string          `json:"currency"`
	Duration                 json.RawMessage `json:"duration"`
	Purpose                  string          `json:"purpose"`
	Preferences              string          `json:"preferences"`
	DietaryPreferences       string          `json:"dietaryPreferences"`
	SpecificInterests        string          `json:"specificInterests"`
	MobilityConcerns         string          `json:"mobilityConcerns"`
	AccommodationPreferences string          `json:"accommodationPreferences"`
	AdditionalInput          string          `json:"additionalInput"`
}

type itineraryResponse struct {
	SessionID     string                 `json:"sessionId"`
	Itinerary     string                 `json:"itinerary"`
	ItineraryHTML string                 `json:"itineraryHtml"`
	Preferences   domain.TripPreferences `json:"preferences"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Result is a rendered API response ready to be written by a transport.
type Result struct {
	Status    int
	Body      []byte
	SessionID string
}

type App struct {
	gen        Generator
	logger     *slog.Logger
	sessionTTL time.Duration
}

func NewApp(gen Generator, logger *slog.Logger, sessionTTL time.Duration) (*App, error) {
	if gen == nil {
		return nil, errors.New("web: generator must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{gen: gen, logger: logger, sessionTTL: sessionTTL}, nil
}

func invalidBody(err error) error {
	return &planner.Error{Code: planner.ErrorInvalidInput, Reason: "invalid_body", Err: err}
}

func decodeItineraryRequest(body []byte) (planner.GenerateInput, error) {
	var req itineraryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return planner.GenerateInput{}, &planner.Error{Code: planner.ErrorInvalidInput, Reason: "invalid_json", Err: err}
	}
	t := strings.TrimSpace
	return planner.GenerateInput{
		SessionID: t(req.SessionID),
		Preferences: domain.TripPreferences{
			City:                     t(req.City),
			Budget:                   t(req.Budget),
			Currency:                 domain.CanonicalCurrency(t(req.Currency)),
			Duration:                 parseDuration(req.Duration),
			Purpose:                  domain.CanonicalPurpose(t(req.Purpose)),
			Preferences:              t(req.Preferences),
			DietaryPreferences:       t(req.DietaryPreferences),
			SpecificInterests:        t(req.SpecificInterests),
			MobilityConcerns:         t(req.MobilityConcerns),
			AccommodationPreferences: t(req.AccommodationPreferences),
			AdditionalInput:          t(req.AdditionalInput),
		},
	}, nil
}

// parseDuration accepts a JSON integer or a quoted integer. Anything else,
// including fractions and out-of-range numbers, yields 0 so the planner
// applies its default duration.
func parseDuration(raw json.RawMessage) int {
	v := strings.TrimSpace(string(raw))
	if v == "" || v == "null" {
		return 0
	}
	if unquoted, err := strconv.Unquote(v); err == nil {
		v = strings.TrimSpace(unquoted)
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// GenerateItinerary runs one generate action. cookieSession is used when the
// body carries no session id.
func (a *App) GenerateItinerary(ctx context.Context, body []byte, cookieSession string) Result {
	in, err := decodeItineraryRequest(body)
	if err != nil {
		return a.ErrorResult(err, "")
	}
	if in.SessionID == "" {
		in.SessionID = strings.TrimSpace(cookieSession)
	}

	out, err := a.gen.Generate(ctx, in)
	if err != nil {
		a.logger.ErrorContext(ctx, "itinerary generation failed", "session_id", in.SessionID, "err", err)
		return a.ErrorResult(err, in.SessionID)
	}

	html, err := RenderItinerary(out.Itinerary)
	if err != nil {
		// The raw itinerary is still usable; the page falls back to plain text.
		a.logger.WarnContext(ctx, "itinerary markdown render failed", "session_id", out.SessionID, "err", err)
		html = ""
	}

	resp := itineraryResponse{
		SessionID:     out.SessionID,
		Itinerary:     out.Itinerary,
		ItineraryHTML: html,
		Preferences:   out.Preferences,
	}
	return Result{Status: http.StatusOK, Body: mustJSON(resp), SessionID: out.SessionID}
}

// ErrorResult renders err as the JSON error body with its mapped status.
func (a *App) ErrorResult(err error, sessionID string) Result {
	status, code := StatusFor(err)
	return Result{
		Status:    status,
		Body:      mustJSON(errorResponse{Error: code, Message: err.Error()}),
		SessionID: sessionID,
	}
}

// StatusFor maps an error to its HTTP status and public error code.
func StatusFor(err error) (int, string) {
	var perr *planner.Error
	if !errors.As(err, &perr) {
		return http.StatusInternalServerError, string(planner.ErrorInternal)
	}
	switch perr.Code {
	case planner.ErrorInvalidInput:
		return http.StatusBadRequest, string(perr.Code)
	case planner.ErrorRateLimited:
		return http.StatusTooManyRequests, string(perr.Code)
	case planner.ErrorUpstreamTimeout:
		return http.StatusGatewayTimeout, string(perr.Code)
	case planner.ErrorUpstream:
		return http.StatusBadGateway, string(perr.Code)
	case planner.ErrorCredentials:
		return http.StatusInternalServerError, string(perr.Code)
	default:
		return http.StatusInternalServerError, string(planner.ErrorInternal)
	}
}

// SessionCookie builds the cookie that carries the session id between
// requests.
func (a *App) SessionCookie(sessionID string) *http.Cookie {
	c := &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if a.sessionTTL > 0 {
		c.MaxAge = int(a.sessionTTL.Seconds())
	}
	return c
}

// SessionFromCookieHeader extracts the session id from a raw Cookie header.
func SessionFromCookieHeader(header string) string {
	if header == "" {
		return ""
	}
	cookies, err := http.ParseCookie(header)
	if err != nil {
		return ""
	}
	for _, c := range cookies {
		if c.Name == SessionCookieName {
			return c.Value
		}
	}
	return ""
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("web: marshal %T: %v", v, err))
	}
	return b
}
