package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"trip-planner/internal/domain"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type pageData struct {
	SessionID     string
	Prefs         domain.TripPreferences
	Currencies    []string
	Purposes      []string
	Itinerary     string
	ItineraryHTML template.HTML
}

// IndexPage renders the form, pre-filled from the session when it exists.
// Fields show what the user typed last, not the normalized values.
func (a *App) IndexPage(ctx context.Context, sessionID string) ([]byte, error) {
	data := pageData{
		Prefs:      domain.TripPreferences{Currency: domain.Currencies[0]},
		Currencies: domain.Currencies,
		Purposes:   domain.Purposes,
	}

	rec, found, err := a.gen.Session(ctx, sessionID)
	if err != nil {
		a.logger.WarnContext(ctx, "session load failed, rendering empty form", "session_id", sessionID, "err", err)
	}
	if found {
		data.SessionID = rec.SessionID
		data.Prefs = rec.FormInput
		if rec.FormInput == (domain.TripPreferences{}) {
			data.Prefs = rec.TripPreferences
		}
		data.Itinerary = rec.Itinerary
		html, err := RenderItinerary(rec.Itinerary)
		if err != nil {
			a.logger.WarnContext(ctx, "itinerary markdown render failed", "session_id", sessionID, "err", err)
		}
		// goldmark output escapes raw HTML from the model.
		data.ItineraryHTML = template.HTML(html) //nolint:gosec
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("web: render page: %w", err)
	}
	return buf.Bytes(), nil
}
