package web

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// maxBodyBytes bounds the itinerary request body.
const maxBodyBytes = 64 << 10

// NewRouter builds the HTTP surface: the form page, the itinerary API and a
// liveness probe. requestTimeout should exceed the LLM client timeout.
func NewRouter(app *App, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	if requestTimeout > 0 {
		r.Use(chiMiddleware.Timeout(requestTimeout))
	}

	r.Get("/", app.handleIndex)
	r.Post("/itinerary", app.handleItinerary)

	return r
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := a.IndexPage(r.Context(), sessionFromRequest(r))
	if err != nil {
		a.logger.ErrorContext(r.Context(), "render index failed", "err", err, "request_id", chiMiddleware.GetReqID(r.Context()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (a *App) handleItinerary(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeResult(w, a.ErrorResult(invalidBody(err), ""))
		return
	}

	res := a.GenerateItinerary(r.Context(), body, sessionFromRequest(r))
	if res.Status == http.StatusOK {
		http.SetCookie(w, a.SessionCookie(res.SessionID))
	}
	writeResult(w, res)
}

func sessionFromRequest(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func writeResult(w http.ResponseWriter, res Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.Status)
	_, _ = w.Write(res.Body)
}
