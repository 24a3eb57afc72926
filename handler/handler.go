package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"trip-planner/internal/planner"
	"trip-planner/internal/web"
)

const correlationHeader = "X-Correlation-Id"

// Handler adapts API Gateway proxy events to the web App.
type Handler struct {
	app *web.App
}

func NewHandler(app *web.App) (*Handler, error) {
	if app == nil {
		return nil, errors.New("handler: app must not be nil")
	}
	return &Handler{app: app}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := slog.With("correlation_id", correlationID)

	path := strings.TrimSuffix(req.Path, "/")
	switch {
	case req.HTTPMethod == http.MethodGet && path == "":
		return h.index(ctx, req, correlationID, logger), nil
	case req.HTTPMethod == http.MethodGet && path == "/health":
		return response(http.StatusOK, "text/plain; charset=utf-8", ".", correlationID), nil
	case req.HTTPMethod == http.MethodPost && path == "/itinerary":
		return h.itinerary(ctx, req, correlationID, logger), nil
	default:
		return response(http.StatusNotFound, "text/plain; charset=utf-8", "not found", correlationID), nil
	}
}

func (h *Handler) index(ctx context.Context, req events.APIGatewayProxyRequest, correlationID string, logger *slog.Logger) events.APIGatewayProxyResponse {
	page, err := h.app.IndexPage(ctx, web.SessionFromCookieHeader(headerValue(req.Headers, "Cookie")))
	if err != nil {
		logger.ErrorContext(ctx, "render index failed", "err", err)
		return response(http.StatusInternalServerError, "text/plain; charset=utf-8", "internal error", correlationID)
	}
	return response(http.StatusOK, "text/html; charset=utf-8", string(page), correlationID)
}

func (h *Handler) itinerary(ctx context.Context, req events.APIGatewayProxyRequest, correlationID string, logger *slog.Logger) events.APIGatewayProxyResponse {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			res := h.app.ErrorResult(&planner.Error{Code: planner.ErrorInvalidInput, Reason: "invalid_base64_body", Err: err}, "")
			return response(res.Status, "application/json", string(res.Body), correlationID)
		}
		body = decoded
	}

	res := h.app.GenerateItinerary(ctx, body, web.SessionFromCookieHeader(headerValue(req.Headers, "Cookie")))
	resp := response(res.Status, "application/json", string(res.Body), correlationID)
	if res.Status == http.StatusOK {
		resp.Headers["Set-Cookie"] = h.app.SessionCookie(res.SessionID).String()
	} else {
		logger.WarnContext(ctx, "itinerary request failed", "status", res.Status, "session_id", res.SessionID)
	}
	return resp
}

func response(status int, contentType, body, correlationID string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    contentType,
			correlationHeader: correlationID,
		},
		Body: body,
	}
}

// headerValue looks up a header ignoring case; API Gateway passes headers as
// the client sent them.
func headerValue(headers map[string]string, key string) string {
	if v, ok := headers[key]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
