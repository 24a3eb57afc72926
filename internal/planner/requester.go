package planner

import (
	"context"
	"errors"
	"strings"

	"trip-planner/internal/domain"
)

// Temperature is fixed so the same preferences yield the same itinerary.
const Temperature = 0.0

type LLMClient interface {
	Chat(ctx context.Context, req domain.ChatRequest) (string, error)
}

// Requester renders the itinerary prompt and performs the single outbound
// generation call.
type Requester struct {
	llm   LLMClient
	model string
}

func NewRequester(llm LLMClient, model string) (*Requester, error) {
	if llm == nil {
		return nil, errors.New("planner: llm client must not be nil")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("planner: model must not be empty")
	}
	return &Requester{llm: llm, model: model}, nil
}

// Request sends the prompt for rec and returns the response text verbatim.
// On success the text replaces rec.Itinerary and is appended to
// rec.MessageHistory; on failure rec is not touched.
func (r *Requester) Request(ctx context.Context, rec *domain.TripPreferenceRecord) (string, error) {
	if rec == nil {
		return "", newError(ErrorInternal, "nil_record", nil)
	}
	messages, err := RenderPrompt(rec.TripPreferences)
	if err != nil {
		return "", newError(ErrorInternal, "prompt_render_error", err)
	}

	text, err := r.llm.Chat(ctx, domain.ChatRequest{
		Model:       r.model,
		Temperature: Temperature,
		Messages:    messages,
	})
	if err != nil {
		return "", classifyLLMError(err)
	}

	rec.Itinerary = text
	rec.MessageHistory = append(rec.MessageHistory, domain.ChatMessage{
		Role:    domain.RoleAssistant,
		Content: text,
	})
	return text, nil
}

func (r *Requester) Model() string {
	return r.model
}
