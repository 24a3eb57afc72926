package domain

import "errors"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape used by the planner
// and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a single completion request handed to an LLM integration.
type ChatRequest struct {
	Model       string
	Temperature float64
	Messages    []ChatMessage
}

// ErrCredentials is wrapped by integrations when no usable API key could be
// obtained for the text-generation service.
var ErrCredentials = errors.New("llm credentials unavailable")
