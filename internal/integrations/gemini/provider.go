package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"trip-planner/internal/domain"
)

const DefaultModel = "gemini-2.0-flash"

type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// StatusError carries the HTTP status reported by the Gemini API.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini: status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Provider implements the planner LLM client on top of Gemini models. The
// SDK client is created on first use so that a missing key only fails the
// request that needed it.
type Provider struct {
	keys KeySource

	mu     sync.Mutex
	client *genai.Client
}

func NewProvider(keys KeySource) (*Provider, error) {
	if keys == nil {
		return nil, errors.New("gemini: key source must not be nil")
	}
	return &Provider{keys: keys}, nil
}

func (p *Provider) ensureClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}

	apiKey, err := p.keys.APIKey(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrCredentials) {
			err = fmt.Errorf("%w: %w", domain.ErrCredentials, err)
		}
		return nil, err
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is empty: %w", domain.ErrCredentials)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	p.client = client
	return client, nil
}

// Chat maps system messages onto the model's system instruction and sends
// the remaining messages as the prompt.
func (p *Provider) Chat(ctx context.Context, req domain.ChatRequest) (string, error) {
	if strings.TrimSpace(req.Model) == "" {
		return "", errors.New("gemini: model must not be empty")
	}
	system, parts := splitMessages(req.Messages)
	if len(parts) == 0 {
		return "", errors.New("gemini: no user content in request")
	}

	client, err := p.ensureClient(ctx)
	if err != nil {
		return "", err
	}

	model := client.GenerativeModel(req.Model)
	model.SetTemperature(float32(req.Temperature))
	if system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", wrapAPIError(err)
	}
	return responseText(resp)
}

func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}

func splitMessages(msgs []domain.ChatMessage) (string, []genai.Part) {
	var system []string
	var parts []genai.Part
	for _, m := range msgs {
		if m.Role == domain.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		parts = append(parts, genai.Text(m.Content))
	}
	return strings.Join(system, "\n\n"), parts
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini: no response candidates")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String(), nil
}

func wrapAPIError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &StatusError{StatusCode: apiErr.Code, Err: err}
	}
	return fmt.Errorf("gemini: generate content: %w", err)
}
