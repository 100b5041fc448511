package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m4xw311/tgpt/config"
	"github.com/m4xw311/tgpt/errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the message list sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the interface for interacting with a Large Language Model.
// Chat blocks until the model replies or ctx is done.
type Client interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// APIError is returned when the remote API answers with a non-success
// status. Body holds the raw error payload.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

// New creates the client selected by cfg.LLMClient. Credentials are expected
// to have been checked by cfg.Validate.
func New(ctx context.Context, cfg *config.Config) (Client, error) {
	switch cfg.LLMClient {
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model, cfg.RequestTimeout)
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg.AnthropicAPIKey, cfg.Model, cfg.RequestTimeout)
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.Model, cfg.RequestTimeout)
	case config.ProviderBedrock:
		return NewBedrockClient(ctx, cfg.AWSRegion, cfg.Model, cfg.RequestTimeout)
	case config.ProviderMock:
		return &MockClient{}, nil
	default:
		return nil, errors.New("unknown llm client '%s'", cfg.LLMClient)
	}
}

type requestIDKey struct{}

// WithRequestID attaches a correlation id that clients forward to the API
// where the provider supports it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// withTimeout bounds ctx when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// responseBody returns the raw body of a failed response. The SDKs buffer the
// body before building their error, so it is still readable here.
func responseBody(res *http.Response, fallback string) string {
	if res == nil || res.Body == nil {
		return fallback
	}
	data, err := io.ReadAll(res.Body)
	if err != nil || len(data) == 0 {
		return fallback
	}
	return strings.TrimSpace(string(data))
}

// splitSystem separates the system instruction from the conversation, for
// providers that take it out of band.
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	var rest []Message
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

// MockClient is an offline client for tests and the "mock" provider. With no
// Reply or Err set it echoes the last message back.
type MockClient struct {
	Reply string
	Err   error
	Calls [][]Message
}

func (m *MockClient) Chat(ctx context.Context, messages []Message) (string, error) {
	m.Calls = append(m.Calls, append([]Message(nil), messages...))
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	if m.Reply != "" {
		return m.Reply, nil
	}
	if len(messages) == 0 {
		return "", errors.New("no messages to answer")
	}
	return fmt.Sprintf("I am a mock LLM. You said: '%s'.", messages[len(messages)-1].Content), nil
}
