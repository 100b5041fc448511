package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m4xw311/tgpt/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

func newCompletionServer(t *testing.T, status int, body string, captured *capturedRequest, header *http.Header) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if header != nil {
			*header = r.Header.Clone()
		}
		if captured != nil {
			data, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			assert.NoError(t, json.Unmarshal(data, captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const completionOK = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-3.5-turbo",
  "choices": [
    {"index": 0, "message": {"role": "assistant", "content": "Hi there"}, "finish_reason": "stop"}
  ]
}`

func TestOpenAIClientChat(t *testing.T) {
	var got capturedRequest
	var header http.Header
	srv := newCompletionServer(t, http.StatusOK, completionOK, &got, &header)

	client, err := NewOpenAIClient("test-key", srv.URL+"/", "gpt-3.5-turbo", 0)
	require.NoError(t, err)

	ctx := WithRequestID(context.Background(), "turn-1")
	reply, err := client.Chat(ctx, []Message{
		{Role: RoleSystem, Content: "You are a helpful assistant."},
		{Role: RoleUser, Content: "Hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", reply)

	assert.Equal(t, "gpt-3.5-turbo", got.Model)
	assert.Equal(t, []Message{
		{Role: RoleSystem, Content: "You are a helpful assistant."},
		{Role: RoleUser, Content: "Hello"},
	}, got.Messages)
	assert.Equal(t, "turn-1", header.Get("X-Client-Request-Id"))
}

func TestOpenAIClientAPIError(t *testing.T) {
	body := `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","param":null,"code":"invalid_api_key"}}`
	srv := newCompletionServer(t, http.StatusUnauthorized, body, nil, nil)

	client, err := NewOpenAIClient("test-key", srv.URL+"/", "gpt-3.5-turbo", 0)
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "Hello"}})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "expected *APIError, got %v", err)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "Incorrect API key provided")
}

func TestOpenAIClientRequiresKey(t *testing.T) {
	_, err := NewOpenAIClient("", "", "gpt-3.5-turbo", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestConvertMessagesToOpenAI(t *testing.T) {
	out := convertMessagesToOpenAI([]Message{
		{Role: RoleSystem, Content: "s"},
		{Role: RoleUser, Content: "u"},
		{Role: RoleAssistant, Content: "a"},
	})
	require.Len(t, out, 3)
	assert.NotNil(t, out[0].OfSystem)
	assert.NotNil(t, out[1].OfUser)
	assert.NotNil(t, out[2].OfAssistant)
}

func TestConvertMessagesToAnthropic(t *testing.T) {
	system, rest := splitSystem([]Message{
		{Role: RoleSystem, Content: "be nice"},
		{Role: RoleUser, Content: "Hello"},
		{Role: RoleAssistant, Content: "Hi"},
	})
	assert.Equal(t, "be nice", system)

	out := convertMessagesToAnthropic(rest)
	require.Len(t, out, 2)
	assert.Equal(t, "user", string(out[0].Role))
	assert.Equal(t, "assistant", string(out[1].Role))
}

func TestConvertMessagesToGemini(t *testing.T) {
	out := convertMessagesToGemini([]Message{
		{Role: RoleUser, Content: "Hello"},
		{Role: RoleAssistant, Content: "Hi"},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "user", out[0].Role)
	assert.Equal(t, "model", out[1].Role)
}

func TestNewSelectsProvider(t *testing.T) {
	cfg := config.Default()
	cfg.LLMClient = config.ProviderMock
	client, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &MockClient{}, client)

	cfg.LLMClient = config.ProviderOpenAI
	cfg.OpenAIAPIKey = "k"
	client, err = New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, client)

	cfg.LLMClient = "nope"
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestGeminiClientClose(t *testing.T) {
	cfg := config.Default()
	cfg.LLMClient = config.ProviderGemini
	cfg.GeminiAPIKey = "k"
	client, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.IsType(t, &GeminiClient{}, client)

	closer, ok := client.(io.Closer)
	require.True(t, ok, "Gemini client must be closable")
	assert.NoError(t, closer.Close())
}

func TestMockClient(t *testing.T) {
	m := &MockClient{}
	reply, err := m.Chat(context.Background(), []Message{{Role: RoleUser, Content: "ping"}})
	require.NoError(t, err)
	assert.True(t, strings.Contains(reply, "ping"))
	assert.Len(t, m.Calls, 1)

	m.Err = &APIError{StatusCode: 500, Body: "down"}
	_, err = m.Chat(context.Background(), []Message{{Role: RoleUser, Content: "ping"}})
	assert.EqualError(t, err, "API request failed with status 500: down")
}
