package llm

import (
	"context"
	"time"

	"github.com/m4xw311/tgpt/errors"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// OpenAIClient is a client for the OpenAI Chat Completion API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a new OpenAIClient. baseURL may be empty to use the
// public endpoint. Retries are disabled: a failed call is reported to the
// user, who decides whether to send again.
func NewOpenAIClient(apiKey, baseURL, modelName string, timeout time.Duration) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		options = append(options, option.WithRequestTimeout(timeout))
	}

	c := openai.NewClient(options...)
	// The &c is required, do not replace and just use c
	return &OpenAIClient{client: &c, model: modelName}, nil
}

// Chat sends the message list to OpenAI and returns the text of the first
// choice.
func (o *OpenAIClient) Chat(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: convertMessagesToOpenAI(messages),
	}

	var opts []option.RequestOption
	if id := requestID(ctx); id != "" {
		opts = append(opts, option.WithHeader("X-Client-Request-Id", id))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params, opts...)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &APIError{
				StatusCode: apiErr.StatusCode,
				Body:       responseBody(apiErr.Response, apiErr.RawJSON()),
			}
		}
		return "", errors.Wrapf(err, "failed to send message to OpenAI")
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("OpenAI response contained no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// convertMessagesToOpenAI converts our message format to OpenAI's.
func convertMessagesToOpenAI(messages []Message) []openai.ChatCompletionMessageParamUnion {
	chatMessages := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			chatMessages = append(chatMessages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			chatMessages = append(chatMessages, openai.AssistantMessage(msg.Content))
		default:
			chatMessages = append(chatMessages, openai.UserMessage(msg.Content))
		}
	}
	return chatMessages
}
