package llm

import (
	"context"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/m4xw311/tgpt/errors"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiClient is a client for the Google Gemini API.
type GeminiClient struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

// NewGeminiClient creates a new GeminiClient.
func NewGeminiClient(ctx context.Context, apiKey, modelName string, timeout time.Duration) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create genai client")
	}

	return &GeminiClient{
		client:  client,
		model:   client.GenerativeModel(modelName),
		timeout: timeout,
	}, nil
}

// Close releases the underlying genai client.
func (g *GeminiClient) Close() error {
	return g.client.Close()
}

// Chat sends a chat request to the Gemini API.
func (g *GeminiClient) Chat(ctx context.Context, messages []Message) (string, error) {
	systemPrompt, conversation := splitSystem(messages)
	if len(conversation) == 0 {
		return "", errors.New("no messages to send to Gemini")
	}
	if systemPrompt != "" {
		g.model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))
	}

	history := convertMessagesToGemini(conversation)

	// The last message is the new prompt.
	lastMessage := history[len(history)-1]

	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	chatSession := g.model.StartChat()
	chatSession.History = history[:len(history)-1]
	resp, err := chatSession.SendMessage(ctx, lastMessage.Parts...)
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			body := apiErr.Body
			if body == "" {
				body = apiErr.Message
			}
			return "", &APIError{StatusCode: apiErr.Code, Body: body}
		}
		return "", errors.Wrapf(err, "failed to send message to Gemini")
	}

	return processGeminiResponse(resp)
}

// convertMessagesToGemini converts our message format to Gemini's content
// list. Gemini calls the assistant role "model".
func convertMessagesToGemini(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	return contents
}

func processGeminiResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("received an empty response from Gemini")
	}

	var reply string
	for _, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			reply += string(v)
		default:
			return "", errors.New("unsupported part type in Gemini response: %T", v)
		}
	}
	return reply, nil
}
