package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/m4xw311/tgpt/errors"
)

const bedrockAnthropicVersion = "bedrock-2023-05-31"

// BedrockClient is a client for the Anthropic models on AWS Bedrock.
type BedrockClient struct {
	client  *bedrockruntime.Client
	modelID string
	timeout time.Duration
}

// NewBedrockClient creates a new BedrockClient. Credentials come from the
// default AWS chain; region may be empty to use the chain's region.
func NewBedrockClient(ctx context.Context, region, modelID string, timeout time.Duration) (*BedrockClient, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load AWS config")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	return &BedrockClient{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
		timeout: timeout,
	}, nil
}

// Chat sends a chat request to the Anthropic model via AWS Bedrock.
func (b *BedrockClient) Chat(ctx context.Context, messages []Message) (string, error) {
	requestBody, err := createBedrockRequest(messages)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create Bedrock request")
	}

	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	resp, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Body:        requestBody,
	})
	if err != nil {
		var respErr *awshttp.ResponseError
		if errors.As(err, &respErr) {
			return "", &APIError{StatusCode: respErr.HTTPStatusCode(), Body: respErr.Err.Error()}
		}
		return "", errors.Wrapf(err, "failed to invoke Bedrock model")
	}

	return processBedrockResponse(resp.Body)
}

type bedrockContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type bedrockMessage struct {
	Role    string           `json:"role"`
	Content []bedrockContent `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockResponse struct {
	Content []bedrockContent `json:"content"`
	Error   any              `json:"error,omitempty"`
}

// createBedrockRequest builds the Anthropic-on-Bedrock request body.
func createBedrockRequest(messages []Message) ([]byte, error) {
	systemPrompt, conversation := splitSystem(messages)

	request := bedrockRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        anthropicMaxTokens,
		System:           systemPrompt,
		Messages:         make([]bedrockMessage, 0, len(conversation)),
	}
	for _, msg := range conversation {
		role := RoleUser
		if msg.Role == RoleAssistant {
			role = RoleAssistant
		}
		request.Messages = append(request.Messages, bedrockMessage{
			Role:    role,
			Content: []bedrockContent{{Type: "text", Text: msg.Content}},
		})
	}
	return json.Marshal(request)
}

// processBedrockResponse extracts the reply text from a Bedrock response body.
func processBedrockResponse(body []byte) (string, error) {
	var response bedrockResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", errors.Wrapf(err, "failed to unmarshal Bedrock response")
	}
	if response.Error != nil {
		return "", errors.New("Bedrock API error: %v", response.Error)
	}

	var reply string
	for _, item := range response.Content {
		if item.Type == "text" {
			reply += item.Text
		}
	}
	return reply, nil
}
