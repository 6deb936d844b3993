package providers

import (
	"context"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type OpenAIClient struct {
	client  *openai.Client
	baseURL string
}

// OpenAi builds a client, falling back to OPENAI_API_BASE_URL and
// OPENAI_API_KEY for anything not set through options.
func OpenAi(opts ...ProviderOption) *OpenAIClient {
	params := applyOptions(opts)

	if params.BaseURL == "" {
		params.BaseURL = os.Getenv("OPENAI_API_BASE_URL")
		if params.BaseURL == "" {
			params.BaseURL = DefaultOpenAIBaseURL
		}
	}
	if params.APIKey == "" {
		params.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	reqOpts := []option.RequestOption{option.WithBaseURL(params.BaseURL)}
	if params.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(params.APIKey))
	}
	return &OpenAIClient{
		client:  openai.NewClient(reqOpts...),
		baseURL: params.BaseURL,
	}
}

func (c *OpenAIClient) BaseURL() string {
	return c.baseURL
}

func (c *OpenAIClient) Complete(ctx context.Context, model string, prompt string) (string, error) {
	chatCompletion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		}),
		Model: openai.F(openai.ChatModel(model)),
	})
	if err != nil {
		return "", err
	}
	if len(chatCompletion.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return chatCompletion.Choices[0].Message.Content, nil
}
