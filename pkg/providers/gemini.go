package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.0-flash-exp"

type GeminiClient struct {
	client *genai.Client
}

// Gemini builds a client for the Gemini API. The key comes from the options
// or GEMINI_API_KEY.
func Gemini(ctx context.Context, opts ...ProviderOption) (*GeminiClient, error) {
	params := applyOptions(opts)
	if params.APIKey == "" {
		params.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if params.APIKey == "" {
		return nil, fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingAPIKey)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  params.APIKey,
		Backend: genai.BackendGoogleAI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiClient{client: client}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, model string, prompt string) (string, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	parts := []*genai.Part{
		{Text: prompt},
	}
	result, err := c.client.Models.GenerateContent(ctx, model, []*genai.Content{{Parts: parts}}, nil)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, cand := range result.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil {
				sb.WriteString(part.Text)
			}
		}
		break
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
