// Package providers implements agent.LLMClient on top of hosted language
// model APIs.
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boristopalov/arbiter/pkg/agent"
)

const (
	OpenAIName = "openai"
	GeminiName = "gemini"

	DefaultOpenAIBaseURL = "https://api.openai.com/v1/"
)

var (
	ErrUnknownProvider = errors.New("unknown llm provider")
	ErrMissingAPIKey   = errors.New("missing api key")
	ErrEmptyResponse   = errors.New("llm returned no content")
)

type ProviderParams struct {
	BaseURL string
	APIKey  string
}

type ProviderOption func(*ProviderParams)

func WithBaseURL(baseURL string) ProviderOption {
	return func(p *ProviderParams) {
		p.BaseURL = baseURL
	}
}

func WithAPIKey(apiKey string) ProviderOption {
	return func(p *ProviderParams) {
		p.APIKey = apiKey
	}
}

func applyOptions(opts []ProviderOption) ProviderParams {
	params := ProviderParams{}
	for _, opt := range opts {
		opt(&params)
	}
	return params
}

// New returns the client registered under name.
func New(ctx context.Context, name string, opts ...ProviderOption) (agent.LLMClient, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case OpenAIName:
		return OpenAi(opts...), nil
	case GeminiName:
		client, err := Gemini(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}
