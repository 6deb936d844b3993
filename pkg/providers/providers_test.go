package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(context.Background(), "carrier-pigeon")
		assert.ErrorIs(t, err, ErrUnknownProvider)
	})

	t.Run("openai honours options and env fallback", func(t *testing.T) {
		t.Setenv("OPENAI_API_BASE_URL", "http://localhost:9999/v1/")
		client, err := New(context.Background(), " OpenAI ")
		require.NoError(t, err)
		oa, ok := client.(*OpenAIClient)
		require.True(t, ok)
		assert.Equal(t, "http://localhost:9999/v1/", oa.BaseURL())

		assert.Equal(t, "http://override/", OpenAi(WithBaseURL("http://override/")).BaseURL())
	})

	t.Run("openai defaults the base url", func(t *testing.T) {
		t.Setenv("OPENAI_API_BASE_URL", "")
		assert.Equal(t, DefaultOpenAIBaseURL, OpenAi(WithAPIKey("k")).BaseURL())
	})

	t.Run("gemini needs a key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		_, err := New(context.Background(), GeminiName)
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})
}
