package gemini_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docentgo/pkg/config"
	"docentgo/pkg/llm"
	"docentgo/pkg/llm/gemini"
)

func TestIntegration_Stream(t *testing.T) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		t.Skip("Skipping integration test: GEMINI_API_KEY not set")
	}

	c, err := gemini.NewClient(config.ProviderConfig{Key: key, Type: "gemini"}, nil)
	require.NoError(t, err)
	defer c.Close()

	var deltas int
	out, err := c.Stream(context.Background(), llm.Prompt{User: "Say 'pong'", Temperature: 0.2}, func(string) error {
		deltas++
		return nil
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Positive(t, deltas)
}
