package openai_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engram-ai/engram-go/pkg/embedder/openai"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := openai.NewClient(&openai.Config{})
	assert.Error(t, err)
}

func TestNewClientDefaults(t *testing.T) {
	client, err := openai.NewClient(&openai.Config{APIKey: "sk-test"})
	require.NoError(t, err)

	assert.Equal(t, 1536, client.Dimensions())
	assert.NoError(t, client.Close())
}

func TestNewClientAcceptsModelNames(t *testing.T) {
	models := []string{
		"text-embedding-ada-002",
		"text-embedding-3-small",
		"text-embedding-3-large",
	}
	for _, model := range models {
		client, err := openai.NewClient(&openai.Config{
			APIKey:     "sk-test",
			Model:      model,
			Dimensions: 256,
		})
		require.NoError(t, err, model)
		assert.Equal(t, 256, client.Dimensions())
		assert.NoError(t, client.Close())
	}
}
