package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridexlabs/veridexd/internal/config"
)

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(config.EmbeddingsConfig{Model: "m"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewService(config.EmbeddingsConfig{BaseURL: "http://localhost:8080/v1"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewService(t *testing.T) {
	svc, err := NewService(config.EmbeddingsConfig{
		BaseURL: "http://localhost:8080/v1",
		Model:   "BAAI/bge-small-en-v1.5",
	})
	require.NoError(t, err)
	assert.Equal(t, "BAAI/bge-small-en-v1.5", svc.Model())
}

func TestEmbedDocumentsEmptyInput(t *testing.T) {
	svc, err := NewService(config.EmbeddingsConfig{
		BaseURL: "http://localhost:8080/v1",
		Model:   "BAAI/bge-small-en-v1.5",
	})
	require.NoError(t, err)

	_, err = svc.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = svc.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}
