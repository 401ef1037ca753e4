package vectorstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/veridexlabs/veridexd/internal/config"
)

// stubEmbedder returns fixed vectors per known text so similarity is
// deterministic without a real model.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (e *stubEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	v, ok := e.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no stub vector for %q", text)
	}
	return v, nil
}

func newTestChromemStore(t *testing.T, embedder Embedder) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(config.ChromemConfig{
		Path:       t.TempDir(),
		Collection: "trusted_sources",
		VectorSize: 3,
	}, embedder, nil)
	require.NoError(t, err)
	return store
}

func TestChromemStoreAddAndSearch(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"vaccines are safe":      {1, 0, 0},
		"elections were audited": {0, 1, 0},
		"vaccine safety":         {0.9, 0.1, 0},
	}}
	store := newTestChromemStore(t, embedder)
	ctx := context.Background()

	ids, err := store.Add(ctx, []Document{
		{ID: "d1", Content: "vaccines are safe", Metadata: map[string]any{"title": "WHO report"}},
		{ID: "d2", Content: "elections were audited", Metadata: map[string]any{"title": "Election audit"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2"}, ids)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	results, err := store.Search(ctx, "vaccine safety", 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d1", results[0].ID)
	assert.Equal(t, "vaccines are safe", results[0].Content)
	assert.Equal(t, "WHO report", results[0].Metadata["title"])
	assert.Greater(t, results[0].Score, float32(0.5))
}

func TestChromemStoreSearchCapsK(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"only doc": {1, 0, 0},
		"query":    {1, 0, 0},
	}}
	store := newTestChromemStore(t, embedder)
	ctx := context.Background()

	_, err := store.Add(ctx, []Document{{ID: "d1", Content: "only doc"}})
	require.NoError(t, err)

	results, err := store.Search(ctx, "query", 10, nil)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestChromemStoreSearchEmptyCollection(t *testing.T) {
	store := newTestChromemStore(t, &stubEmbedder{vectors: map[string][]float32{}})

	results, err := store.Search(context.Background(), "anything", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemStoreAddEmpty(t *testing.T) {
	store := newTestChromemStore(t, &stubEmbedder{})
	_, err := store.Add(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyDocuments)
}

func TestChromemStoreAddGeneratesIDs(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{"doc": {1, 0, 0}}}
	store := newTestChromemStore(t, embedder)

	ids, err := store.Add(context.Background(), []Document{{Content: "doc"}})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.NotEmpty(t, ids[0])
}

func TestNewChromemStoreValidation(t *testing.T) {
	_, err := NewChromemStore(config.ChromemConfig{
		Path: t.TempDir(), Collection: "ok", VectorSize: 3,
	}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewChromemStore(config.ChromemConfig{
		Path: t.TempDir(), Collection: "Bad Name!", VectorSize: 3,
	}, &stubEmbedder{}, nil)
	assert.ErrorIs(t, err, ErrInvalidCollectionName)

	_, err = NewChromemStore(config.ChromemConfig{
		Path: t.TempDir(), Collection: "ok", VectorSize: 0,
	}, &stubEmbedder{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{name: "valid", input: "trusted_sources", ok: true},
		{name: "digits", input: "sources_v2", ok: true},
		{name: "empty", input: "", ok: false},
		{name: "uppercase", input: "Sources", ok: false},
		{name: "spaces", input: "my sources", ok: false},
		{name: "path traversal", input: "../etc", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollectionName(tt.input)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidCollectionName)
			}
		})
	}
}

func TestIsTransientError(t *testing.T) {
	assert.True(t, IsTransientError(status.Error(grpccodes.Unavailable, "down")))
	assert.True(t, IsTransientError(status.Error(grpccodes.DeadlineExceeded, "slow")))
	assert.False(t, IsTransientError(status.Error(grpccodes.NotFound, "missing")))
	assert.False(t, IsTransientError(fmt.Errorf("plain error")))
	assert.False(t, IsTransientError(nil))
}
