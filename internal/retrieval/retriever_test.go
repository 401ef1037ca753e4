package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridexlabs/veridexd/internal/config"
	"github.com/veridexlabs/veridexd/internal/vectorstore"
)

// fakeStore records adds and serves canned search results.
type fakeStore struct {
	docs      []vectorstore.Document
	results   []vectorstore.SearchResult
	searchErr error
	lastK     int
}

func (s *fakeStore) Add(_ context.Context, docs []vectorstore.Document) ([]string, error) {
	s.docs = append(s.docs, docs...)
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

func (s *fakeStore) Search(_ context.Context, _ string, k int, _ map[string]any) ([]vectorstore.SearchResult, error) {
	s.lastK = k
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.results, nil
}

func (s *fakeStore) Count(context.Context) (int, error) { return len(s.docs), nil }

func (s *fakeStore) Close() error { return nil }

func TestRetrieve(t *testing.T) {
	store := &fakeStore{results: []vectorstore.SearchResult{
		{
			ID:      "d1",
			Content: "The WHO confirms vaccine safety data.",
			Score:   0.91,
			Metadata: map[string]any{
				"title": "WHO statement",
				"url":   "https://who.int/statement",
			},
		},
		{ID: "d2", Content: "Unrelated passage.", Score: 0.42},
	}}

	r, err := NewRetriever(store, config.RetrievalConfig{TopK: 3}, nil)
	require.NoError(t, err)

	passages, err := r.Retrieve(context.Background(), "are vaccines safe")
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, 3, store.lastK)
	assert.Equal(t, "WHO statement", passages[0].Title)
	assert.Equal(t, "https://who.int/statement", passages[0].URL)
	assert.InDelta(t, 0.91, passages[0].Similarity, 0.001)
	assert.Empty(t, passages[1].Title)
}

func TestRetrieveEmptyQuery(t *testing.T) {
	r, err := NewRetriever(&fakeStore{}, config.RetrievalConfig{}, nil)
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestRetrieveStoreError(t *testing.T) {
	store := &fakeStore{searchErr: errors.New("backend down")}
	r, err := NewRetriever(store, config.RetrievalConfig{}, nil)
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "query")
	assert.Error(t, err)
}

func TestRetrieveDefaultTopK(t *testing.T) {
	store := &fakeStore{}
	r, err := NewRetriever(store, config.RetrievalConfig{}, nil)
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "query")
	require.NoError(t, err)
	assert.Equal(t, 5, store.lastK)
}

func TestIngestDir(t *testing.T) {
	dir := t.TempDir()

	jsonBody := `[
		{"title": "Claim check", "content": "The claim is false.", "url": "https://example.org/fc/1", "topic": "health"},
		{"title": "Empty", "content": "  "}
	]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sources.json"), []byte(jsonBody), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("Reference notes body."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.csv"), []byte("a,b"), 0o644))

	store := &fakeStore{}
	in, err := NewIngestor(store, nil)
	require.NoError(t, err)

	n, err := in.IngestDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "blank entries and unsupported files are skipped")

	byID := map[string]vectorstore.Document{}
	for _, d := range store.docs {
		byID[d.ID] = d
	}
	require.Len(t, byID, 2)

	var foundJSON, foundMD bool
	for _, d := range store.docs {
		switch d.Metadata["title"] {
		case "Claim check":
			foundJSON = true
			assert.Equal(t, "The claim is false.", d.Content)
			assert.Equal(t, "https://example.org/fc/1", d.Metadata["url"])
			assert.Equal(t, "health", d.Metadata["topic"])
		case "notes":
			foundMD = true
			assert.Equal(t, "Reference notes body.", d.Content)
		}
	}
	assert.True(t, foundJSON)
	assert.True(t, foundMD)
}

func TestIngestFileStableIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("same content"), 0o644))

	store := &fakeStore{}
	in, err := NewIngestor(store, nil)
	require.NoError(t, err)

	_, err = in.IngestFile(context.Background(), path)
	require.NoError(t, err)
	_, err = in.IngestFile(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, store.docs, 2)
	assert.Equal(t, store.docs[0].ID, store.docs[1].ID,
		"unchanged content re-ingests under the same ID")
}

func TestIngestDirMissing(t *testing.T) {
	in, err := NewIngestor(&fakeStore{}, nil)
	require.NoError(t, err)

	_, err = in.IngestDir(context.Background(), "/nonexistent/path")
	assert.Error(t, err)
}
