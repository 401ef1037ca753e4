// Package vectorstore provides the trusted-source index backing retrieval.
//
// Two backends are supported: chromem-go (embedded, default) for single-node
// deployments and Qdrant (external, gRPC) for shared ones. Both operate on a
// single configured collection of reference documents.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrCollectionNotFound is returned when the configured collection
	// does not exist yet.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates an Add call with no documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrConnectionFailed indicates the backend is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation
	// failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// collectionNamePattern restricts names to lowercase letters, digits, and
// underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName rejects names that could not serve as filesystem or
// Qdrant collection identifiers.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match ^[a-z0-9_]{1,64}$, got %q",
			ErrInvalidCollectionName, name)
	}
	return nil
}

// Document is a trusted-source passage to index.
type Document struct {
	// ID uniquely identifies the document. Auto-generated when empty.
	ID string

	// Content is the passage text.
	Content string

	// Metadata carries filterable fields such as title, url, and topic.
	Metadata map[string]any
}

// SearchResult is one similarity match.
type SearchResult struct {
	ID       string
	Content  string
	Score    float32
	Metadata map[string]any
}

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts, one per
	// input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query. Some models
	// encode queries differently from documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store indexes trusted-source documents and serves similarity search.
type Store interface {
	// Add embeds and indexes documents, returning their IDs.
	Add(ctx context.Context, docs []Document) ([]string, error)

	// Search returns up to k documents similar to the query, highest
	// score first. Filters match document metadata exactly; nil means no
	// filtering.
	Search(ctx context.Context, query string, k int, filters map[string]any) ([]SearchResult, error)

	// Count returns the number of indexed documents.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

// IsTransientError reports whether a backend error is worth retrying:
// timeouts and temporary unavailability yes, bad requests and missing
// resources no.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}
