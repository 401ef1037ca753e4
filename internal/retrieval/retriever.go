// Package retrieval finds trusted-source passages relevant to a post.
//
// It fronts the vector store with analysis-specific concerns: query
// timeouts, passage shaping, and corpus ingestion from a directory of
// reference documents.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/veridexlabs/veridexd/internal/config"
	"github.com/veridexlabs/veridexd/internal/logging"
	"github.com/veridexlabs/veridexd/internal/vectorstore"
)

var tracer = otel.Tracer("veridexd/retrieval")

// ErrEmptyQuery indicates a retrieval request with no text.
var ErrEmptyQuery = errors.New("query text is empty")

// Passage is a trusted-source excerpt matched against a post.
type Passage struct {
	Title      string
	Excerpt    string
	URL        string
	Similarity float64
}

// Retriever performs similarity search over the trusted-source index.
type Retriever struct {
	store   vectorstore.Store
	topK    int
	timeout time.Duration
	log     *logging.Logger
}

// NewRetriever creates a Retriever over the given store.
func NewRetriever(store vectorstore.Store, cfg config.RetrievalConfig, log *logging.Logger) (*Retriever, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if log == nil {
		log = logging.NewNop()
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{
		store:   store,
		topK:    topK,
		timeout: cfg.Timeout.Duration(),
		log:     log.Named("retrieval"),
	}, nil
}

// Retrieve returns up to TopK passages similar to the text, highest
// similarity first. An empty index yields an empty slice, not an error.
func (r *Retriever) Retrieve(ctx context.Context, text string) ([]Passage, error) {
	if text == "" {
		return nil, ErrEmptyQuery
	}

	ctx, span := tracer.Start(ctx, "retrieval.Retrieve",
		trace.WithAttributes(attribute.Int("top_k", r.topK)))
	defer span.End()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	results, err := r.store.Search(ctx, text, r.topK, nil)
	searchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		searchesTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("searching trusted sources: %w", err)
	}
	searchesTotal.WithLabelValues("success").Inc()

	passages := make([]Passage, 0, len(results))
	for _, res := range results {
		p := Passage{
			Excerpt:    res.Content,
			Similarity: float64(res.Score),
		}
		if title, ok := res.Metadata["title"].(string); ok {
			p.Title = title
		}
		if url, ok := res.Metadata["url"].(string); ok {
			p.URL = url
		}
		passages = append(passages, p)
	}

	span.SetAttributes(attribute.Int("passages", len(passages)))
	r.log.Debug(ctx, "retrieved trusted-source passages",
		zap.Int("count", len(passages)))
	return passages, nil
}
