// Package cache provides content-addressed storage of analysis results with
// a reservation protocol that de-duplicates concurrent computation of the
// same content.
package cache

import (
	"context"
	"errors"

	"github.com/veridexlabs/veridexd/internal/analysis"
	"github.com/veridexlabs/veridexd/internal/post"
)

// ErrNotFound indicates no committed result exists for a content key.
var ErrNotFound = errors.New("analysis not found")

// Store persists committed analysis results. Implementations must be safe
// for concurrent use.
type Store interface {
	// Get returns the committed result for key, or ErrNotFound.
	Get(ctx context.Context, key post.ContentKey) (*analysis.Result, error)

	// Insert stores a result for a key that has no committed result yet.
	// Returns *analysis.ConflictError when another writer committed
	// first.
	Insert(ctx context.Context, result *analysis.Result) error

	// Upsert stores a result unconditionally, replacing any committed
	// result for the same key.
	Upsert(ctx context.Context, result *analysis.Result) error

	// ByTrend returns up to limit committed results for a trend, newest
	// first.
	ByTrend(ctx context.Context, trend string, limit int) ([]*analysis.Result, error)

	// Close releases backend resources.
	Close() error
}

// cloneResult returns a deep copy so callers cannot mutate stored state.
func cloneResult(r *analysis.Result) *analysis.Result {
	if r == nil {
		return nil
	}
	out := *r
	if r.Factors != nil {
		out.Factors = append([]string(nil), r.Factors...)
	}
	if r.Sources != nil {
		out.Sources = append([]analysis.Source(nil), r.Sources...)
	}
	return &out
}
