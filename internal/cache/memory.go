package cache

import (
	"context"
	"sort"
	"sync"

	"github.com/veridexlabs/veridexd/internal/analysis"
	"github.com/veridexlabs/veridexd/internal/post"
)

// MemoryStore is an in-process Store. Results survive for the lifetime of
// the daemon only. It is the default backend for single-node deployments
// and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[post.ContentKey]*analysis.Result
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[post.ContentKey]*analysis.Result)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key post.ContentKey) (*analysis.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneResult(r)
	out.Persisted = true
	return out, nil
}

// Insert implements Store.
func (s *MemoryStore) Insert(_ context.Context, result *analysis.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.results[result.ContentKey]; exists {
		return &analysis.ConflictError{ContentKey: result.ContentKey}
	}
	s.results[result.ContentKey] = cloneResult(result)
	return nil
}

// Upsert implements Store.
func (s *MemoryStore) Upsert(_ context.Context, result *analysis.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[result.ContentKey] = cloneResult(result)
	return nil
}

// ByTrend implements Store.
func (s *MemoryStore) ByTrend(_ context.Context, trend string, limit int) ([]*analysis.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*analysis.Result
	for _, r := range s.results {
		if r.Trend == trend {
			c := cloneResult(r)
			c.Persisted = true
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AnalyzedAt.After(out[j].AnalyzedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// Len returns the number of stored results.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}
