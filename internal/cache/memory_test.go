package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridexlabs/veridexd/internal/analysis"
)

func TestMemoryStoreInsertConflict(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, testResult("k1", 0.2)))

	err := s.Insert(ctx, testResult("k1", 0.9))
	assert.True(t, analysis.IsConflict(err))

	got, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, analysis.RiskLow, got.RiskLevel, "first writer wins")
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	orig := testResult("k1", 0.3)
	orig.Factors = []string{"a"}
	require.NoError(t, s.Insert(ctx, orig))

	got, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	got.Factors[0] = "mutated"
	got.Reasoning = "mutated"

	again, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Factors[0])
	assert.Equal(t, "test", again.Reasoning)
}

func TestMemoryStoreUpsert(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, testResult("k1", 0.1)))
	require.NoError(t, s.Upsert(ctx, testResult("k1", 0.8)))

	got, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, analysis.RiskCritical, got.RiskLevel)
	assert.Equal(t, 1, s.Len())
}
