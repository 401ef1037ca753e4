package analysis

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridexlabs/veridexd/internal/post"
)

func TestRiskLevelForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  RiskLevel
	}{
		{0, RiskLow},
		{0.1, RiskLow},
		{0.2499, RiskLow},
		{0.25, RiskMedium},
		{0.4999, RiskMedium},
		{0.5, RiskHigh},
		{0.7499, RiskHigh},
		{0.75, RiskCritical},
		{1, RiskCritical},
		{-0.5, RiskLow},
		{1.5, RiskCritical},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.score), func(t *testing.T) {
			assert.Equal(t, tt.want, RiskLevelForScore(tt.score))
		})
	}
}

func TestRiskLevelValid(t *testing.T) {
	assert.True(t, RiskHigh.Valid())
	assert.False(t, RiskLevel("SEVERE").Valid())
	assert.False(t, RiskLevel("").Valid())
}

func TestResultNormalize(t *testing.T) {
	r := Result{
		ContentKey:      post.ContentKey("abc"),
		RiskScore:       1.4,
		ClassifierScore: -0.2,
		Confidence:      2,
		RiskLevel:       RiskLow,
		Sources:         []Source{{Title: "s", Similarity: 1.7}},
	}
	r.Normalize()

	assert.Equal(t, 1.0, r.RiskScore)
	assert.Equal(t, 0.0, r.ClassifierScore)
	assert.Equal(t, 1.0, r.Confidence)
	assert.Equal(t, RiskCritical, r.RiskLevel, "level recomputed from clamped score")
	assert.Equal(t, 1.0, r.Sources[0].Similarity)
}

func TestResultValidate(t *testing.T) {
	valid := Result{
		ContentKey: post.ContentKey("abc"),
		RiskLevel:  RiskMedium,
		RiskScore:  0.3,
		Confidence: 0.8,
		AnalyzedAt: time.Now(),
	}
	require.NoError(t, valid.Validate())

	missingKey := valid
	missingKey.ContentKey = ""
	assert.ErrorIs(t, missingKey.Validate(), ErrInvalidResult)

	badLevel := valid
	badLevel.RiskLevel = "SEVERE"
	assert.ErrorIs(t, badLevel.Validate(), ErrInvalidResult)

	badScore := valid
	badScore.RiskScore = 1.2
	assert.ErrorIs(t, badScore.Validate(), ErrInvalidResult)
}

func TestConflictError(t *testing.T) {
	err := fmt.Errorf("committing: %w", &ConflictError{ContentKey: "deadbeefdeadbeef"})
	assert.True(t, IsConflict(err))
	assert.Contains(t, err.Error(), "deadbeefdead")
	assert.False(t, IsConflict(errors.New("other")))
}

func TestStorageError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &StorageError{Op: "put", Err: cause}

	assert.True(t, IsStorage(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "cache put")
	assert.False(t, IsStorage(cause))
}
