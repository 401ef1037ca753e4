// Package analysis defines the shared result model for fake-news risk
// analysis and the error taxonomy used across the pipeline.
package analysis

import (
	"fmt"
	"time"

	"github.com/veridexlabs/veridexd/internal/post"
)

// RiskLevel is the discrete risk classification of a post.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskLevelForScore maps a score in [0, 1] to its discrete level. Band lower
// bounds are inclusive: 0.25 is MEDIUM, 0.5 is HIGH, 0.75 is CRITICAL.
// Scores outside [0, 1] are clamped.
func RiskLevelForScore(score float64) RiskLevel {
	switch {
	case score >= 0.75:
		return RiskCritical
	case score >= 0.5:
		return RiskHigh
	case score >= 0.25:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Valid reports whether l is one of the defined risk levels.
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// Source is a retrieved reference passage that informed the analysis.
type Source struct {
	// Title identifies the source document.
	Title string `json:"title"`

	// Excerpt is the matched passage text.
	Excerpt string `json:"excerpt,omitempty"`

	// URL is the original location of the source, when known.
	URL string `json:"url,omitempty"`

	// Similarity is the retrieval similarity in [0, 1].
	Similarity float64 `json:"similarity"`
}

// Result is the outcome of analyzing one post.
type Result struct {
	// ContentKey identifies the analyzed content.
	ContentKey post.ContentKey `json:"content_key"`

	// RiskLevel is the discrete classification derived from RiskScore.
	RiskLevel RiskLevel `json:"risk_level"`

	// RiskScore is the fused risk estimate in [0, 1].
	RiskScore float64 `json:"risk_score"`

	// ClassifierScore is the raw fake-probability reported by the text
	// classifier, in [0, 1].
	ClassifierScore float64 `json:"classifier_score"`

	// Confidence expresses how much signal backed the result, in [0, 1].
	// Degraded analyses (missing classifier or retrieval signal) report
	// lower confidence.
	Confidence float64 `json:"confidence"`

	// Reasoning is a human-readable explanation of the verdict.
	Reasoning string `json:"reasoning"`

	// Factors lists the short labels that contributed to the score.
	Factors []string `json:"factors,omitempty"`

	// Sources lists the reference passages consulted during retrieval.
	Sources []Source `json:"sources,omitempty"`

	// Trend is the topic label the post was submitted under, if any.
	Trend string `json:"trend,omitempty"`

	// Degraded is true when one or more pipeline stages failed and the
	// result was produced from partial signal.
	Degraded bool `json:"degraded,omitempty"`

	// Persisted reports whether this result made it into the cache.
	// False when a storage failure left the computed result unpersisted.
	Persisted bool `json:"persisted"`

	// AnalyzedAt is when the analysis completed.
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// Normalize clamps scores into [0, 1] and recomputes the risk level from the
// clamped score. Synthesizers call this before returning so downstream code
// never sees an out-of-range or inconsistent result.
func (r *Result) Normalize() {
	r.RiskScore = clamp01(r.RiskScore)
	r.ClassifierScore = clamp01(r.ClassifierScore)
	r.Confidence = clamp01(r.Confidence)
	r.RiskLevel = RiskLevelForScore(r.RiskScore)
	for i := range r.Sources {
		r.Sources[i].Similarity = clamp01(r.Sources[i].Similarity)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Validate reports whether the result is internally consistent.
func (r *Result) Validate() error {
	if r.ContentKey == "" {
		return fmt.Errorf("%w: missing content key", ErrInvalidResult)
	}
	if !r.RiskLevel.Valid() {
		return fmt.Errorf("%w: unknown risk level %q", ErrInvalidResult, r.RiskLevel)
	}
	if r.RiskScore < 0 || r.RiskScore > 1 {
		return fmt.Errorf("%w: risk score %v out of range", ErrInvalidResult, r.RiskScore)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of range", ErrInvalidResult, r.Confidence)
	}
	return nil
}
