package synthesis

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RulesSynthesizer derives the verdict from the classifier score with fixed
// band multipliers. High scores pass through nearly unchanged; low scores
// are discounted, reflecting that a confident "real" classification needs
// less corroboration.
type RulesSynthesizer struct{}

// NewRules creates the rule-based synthesizer.
func NewRules() *RulesSynthesizer {
	return &RulesSynthesizer{}
}

// Synthesize implements Synthesizer.
func (r *RulesSynthesizer) Synthesize(_ context.Context, in Input) (Verdict, error) {
	start := time.Now()
	defer func() { observeSynthesis("rules", start, nil) }()

	var v Verdict

	if in.ClassifierScore == nil {
		// No classifier signal: neutral score, low confidence.
		v.RiskScore = 0.5
		v.Confidence = 0.3
		v.Factors = append(v.Factors, "classifier_unavailable")
		v.Reasoning = "Classifier signal unavailable; neutral risk assigned pending re-analysis."
	} else {
		score := *in.ClassifierScore
		switch {
		case score >= 0.8:
			v.RiskScore = score
		case score >= 0.6:
			v.RiskScore = score * 0.9
		case score >= 0.4:
			v.RiskScore = score * 0.7
		default:
			v.RiskScore = score * 0.5
		}
		v.Confidence = 0.6
		v.Factors = append(v.Factors, fmt.Sprintf("classifier_score=%.3f", score))
		v.Reasoning = fmt.Sprintf(
			"Rule-based assessment from classifier score %.3f; no language-model reasoning applied.", score)
	}

	if len(in.Passages) > 0 {
		v.Confidence += 0.15
		v.Factors = append(v.Factors, fmt.Sprintf("trusted_sources=%d", len(in.Passages)))

		var titles []string
		for _, p := range in.Passages {
			if p.Title != "" {
				titles = append(titles, p.Title)
			}
		}
		if len(titles) > 0 {
			v.Reasoning += " Related trusted sources: " + strings.Join(titles, ", ") + "."
		}
	}

	if in.Post.ImageDescription != "" {
		v.Factors = append(v.Factors, "has_image")
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}

	return v, nil
}

var _ Synthesizer = (*RulesSynthesizer)(nil)
