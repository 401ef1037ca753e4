package classifier

import (
	"context"
	"strings"
	"time"
	"unicode"
)

// sensationalTerms are lexical markers common in misinformation. Matching is
// case-insensitive on whole words.
var sensationalTerms = []string{
	"shocking", "exposed", "they don't want you to know",
	"wake up", "miracle", "cure", "hoax", "cover-up", "coverup",
	"mainstream media", "banned", "censored", "secret", "urgent",
	"share before", "deleted", "big pharma", "plandemic",
}

// HeuristicClassifier is an embedded scorer using lexical signals: all-caps
// shouting, exclamation density, and sensational vocabulary. It exists so
// the pipeline works without a model service; its scores are coarse and its
// label says so.
type HeuristicClassifier struct{}

// NewHeuristic creates the embedded heuristic classifier.
func NewHeuristic() *HeuristicClassifier {
	return &HeuristicClassifier{}
}

// Classify implements Classifier. The image description contributes its
// sensational vocabulary to the score but not its punctuation or casing,
// since descriptions are usually machine generated.
func (h *HeuristicClassifier) Classify(_ context.Context, text, imageDescription string) (Score, error) {
	if strings.TrimSpace(text) == "" {
		return Score{}, ErrEmptyText
	}

	start := time.Now()
	prob := 0.1

	lower := strings.ToLower(text + " " + imageDescription)
	terms := 0
	for _, term := range sensationalTerms {
		if strings.Contains(lower, term) {
			terms++
		}
	}
	prob += 0.15 * float64(min(terms, 4))

	if capsRatio(text) > 0.3 {
		prob += 0.2
	}
	if strings.Count(text, "!") >= 3 {
		prob += 0.15
	}
	if strings.Contains(text, "!!") || strings.Contains(text, "??") {
		prob += 0.1
	}

	if prob > 1 {
		prob = 1
	}

	observeClassification("heuristic", start, nil)
	return Score{
		FakeProbability: prob,
		Label:           "HEURISTIC",
		Model:           "heuristic-v1",
	}, nil
}

// capsRatio returns the share of letters that are uppercase. Texts with few
// letters report 0 to avoid penalizing short posts.
func capsRatio(text string) float64 {
	letters, upper := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters < 20 {
		return 0
	}
	return float64(upper) / float64(letters)
}

var _ Classifier = (*HeuristicClassifier)(nil)
