// Package classifier scores post text for fake-news probability.
//
// Two providers exist: an HTTP client for a remote scoring service hosting a
// fine-tuned classification model, and an embedded heuristic scorer for
// development and degraded operation.
package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/veridexlabs/veridexd/internal/config"
	"github.com/veridexlabs/veridexd/internal/logging"
)

// ErrEmptyText indicates a scoring request with no text.
var ErrEmptyText = errors.New("text is empty")

// Score is a classifier verdict for one text.
type Score struct {
	// FakeProbability is the probability the text is fake news, in
	// [0, 1].
	FakeProbability float64

	// Label is the raw label reported by the model.
	Label string

	// Model identifies the scoring model.
	Model string
}

// Classifier scores text for fake-news probability. The image description
// is optional context from an attached image; providers may ignore it.
type Classifier interface {
	Classify(ctx context.Context, text, imageDescription string) (Score, error)
}

// New creates the configured classifier provider.
func New(cfg config.ClassifierConfig, log *logging.Logger) (Classifier, error) {
	switch cfg.Provider {
	case "heuristic", "":
		return NewHeuristic(), nil
	case "http":
		return NewHTTPClassifier(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported classifier provider: %s", cfg.Provider)
	}
}
