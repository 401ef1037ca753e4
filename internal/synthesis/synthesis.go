// Package synthesis fuses classifier and retrieval signals into a final
// analysis verdict.
//
// The LLM provider asks a chat model to reason over the signals; the rules
// provider derives a verdict from the classifier score alone. Both tolerate
// missing signals and report lowered confidence instead of failing.
package synthesis

import (
	"context"
	"fmt"

	"github.com/veridexlabs/veridexd/internal/config"
	"github.com/veridexlabs/veridexd/internal/logging"
	"github.com/veridexlabs/veridexd/internal/post"
	"github.com/veridexlabs/veridexd/internal/retrieval"
)

// Input carries the signals available when synthesis runs. ClassifierScore
// is nil when the classifier stage failed; Passages is empty when retrieval
// failed or found nothing.
type Input struct {
	Post            post.Post
	ClassifierScore *float64
	ClassifierModel string
	Passages        []retrieval.Passage
}

// Verdict is the synthesized outcome before the workflow attaches identity
// and timestamps.
type Verdict struct {
	RiskScore  float64
	Confidence float64
	Reasoning  string
	Factors    []string
}

// Synthesizer produces a verdict from available signals.
type Synthesizer interface {
	Synthesize(ctx context.Context, in Input) (Verdict, error)
}

// New creates the configured synthesizer provider.
func New(cfg config.SynthesisConfig, log *logging.Logger) (Synthesizer, error) {
	switch cfg.Provider {
	case "rules", "":
		return NewRules(), nil
	case "llm":
		return NewLLMSynthesizer(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported synthesis provider: %s", cfg.Provider)
	}
}
