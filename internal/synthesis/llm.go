package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/veridexlabs/veridexd/internal/analysis"
	"github.com/veridexlabs/veridexd/internal/config"
	"github.com/veridexlabs/veridexd/internal/logging"
)

const (
	defaultLLMTimeout = 60 * time.Second
	defaultLLMBurst   = 3

	systemPrompt = `You are a fact-checking analyst. You receive a social media post together with a classifier score (0 = reliable, 1 = fake news) and excerpts from trusted news sources. Assess the fake-news risk of the post.

Respond ONLY with a JSON object:
{
  "risk_score": <float 0..1, overall fake-news risk>,
  "confidence": <float 0..1, how much signal backs your assessment>,
  "reasoning": "<2-4 sentences explaining the verdict>",
  "factors": ["<short labels of what drove the score>"]
}

Weigh the classifier score, agreement or contradiction with the trusted sources, consistency between the text and any image description, and engagement patterns in the metadata. If a signal is missing, say so in the factors and lower your confidence.`
)

// LLMSynthesizer asks a chat model to reason over the collected signals.
type LLMSynthesizer struct {
	llm         *openai.LLM
	temperature float64
	timeout     time.Duration
	limiter     *rate.Limiter
	log         *logging.Logger
}

// NewLLMSynthesizer creates the LLM-backed synthesizer from config.
func NewLLMSynthesizer(cfg config.SynthesisConfig, log *logging.Logger) (*LLMSynthesizer, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("synthesis base URL required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("synthesis model required")
	}
	if log == nil {
		log = logging.NewNop()
	}

	apiKey := cfg.APIKey.Value()
	if apiKey == "" {
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating LLM client: %w", err)
	}

	timeout := cfg.Timeout.Duration()
	if timeout == 0 {
		timeout = defaultLLMTimeout
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), defaultLLMBurst)
	}

	return &LLMSynthesizer{
		llm:         llm,
		temperature: cfg.Temperature,
		timeout:     timeout,
		limiter:     limiter,
		log:         log.Named("synthesis"),
	}, nil
}

// Synthesize implements Synthesizer.
func (s *LLMSynthesizer) Synthesize(ctx context.Context, in Input) (Verdict, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return Verdict{}, fmt.Errorf("rate limiter: %w", err)
		}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, buildPrompt(in)),
	}, llms.WithTemperature(s.temperature))
	observeSynthesis("llm", start, err)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", analysis.ErrSynthesisUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return Verdict{}, fmt.Errorf("%w: empty response", analysis.ErrSynthesisUnavailable)
	}

	verdict, err := parseVerdict(resp.Choices[0].Content)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", analysis.ErrSynthesisUnavailable, err)
	}

	s.log.Debug(ctx, "synthesized verdict",
		zap.Float64("risk_score", verdict.RiskScore),
		zap.Float64("confidence", verdict.Confidence))
	return verdict, nil
}

// buildPrompt lays out the post and its signals for the model.
func buildPrompt(in Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "POST TEXT:\n%s\n", in.Post.Text)

	if in.ClassifierScore != nil {
		fmt.Fprintf(&b, "\nCLASSIFIER SCORE: %.3f (0 = reliable, 1 = fake news)", *in.ClassifierScore)
		if in.ClassifierModel != "" {
			fmt.Fprintf(&b, " [model: %s]", in.ClassifierModel)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("\nCLASSIFIER SCORE: unavailable\n")
	}

	if len(in.Passages) > 0 {
		b.WriteString("\nTRUSTED SOURCE EXCERPTS:\n")
		for i, p := range in.Passages {
			fmt.Fprintf(&b, "%d. [%s] (similarity %.2f) %s\n", i+1, p.Title, p.Similarity, p.Excerpt)
		}
	} else {
		b.WriteString("\nTRUSTED SOURCE EXCERPTS: none found\n")
	}

	if in.Post.ImageDescription != "" {
		fmt.Fprintf(&b, "\nIMAGE DESCRIPTION:\n%s\n", in.Post.ImageDescription)
	}
	if len(in.Post.Metadata) > 0 {
		b.WriteString("\nMETADATA:\n")
		for k, v := range in.Post.Metadata {
			fmt.Fprintf(&b, "  - %s: %v\n", k, v)
		}
	}
	if in.Post.SocialNetwork != "" {
		fmt.Fprintf(&b, "\nSOCIAL NETWORK: %s\n", in.Post.SocialNetwork)
	}

	return b.String()
}

// llmVerdict is the JSON shape the model is instructed to return.
type llmVerdict struct {
	RiskScore  float64  `json:"risk_score"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	Factors    []string `json:"factors"`
}

// parseVerdict extracts the JSON object from the model's response, tolerating
// markdown code fences and surrounding prose.
func parseVerdict(content string) (Verdict, error) {
	raw := extractJSON(content)
	if raw == "" {
		return Verdict{}, fmt.Errorf("no JSON object in response: %s", truncate(content, 200))
	}

	var v llmVerdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Verdict{}, fmt.Errorf("parsing verdict JSON: %w", err)
	}
	if v.RiskScore < 0 || v.RiskScore > 1 {
		return Verdict{}, fmt.Errorf("risk_score %v out of range", v.RiskScore)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return Verdict{}, fmt.Errorf("confidence %v out of range", v.Confidence)
	}
	if strings.TrimSpace(v.Reasoning) == "" {
		return Verdict{}, fmt.Errorf("verdict missing reasoning")
	}

	return Verdict{
		RiskScore:  v.RiskScore,
		Confidence: v.Confidence,
		Reasoning:  v.Reasoning,
		Factors:    v.Factors,
	}, nil
}

// extractJSON returns the first balanced top-level JSON object in s.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

var _ Synthesizer = (*LLMSynthesizer)(nil)
