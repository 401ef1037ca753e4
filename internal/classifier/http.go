package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/veridexlabs/veridexd/internal/config"
	"github.com/veridexlabs/veridexd/internal/logging"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
	defaultBackoff    = time.Second
	defaultBurst      = 5
)

// HTTPClassifier calls a remote text-classification service. The service is
// expected to expose a HuggingFace-style endpoint: POST /classify with
// {"text": ...} returning [{"label": ..., "score": ...}].
type HTTPClassifier struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	log        *logging.Logger
}

// NewHTTPClassifier creates a classifier client from config.
func NewHTTPClassifier(cfg config.ClassifierConfig, log *logging.Logger) (*HTTPClassifier, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("classifier base URL required")
	}
	if log == nil {
		log = logging.NewNop()
	}

	timeout := cfg.Timeout.Duration()
	if timeout == 0 {
		timeout = defaultTimeout
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), defaultBurst)
	}

	return &HTTPClassifier{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		maxRetries: defaultMaxRetries,
		log:        log.Named("classifier"),
	}, nil
}

type classifyRequest struct {
	Text             string `json:"text"`
	ImageDescription string `json:"image_description,omitempty"`
	Model            string `json:"model,omitempty"`
}

type classifyLabel struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify implements Classifier.
func (c *HTTPClassifier) Classify(ctx context.Context, text, imageDescription string) (Score, error) {
	if strings.TrimSpace(text) == "" {
		return Score{}, ErrEmptyText
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Score{}, fmt.Errorf("rate limiter: %w", err)
		}
	}

	body, err := json.Marshal(classifyRequest{
		Text:             text,
		ImageDescription: strings.TrimSpace(imageDescription),
		Model:            c.model,
	})
	if err != nil {
		return Score{}, fmt.Errorf("encoding request: %w", err)
	}

	start := time.Now()
	raw, err := c.post(ctx, body)
	observeClassification("http", start, err)
	if err != nil {
		return Score{}, err
	}

	label, err := parseClassification(raw)
	if err != nil {
		return Score{}, err
	}

	score := Score{Label: label.Label, Model: c.model}
	if isFakeLabel(label.Label) {
		score.FakeProbability = label.Score
	} else {
		score.FakeProbability = 1 - label.Score
	}

	c.log.Debug(ctx, "classified text",
		zap.String("label", label.Label),
		zap.Float64("fake_probability", score.FakeProbability))
	return score, nil
}

func (c *HTTPClassifier) post(ctx context.Context, body []byte) ([]byte, error) {
	backoff := defaultBackoff
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("classify canceled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/classify", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("calling classifier: %w", err)
			continue
		}

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return raw, nil
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("classifier returned %d: %s", resp.StatusCode, truncate(raw, 200))
			continue
		default:
			return nil, fmt.Errorf("classifier returned %d: %s", resp.StatusCode, truncate(raw, 200))
		}
	}
	return nil, fmt.Errorf("classify failed after %d retries: %w", c.maxRetries, lastErr)
}

// parseClassification accepts the response shapes classification services
// produce: a single label object, a flat array of labels, or the nested
// array HuggingFace pipelines return. The highest-scoring label wins.
func parseClassification(raw []byte) (classifyLabel, error) {
	var single classifyLabel
	if err := json.Unmarshal(raw, &single); err == nil && single.Label != "" {
		return single, nil
	}

	var flat []classifyLabel
	if err := json.Unmarshal(raw, &flat); err == nil && len(flat) > 0 {
		return bestLabel(flat), nil
	}

	var nested [][]classifyLabel
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 && len(nested[0]) > 0 {
		return bestLabel(nested[0]), nil
	}

	return classifyLabel{}, fmt.Errorf("unrecognized classifier response: %s", truncate(raw, 200))
}

func bestLabel(labels []classifyLabel) classifyLabel {
	best := labels[0]
	for _, l := range labels[1:] {
		if l.Score > best.Score {
			best = l
		}
	}
	return best
}

func isFakeLabel(label string) bool {
	switch strings.ToUpper(label) {
	case "FAKE", "LABEL_1", "UNRELIABLE", "MISINFORMATION":
		return true
	}
	return false
}

func truncate(raw []byte, n int) string {
	s := string(raw)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

var _ Classifier = (*HTTPClassifier)(nil)
