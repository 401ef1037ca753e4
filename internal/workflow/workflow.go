// Package workflow orchestrates the analysis pipeline: content hashing,
// cache reservation, concurrent classifier and retrieval stages, verdict
// synthesis, and commit.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/veridexlabs/veridexd/internal/analysis"
	"github.com/veridexlabs/veridexd/internal/cache"
	"github.com/veridexlabs/veridexd/internal/classifier"
	"github.com/veridexlabs/veridexd/internal/logging"
	"github.com/veridexlabs/veridexd/internal/post"
	"github.com/veridexlabs/veridexd/internal/retrieval"
	"github.com/veridexlabs/veridexd/internal/synthesis"
)

var tracer = otel.Tracer("veridexd/workflow")

// highEngagementThreshold marks posts whose like or share counters suggest
// wide spread, which matters for triage.
const highEngagementThreshold = 10000

// Retriever is the retrieval stage as the workflow consumes it.
type Retriever interface {
	Retrieve(ctx context.Context, text string) ([]retrieval.Passage, error)
}

// Config holds workflow behavior toggles.
type Config struct {
	// FailOnStorageError makes a failed cache write fail the request.
	// When false the computed result is returned unpersisted.
	FailOnStorageError bool
}

// Workflow runs the full analysis pipeline for a post.
type Workflow struct {
	hasher     *post.Hasher
	cache      *cache.Cache
	classifier classifier.Classifier
	retriever  Retriever
	synth      synthesis.Synthesizer
	cfg        Config
	log        *logging.Logger
}

// New wires the pipeline stages together.
func New(hasher *post.Hasher, c *cache.Cache, cls classifier.Classifier, ret Retriever, syn synthesis.Synthesizer, cfg Config, log *logging.Logger) (*Workflow, error) {
	if hasher == nil {
		return nil, errors.New("hasher is required")
	}
	if c == nil {
		return nil, errors.New("cache is required")
	}
	if cls == nil {
		return nil, errors.New("classifier is required")
	}
	if ret == nil {
		return nil, errors.New("retriever is required")
	}
	if syn == nil {
		return nil, errors.New("synthesizer is required")
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Workflow{
		hasher:     hasher,
		cache:      c,
		classifier: cls,
		retriever:  ret,
		synth:      syn,
		cfg:        cfg,
		log:        log.Named("workflow"),
	}, nil
}

// Analyze runs the pipeline for a post. Identical content is computed at
// most once: repeated and concurrent submissions of the same content share
// one computation and one cache entry.
func (w *Workflow) Analyze(ctx context.Context, p post.Post) (*analysis.Result, error) {
	ctx, span := tracer.Start(ctx, "workflow.Analyze")
	defer span.End()

	key, err := w.validateAndHash(p)
	if err != nil {
		requestsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	ctx = logging.WithContentKey(ctx, string(key))
	span.SetAttributes(attribute.String("content.key", key.Short()))

	stored, token, err := w.cache.TryBeginOrGet(ctx, key)
	if err != nil {
		requestsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	if stored != nil {
		requestsTotal.WithLabelValues("hit").Inc()
		span.SetAttributes(attribute.String("outcome", "cache_hit"))
		w.log.Debug(ctx, "analysis cache hit")
		return stored, nil
	}

	// The computation is shared with parked waiters, so the submitting
	// caller's cancellation must not abort it mid-flight.
	computeCtx := context.WithoutCancel(ctx)

	result, err := w.compute(computeCtx, p, key)
	if err != nil {
		w.cache.Abort(token)
		requestsTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		return nil, err
	}

	committed, err := w.cache.Commit(computeCtx, token, result)
	if err != nil {
		if analysis.IsStorage(err) && !w.cfg.FailOnStorageError {
			requestsTotal.WithLabelValues("computed").Inc()
			span.SetAttributes(attribute.String("outcome", "computed_unpersisted"))
			return committed, nil
		}
		requestsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	committed.Persisted = true

	requestsTotal.WithLabelValues("computed").Inc()
	span.SetAttributes(attribute.String("outcome", "computed"))
	return committed, nil
}

// ForceAnalyze recomputes the post and overwrites any cached entry,
// bypassing the reservation protocol.
func (w *Workflow) ForceAnalyze(ctx context.Context, p post.Post) (*analysis.Result, error) {
	ctx, span := tracer.Start(ctx, "workflow.ForceAnalyze")
	defer span.End()

	key, err := w.validateAndHash(p)
	if err != nil {
		requestsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	ctx = logging.WithContentKey(ctx, string(key))

	result, err := w.compute(ctx, p, key)
	if err != nil {
		requestsTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		return nil, err
	}

	if err := w.cache.ForceUpdate(ctx, result); err != nil {
		if analysis.IsStorage(err) && !w.cfg.FailOnStorageError {
			w.log.Warn(ctx, "forced analysis not persisted", zap.Error(err))
			requestsTotal.WithLabelValues("forced").Inc()
			return result, nil
		}
		requestsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	result.Persisted = true

	requestsTotal.WithLabelValues("forced").Inc()
	return result, nil
}

// AnalyzedByTrend returns up to limit committed analyses for a trend, newest
// first.
func (w *Workflow) AnalyzedByTrend(ctx context.Context, trend string, limit int) ([]*analysis.Result, error) {
	if trend == "" {
		return nil, fmt.Errorf("trend is required")
	}
	return w.cache.ByTrend(ctx, trend, limit)
}

func (w *Workflow) validateAndHash(p post.Post) (post.ContentKey, error) {
	if p.NormalizedText() == "" {
		return "", analysis.ErrEmptyPost
	}
	key, err := w.hasher.Key(p)
	if err != nil {
		return "", fmt.Errorf("hashing post: %w", err)
	}
	return key, nil
}

// compute runs the classifier and retrieval stages concurrently, then
// synthesizes the verdict. One stage failing degrades the result; both
// failing fails the computation.
func (w *Workflow) compute(ctx context.Context, p post.Post, key post.ContentKey) (*analysis.Result, error) {
	ctx, span := tracer.Start(ctx, "workflow.compute",
		trace.WithAttributes(attribute.String("content.key", key.Short())))
	defer span.End()

	start := time.Now()
	defer func() { computeDuration.Observe(time.Since(start).Seconds()) }()

	text := p.NormalizedText()

	var (
		wg            sync.WaitGroup
		score         classifier.Score
		classifierErr error
		passages      []retrieval.Passage
		retrievalErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, stageSpan := tracer.Start(ctx, "workflow.classify")
		defer stageSpan.End()
		score, classifierErr = w.classifier.Classify(ctx, text, p.ImageDescription)
		if classifierErr != nil {
			stageSpan.RecordError(classifierErr)
		}
	}()
	go func() {
		defer wg.Done()
		_, stageSpan := tracer.Start(ctx, "workflow.retrieve")
		defer stageSpan.End()
		passages, retrievalErr = w.retriever.Retrieve(ctx, text)
		if retrievalErr != nil {
			stageSpan.RecordError(retrievalErr)
		}
	}()
	wg.Wait()

	if classifierErr != nil && retrievalErr != nil {
		stageFailures.WithLabelValues("classifier").Inc()
		stageFailures.WithLabelValues("retrieval").Inc()
		return nil, fmt.Errorf("%w: classifier: %v; retrieval: %v",
			analysis.ErrSynthesisUnavailable, classifierErr, retrievalErr)
	}

	in := synthesis.Input{Post: p, Passages: passages}
	var factors []string
	degraded := false

	if classifierErr != nil {
		stageFailures.WithLabelValues("classifier").Inc()
		w.log.Warn(ctx, "classifier stage failed, degrading", zap.Error(classifierErr))
		factors = append(factors, "classifier_failed")
		degraded = true
	} else {
		in.ClassifierScore = &score.FakeProbability
		in.ClassifierModel = score.Model
	}
	if retrievalErr != nil {
		stageFailures.WithLabelValues("retrieval").Inc()
		w.log.Warn(ctx, "retrieval stage failed, degrading", zap.Error(retrievalErr))
		factors = append(factors, "retrieval_failed")
		degraded = true
	}

	verdict, err := w.synth.Synthesize(ctx, in)
	if err != nil {
		stageFailures.WithLabelValues("synthesis").Inc()
		return nil, fmt.Errorf("synthesizing verdict: %w", err)
	}

	result := &analysis.Result{
		ContentKey: key,
		RiskScore:  verdict.RiskScore,
		Confidence: verdict.Confidence,
		Reasoning:  verdict.Reasoning,
		Factors:    append(factors, verdict.Factors...),
		Trend:      p.Trend,
		Degraded:   degraded,
		AnalyzedAt: time.Now().UTC(),
	}
	if classifierErr == nil {
		result.ClassifierScore = score.FakeProbability
	}
	for _, passage := range passages {
		result.Sources = append(result.Sources, analysis.Source{
			Title:      passage.Title,
			Excerpt:    passage.Excerpt,
			URL:        passage.URL,
			Similarity: passage.Similarity,
		})
	}
	if n, ok := p.EngagementCount("likes"); ok && n >= highEngagementThreshold {
		result.Factors = append(result.Factors, "high_engagement")
	} else if n, ok := p.EngagementCount("shares"); ok && n >= highEngagementThreshold {
		result.Factors = append(result.Factors, "high_engagement")
	}

	result.Normalize()
	if err := result.Validate(); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Float64("risk_score", result.RiskScore),
		attribute.String("risk_level", string(result.RiskLevel)),
		attribute.Bool("degraded", result.Degraded),
	)
	return result, nil
}
