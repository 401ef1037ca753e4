package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridexlabs/veridexd/internal/analysis"
	"github.com/veridexlabs/veridexd/internal/cache"
	"github.com/veridexlabs/veridexd/internal/classifier"
	"github.com/veridexlabs/veridexd/internal/post"
	"github.com/veridexlabs/veridexd/internal/retrieval"
	"github.com/veridexlabs/veridexd/internal/synthesis"
)

// mockClassifier counts invocations and can fail or stall.
type mockClassifier struct {
	calls atomic.Int64
	score float64
	err   error
	delay time.Duration
}

func (m *mockClassifier) Classify(ctx context.Context, _, _ string) (classifier.Score, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return classifier.Score{}, ctx.Err()
		}
	}
	if m.err != nil {
		return classifier.Score{}, m.err
	}
	return classifier.Score{FakeProbability: m.score, Label: "FAKE", Model: "mock"}, nil
}

// mockRetriever counts invocations and can fail.
type mockRetriever struct {
	calls    atomic.Int64
	passages []retrieval.Passage
	err      error
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string) ([]retrieval.Passage, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.passages, nil
}

// mockSynthesizer counts invocations and records the last input.
type mockSynthesizer struct {
	calls   atomic.Int64
	mu      sync.Mutex
	last    synthesis.Input
	verdict synthesis.Verdict
	err     error
}

func (m *mockSynthesizer) Synthesize(_ context.Context, in synthesis.Input) (synthesis.Verdict, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.last = in
	m.mu.Unlock()
	if m.err != nil {
		return synthesis.Verdict{}, m.err
	}
	return m.verdict, nil
}

func (m *mockSynthesizer) lastInput() synthesis.Input {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

type fixture struct {
	wf    *Workflow
	cls   *mockClassifier
	ret   *mockRetriever
	syn   *mockSynthesizer
	store *cache.MemoryStore
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	store := cache.NewMemoryStore()
	c, err := cache.New(store, nil)
	require.NoError(t, err)

	cls := &mockClassifier{score: 0.8}
	ret := &mockRetriever{passages: []retrieval.Passage{
		{Title: "Fact check", Excerpt: "The claim is false.", URL: "https://example.org", Similarity: 0.88},
	}}
	syn := &mockSynthesizer{verdict: synthesis.Verdict{
		RiskScore:  0.8,
		Confidence: 0.9,
		Reasoning:  "Strong classifier signal, contradicted by trusted sources.",
		Factors:    []string{"classifier_score=0.800"},
	}}

	wf, err := New(post.NewHasher(post.IdentityConfig{}), c, cls, ret, syn, cfg, nil)
	require.NoError(t, err)
	return &fixture{wf: wf, cls: cls, ret: ret, syn: syn, store: store}
}

func TestAnalyzeComputesAndCommits(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	result, err := f.wf.Analyze(ctx, post.Post{Text: "Shocking miracle cure!", Trend: "health"})
	require.NoError(t, err)

	assert.Equal(t, analysis.RiskCritical, result.RiskLevel)
	assert.InDelta(t, 0.8, result.RiskScore, 0.0001)
	assert.InDelta(t, 0.8, result.ClassifierScore, 0.0001)
	assert.True(t, result.Persisted)
	assert.False(t, result.Degraded)
	assert.Equal(t, "health", result.Trend)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "Fact check", result.Sources[0].Title)
	assert.Equal(t, 1, f.store.Len())
}

func TestAnalyzeSecondCallIsCacheHit(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	p := post.Post{Text: "Same claim"}

	first, err := f.wf.Analyze(ctx, p)
	require.NoError(t, err)

	second, err := f.wf.Analyze(ctx, p)
	require.NoError(t, err)

	assert.Equal(t, first.ContentKey, second.ContentKey)
	assert.Equal(t, int64(1), f.cls.calls.Load(), "pipeline runs once for identical content")
	assert.Equal(t, int64(1), f.syn.calls.Load())
}

func TestAnalyzeWhitespaceVariantIsCacheHit(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	_, err := f.wf.Analyze(ctx, post.Post{Text: "hello world"})
	require.NoError(t, err)
	_, err = f.wf.Analyze(ctx, post.Post{Text: "  hello \t world  "})
	require.NoError(t, err)

	assert.Equal(t, int64(1), f.cls.calls.Load())
}

func TestAnalyzeMetadataVariantIsCacheHit(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	_, err := f.wf.Analyze(ctx, post.Post{Text: "claim", Metadata: map[string]any{"likes": 1}})
	require.NoError(t, err)
	_, err = f.wf.Analyze(ctx, post.Post{Text: "claim", Metadata: map[string]any{"likes": 500}})
	require.NoError(t, err)

	assert.Equal(t, int64(1), f.cls.calls.Load())
}

func TestAnalyzeEmptyTextRejected(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.wf.Analyze(context.Background(), post.Post{Text: "   \n\t "})
	assert.ErrorIs(t, err, analysis.ErrEmptyPost)
	assert.Equal(t, int64(0), f.cls.calls.Load(), "rejected before any stage runs")
	assert.Equal(t, 0, f.store.Len())
}

func TestAnalyzeClassifierFailureDegrades(t *testing.T) {
	f := newFixture(t, Config{})
	f.cls.err = errors.New("model service down")

	result, err := f.wf.Analyze(context.Background(), post.Post{Text: "claim"})
	require.NoError(t, err)

	assert.True(t, result.Degraded)
	assert.Contains(t, result.Factors, "classifier_failed")
	assert.Nil(t, f.syn.lastInput().ClassifierScore)
	assert.NotEmpty(t, f.syn.lastInput().Passages, "retrieval signal still flows to synthesis")
}

func TestAnalyzeRetrievalFailureDegrades(t *testing.T) {
	f := newFixture(t, Config{})
	f.ret.err = errors.New("index unavailable")

	result, err := f.wf.Analyze(context.Background(), post.Post{Text: "claim"})
	require.NoError(t, err)

	assert.True(t, result.Degraded)
	assert.Contains(t, result.Factors, "retrieval_failed")
	assert.Empty(t, result.Sources)
	require.NotNil(t, f.syn.lastInput().ClassifierScore)
}

func TestAnalyzeBothStagesFailing(t *testing.T) {
	f := newFixture(t, Config{})
	f.cls.err = errors.New("down")
	f.ret.err = errors.New("down")

	_, err := f.wf.Analyze(context.Background(), post.Post{Text: "claim"})
	assert.Error(t, err)
	assert.Equal(t, int64(0), f.syn.calls.Load())
	assert.Equal(t, 0, f.store.Len())

	// The aborted reservation does not wedge future attempts.
	f.cls.err = nil
	f.ret.err = nil
	_, err = f.wf.Analyze(context.Background(), post.Post{Text: "claim"})
	assert.NoError(t, err)
}

func TestAnalyzeSynthesisFailure(t *testing.T) {
	f := newFixture(t, Config{})
	f.syn.err = analysis.ErrSynthesisUnavailable

	_, err := f.wf.Analyze(context.Background(), post.Post{Text: "claim"})
	assert.ErrorIs(t, err, analysis.ErrSynthesisUnavailable)
	assert.Equal(t, 0, f.store.Len())
}

func TestAnalyzeConcurrentSingleComputation(t *testing.T) {
	f := newFixture(t, Config{})
	f.cls.delay = 50 * time.Millisecond

	const callers = 12
	var wg sync.WaitGroup
	results := make([]*analysis.Result, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.wf.Analyze(context.Background(), post.Post{Text: "viral claim"})
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, results[0].ContentKey, results[i].ContentKey)
		assert.Equal(t, results[0].RiskScore, results[i].RiskScore)
	}
	assert.Equal(t, int64(1), f.cls.calls.Load(), "one classifier call for N concurrent submitters")
	assert.Equal(t, int64(1), f.ret.calls.Load())
	assert.Equal(t, int64(1), f.syn.calls.Load())
}

func TestAnalyzeCallerCancellationDoesNotKillComputation(t *testing.T) {
	f := newFixture(t, Config{})
	f.cls.delay = 80 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.wf.Analyze(ctx, post.Post{Text: "claim"})
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	// The shared computation was detached from the caller's context, so
	// the result still landed in the cache.
	require.Eventually(t, func() bool { return f.store.Len() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestAnalyzeStorageErrorReturnsUnpersisted(t *testing.T) {
	c, err := cache.New(&failingInsertStore{}, nil)
	require.NoError(t, err)

	cls := &mockClassifier{score: 0.6}
	ret := &mockRetriever{}
	syn := &mockSynthesizer{verdict: synthesis.Verdict{
		RiskScore: 0.6, Confidence: 0.7, Reasoning: "r",
	}}
	wf, err := New(post.NewHasher(post.IdentityConfig{}), c, cls, ret, syn, Config{}, nil)
	require.NoError(t, err)

	result, err := wf.Analyze(context.Background(), post.Post{Text: "claim"})
	require.NoError(t, err, "storage failure is tolerated by default")
	assert.False(t, result.Persisted)
	assert.InDelta(t, 0.6, result.RiskScore, 0.0001)
}

func TestAnalyzeStorageErrorFailsWhenConfigured(t *testing.T) {
	c, err := cache.New(&failingInsertStore{}, nil)
	require.NoError(t, err)

	syn := &mockSynthesizer{verdict: synthesis.Verdict{
		RiskScore: 0.6, Confidence: 0.7, Reasoning: "r",
	}}
	wf, err := New(post.NewHasher(post.IdentityConfig{}), c,
		&mockClassifier{score: 0.6}, &mockRetriever{}, syn,
		Config{FailOnStorageError: true}, nil)
	require.NoError(t, err)

	_, err = wf.Analyze(context.Background(), post.Post{Text: "claim"})
	assert.True(t, analysis.IsStorage(err))
}

func TestForceAnalyzeOverwrites(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	p := post.Post{Text: "claim"}

	first, err := f.wf.Analyze(ctx, p)
	require.NoError(t, err)

	f.syn.verdict.RiskScore = 0.2
	f.syn.verdict.Reasoning = "revised"

	forced, err := f.wf.ForceAnalyze(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, first.ContentKey, forced.ContentKey)
	assert.InDelta(t, 0.2, forced.RiskScore, 0.0001)
	assert.True(t, forced.Persisted)
	assert.Equal(t, int64(2), f.cls.calls.Load(), "force path recomputes")

	cached, err := f.wf.Analyze(ctx, p)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, cached.RiskScore, 0.0001, "forced result replaced the cache entry")
}

func TestHighEngagementFactor(t *testing.T) {
	f := newFixture(t, Config{})

	result, err := f.wf.Analyze(context.Background(), post.Post{
		Text:     "claim",
		Metadata: map[string]any{"likes": float64(50000)},
	})
	require.NoError(t, err)
	assert.Contains(t, result.Factors, "high_engagement")
}

func TestAnalyzedByTrend(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	_, err := f.wf.Analyze(ctx, post.Post{Text: "claim one", Trend: "elections"})
	require.NoError(t, err)
	_, err = f.wf.Analyze(ctx, post.Post{Text: "claim two", Trend: "elections"})
	require.NoError(t, err)
	_, err = f.wf.Analyze(ctx, post.Post{Text: "claim three", Trend: "health"})
	require.NoError(t, err)

	results, err := f.wf.AnalyzedByTrend(ctx, "elections", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	_, err = f.wf.AnalyzedByTrend(ctx, "", 10)
	assert.Error(t, err)
}

// failingInsertStore accepts reads but fails every write.
type failingInsertStore struct{}

func (s *failingInsertStore) Get(context.Context, post.ContentKey) (*analysis.Result, error) {
	return nil, cache.ErrNotFound
}

func (s *failingInsertStore) Insert(context.Context, *analysis.Result) error {
	return errors.New("disk full")
}

func (s *failingInsertStore) Upsert(context.Context, *analysis.Result) error {
	return errors.New("disk full")
}

func (s *failingInsertStore) ByTrend(context.Context, string, int) ([]*analysis.Result, error) {
	return nil, nil
}

func (s *failingInsertStore) Close() error { return nil }
