package classifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridexlabs/veridexd/internal/config"
)

func TestNewProviderSelection(t *testing.T) {
	c, err := New(config.ClassifierConfig{Provider: "heuristic"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &HeuristicClassifier{}, c)

	c, err = New(config.ClassifierConfig{Provider: "http", BaseURL: "http://localhost:9000"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &HTTPClassifier{}, c)

	_, err = New(config.ClassifierConfig{Provider: "bogus"}, nil)
	assert.Error(t, err)
}

func TestHeuristicNeutralText(t *testing.T) {
	h := NewHeuristic()
	score, err := h.Classify(context.Background(), "The city council approved the new budget on Tuesday.", "")
	require.NoError(t, err)
	assert.Less(t, score.FakeProbability, 0.25)
	assert.Equal(t, "HEURISTIC", score.Label)
}

func TestHeuristicSensationalText(t *testing.T) {
	h := NewHeuristic()
	score, err := h.Classify(context.Background(),
		"SHOCKING!!! The MIRACLE cure THEY DON'T WANT YOU TO KNOW about!!! Share before it gets DELETED!!!", "")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score.FakeProbability, 0.5)
	assert.LessOrEqual(t, score.FakeProbability, 1.0)
}

func TestHeuristicDeterministic(t *testing.T) {
	h := NewHeuristic()
	text := "Wake up! This hoax was censored!"
	s1, err := h.Classify(context.Background(), text, "")
	require.NoError(t, err)
	s2, err := h.Classify(context.Background(), text, "")
	require.NoError(t, err)
	assert.Equal(t, s1.FakeProbability, s2.FakeProbability)
}

func TestHeuristicEmptyText(t *testing.T) {
	h := NewHeuristic()
	_, err := h.Classify(context.Background(), "   ", "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestHeuristicImageDescriptionContributes(t *testing.T) {
	h := NewHeuristic()
	text := "Look at this photo."

	plain, err := h.Classify(context.Background(), text, "")
	require.NoError(t, err)
	loaded, err := h.Classify(context.Background(), text, "banner reading miracle cure exposed by big pharma")
	require.NoError(t, err)

	assert.Greater(t, loaded.FakeProbability, plain.FakeProbability)
}

func TestHTTPClassifierFakeLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/classify", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"label": "FAKE", "score": 0.93}, {"label": "REAL", "score": 0.07}]`))
	}))
	defer srv.Close()

	c, err := NewHTTPClassifier(config.ClassifierConfig{BaseURL: srv.URL, Model: "bert-fake-news"}, nil)
	require.NoError(t, err)

	score, err := c.Classify(context.Background(), "some claim", "")
	require.NoError(t, err)
	assert.InDelta(t, 0.93, score.FakeProbability, 0.001)
	assert.Equal(t, "FAKE", score.Label)
	assert.Equal(t, "bert-fake-news", score.Model)
}

func TestHTTPClassifierRealLabelInverted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"label": "REAL", "score": 0.88}`))
	}))
	defer srv.Close()

	c, err := NewHTTPClassifier(config.ClassifierConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	score, err := c.Classify(context.Background(), "some claim", "")
	require.NoError(t, err)
	assert.InDelta(t, 0.12, score.FakeProbability, 0.001)
}

func TestHTTPClassifierNestedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[[{"label": "LABEL_1", "score": 0.75}, {"label": "LABEL_0", "score": 0.25}]]`))
	}))
	defer srv.Close()

	c, err := NewHTTPClassifier(config.ClassifierConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	score, err := c.Classify(context.Background(), "some claim", "")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, score.FakeProbability, 0.001)
}

func TestHTTPClassifierRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"label": "FAKE", "score": 0.6}`))
	}))
	defer srv.Close()

	c, err := NewHTTPClassifier(config.ClassifierConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	score, err := c.Classify(context.Background(), "some claim", "")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, score.FakeProbability, 0.001)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPClassifierClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c, err := NewHTTPClassifier(config.ClassifierConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), "some claim", "")
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPClassifierEmptyText(t *testing.T) {
	c, err := NewHTTPClassifier(config.ClassifierConfig{BaseURL: "http://localhost:9000"}, nil)
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestParseClassificationUnrecognized(t *testing.T) {
	_, err := parseClassification([]byte(`"oops"`))
	assert.Error(t, err)
}
