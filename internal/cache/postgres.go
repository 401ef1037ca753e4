package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veridexlabs/veridexd/internal/analysis"
	"github.com/veridexlabs/veridexd/internal/config"
	"github.com/veridexlabs/veridexd/internal/post"
)

const schema = `
CREATE TABLE IF NOT EXISTS post_analyses (
	content_key      TEXT PRIMARY KEY,
	trend            TEXT NOT NULL DEFAULT '',
	risk_level       TEXT NOT NULL,
	risk_score       DOUBLE PRECISION NOT NULL,
	classifier_score DOUBLE PRECISION NOT NULL,
	confidence       DOUBLE PRECISION NOT NULL,
	reasoning        TEXT NOT NULL DEFAULT '',
	factors          JSONB,
	sources          JSONB,
	degraded         BOOLEAN NOT NULL DEFAULT FALSE,
	analyzed_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS post_analyses_trend_idx
	ON post_analyses (trend, analyzed_at DESC);
`

// PostgresStore persists results in a post_analyses table so cached
// analyses survive restarts and are shared across daemon replicas.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres, validates the connection, and
// ensures the schema exists.
func NewPostgresStore(ctx context.Context, cfg config.PostgresConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Value())
	if err != nil {
		return nil, fmt.Errorf("parsing postgres url: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout.Duration()
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, key post.ContentKey) (*analysis.Result, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT content_key, trend, risk_level, risk_score, classifier_score,
		       confidence, reasoning, factors, sources, degraded, analyzed_at
		FROM post_analyses WHERE content_key = $1`, string(key))

	r, err := scanResult(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying analysis: %w", err)
	}
	return r, nil
}

// Insert implements Store. A lost race surfaces as *analysis.ConflictError.
func (s *PostgresStore) Insert(ctx context.Context, result *analysis.Result) error {
	factors, sources, err := encodeJSONFields(result)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO post_analyses (content_key, trend, risk_level, risk_score,
			classifier_score, confidence, reasoning, factors, sources,
			degraded, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (content_key) DO NOTHING`,
		string(result.ContentKey), result.Trend, string(result.RiskLevel),
		result.RiskScore, result.ClassifierScore, result.Confidence,
		result.Reasoning, factors, sources, result.Degraded, result.AnalyzedAt)
	if err != nil {
		return fmt.Errorf("inserting analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &analysis.ConflictError{ContentKey: result.ContentKey}
	}
	return nil
}

// Upsert implements Store.
func (s *PostgresStore) Upsert(ctx context.Context, result *analysis.Result) error {
	factors, sources, err := encodeJSONFields(result)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO post_analyses (content_key, trend, risk_level, risk_score,
			classifier_score, confidence, reasoning, factors, sources,
			degraded, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (content_key) DO UPDATE SET
			trend = EXCLUDED.trend,
			risk_level = EXCLUDED.risk_level,
			risk_score = EXCLUDED.risk_score,
			classifier_score = EXCLUDED.classifier_score,
			confidence = EXCLUDED.confidence,
			reasoning = EXCLUDED.reasoning,
			factors = EXCLUDED.factors,
			sources = EXCLUDED.sources,
			degraded = EXCLUDED.degraded,
			analyzed_at = EXCLUDED.analyzed_at`,
		string(result.ContentKey), result.Trend, string(result.RiskLevel),
		result.RiskScore, result.ClassifierScore, result.Confidence,
		result.Reasoning, factors, sources, result.Degraded, result.AnalyzedAt)
	if err != nil {
		return fmt.Errorf("upserting analysis: %w", err)
	}
	return nil
}

// ByTrend implements Store.
func (s *PostgresStore) ByTrend(ctx context.Context, trend string, limit int) ([]*analysis.Result, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT content_key, trend, risk_level, risk_score, classifier_score,
		       confidence, reasoning, factors, sources, degraded, analyzed_at
		FROM post_analyses WHERE trend = $1
		ORDER BY analyzed_at DESC LIMIT $2`, trend, limit)
	if err != nil {
		return nil, fmt.Errorf("querying trend analyses: %w", err)
	}
	defer rows.Close()

	var out []*analysis.Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning trend analysis: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trend analyses: %w", err)
	}
	return out, nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping reports backend reachability for health checks.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func encodeJSONFields(r *analysis.Result) ([]byte, []byte, error) {
	factors, err := json.Marshal(r.Factors)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding factors: %w", err)
	}
	sources, err := json.Marshal(r.Sources)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding sources: %w", err)
	}
	return factors, sources, nil
}

func scanResult(row pgx.Row) (*analysis.Result, error) {
	var (
		r       analysis.Result
		key     string
		level   string
		factors []byte
		sources []byte
	)
	err := row.Scan(&key, &r.Trend, &level, &r.RiskScore, &r.ClassifierScore,
		&r.Confidence, &r.Reasoning, &factors, &sources, &r.Degraded, &r.AnalyzedAt)
	if err != nil {
		return nil, err
	}
	r.ContentKey = post.ContentKey(key)
	r.RiskLevel = analysis.RiskLevel(level)
	r.Persisted = true
	if len(factors) > 0 {
		if err := json.Unmarshal(factors, &r.Factors); err != nil {
			return nil, fmt.Errorf("decoding factors: %w", err)
		}
	}
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &r.Sources); err != nil {
			return nil, fmt.Errorf("decoding sources: %w", err)
		}
	}
	return &r, nil
}
