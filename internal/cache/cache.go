package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/veridexlabs/veridexd/internal/analysis"
	"github.com/veridexlabs/veridexd/internal/logging"
	"github.com/veridexlabs/veridexd/internal/post"
)

var tracer = otel.Tracer("veridexd/cache")

// ErrTokenUsed indicates a reservation token was committed or aborted twice.
var ErrTokenUsed = errors.New("reservation token already used")

// reservation tracks one in-flight computation. done is closed exactly once,
// after which result is either the committed analysis or nil for an abort.
type reservation struct {
	done   chan struct{}
	result *analysis.Result
}

// Token is the single-use capability to commit or abort a reserved
// computation. Exactly one token exists per in-flight content key.
type Token struct {
	key   post.ContentKey
	res   *reservation
	cache *Cache
	used  atomic.Bool
}

// Key returns the content key this token reserves.
func (t *Token) Key() post.ContentKey { return t.key }

// Cache fronts a Store with a reservation protocol: for each content key at
// most one caller computes while the rest park and share the outcome.
type Cache struct {
	store Store
	log   *logging.Logger

	mu       sync.Mutex
	inflight map[post.ContentKey]*reservation
}

// New creates a Cache over the given store.
func New(store Store, log *logging.Logger) (*Cache, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Cache{
		store:    store,
		log:      log.Named("cache"),
		inflight: make(map[post.ContentKey]*reservation),
	}, nil
}

// Get returns the committed result for key, or ErrNotFound. It never waits
// on in-flight computation.
func (c *Cache) Get(ctx context.Context, key post.ContentKey) (*analysis.Result, error) {
	r, err := c.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		lookupsTotal.WithLabelValues("miss").Inc()
		return nil, err
	}
	if err != nil {
		lookupsTotal.WithLabelValues("error").Inc()
		return nil, &analysis.StorageError{Op: "get", Err: err}
	}
	lookupsTotal.WithLabelValues("hit").Inc()
	return r, nil
}

// TryBeginOrGet is the entry point of the reservation protocol. It returns
// exactly one of:
//
//   - a non-nil result: the analysis was already committed (or another
//     caller's in-flight computation just committed it) and this call is a
//     hit;
//   - a non-nil token: the caller won the reservation and must Commit or
//     Abort it;
//   - an error: the context was cancelled while parked, or the store failed.
//
// Callers parked behind an aborted computation retry the claim, so an abort
// promotes one waiter to compute.
func (c *Cache) TryBeginOrGet(ctx context.Context, key post.ContentKey) (*analysis.Result, *Token, error) {
	ctx, span := tracer.Start(ctx, "cache.TryBeginOrGet",
		trace.WithAttributes(attribute.String("content.key", key.Short())))
	defer span.End()

	for {
		c.mu.Lock()
		res, exists := c.inflight[key]
		if !exists {
			res = &reservation{done: make(chan struct{})}
			c.inflight[key] = res
			c.mu.Unlock()

			stored, err := c.store.Get(ctx, key)
			if err == nil {
				c.resolve(key, res, stored)
				lookupsTotal.WithLabelValues("hit").Inc()
				span.SetAttributes(attribute.String("outcome", "hit"))
				return stored, nil, nil
			}
			if !errors.Is(err, ErrNotFound) {
				// Release the claim so a later caller can retry
				// once the store recovers.
				c.resolve(key, res, nil)
				lookupsTotal.WithLabelValues("error").Inc()
				return nil, nil, &analysis.StorageError{Op: "get", Err: err}
			}

			lookupsTotal.WithLabelValues("miss").Inc()
			reservationsInflight.Inc()
			span.SetAttributes(attribute.String("outcome", "reserved"))
			return nil, &Token{key: key, res: res, cache: c}, nil
		}
		c.mu.Unlock()

		waitsTotal.Inc()
		c.log.Trace(ctx, "parked behind in-flight analysis",
			zap.String("content_key", key.Short()))
		select {
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("waiting for in-flight analysis: %w", ctx.Err())
		case <-res.done:
		}
		if res.result != nil {
			lookupsTotal.WithLabelValues("shared").Inc()
			span.SetAttributes(attribute.String("outcome", "shared"))
			return cloneResult(res.result), nil, nil
		}
		// The computation aborted. Loop to claim the reservation or
		// park behind whoever claimed it first.
	}
}

// Commit persists the computed result and releases parked waiters with it.
//
// The returned result is authoritative: on a commit conflict (another
// process committed the same key first) it is the already-stored result and
// the error is nil. On a storage failure the computed result is still
// returned alongside a *analysis.StorageError so the caller can decide
// whether an unpersisted result is acceptable; waiters receive the computed
// result either way.
func (c *Cache) Commit(ctx context.Context, token *Token, result *analysis.Result) (*analysis.Result, error) {
	if token == nil {
		return nil, errors.New("token is required")
	}
	if !token.used.CompareAndSwap(false, true) {
		return nil, ErrTokenUsed
	}
	if result == nil {
		c.resolve(token.key, token.res, nil)
		reservationsInflight.Dec()
		return nil, errors.New("result is required")
	}

	ctx, span := tracer.Start(ctx, "cache.Commit",
		trace.WithAttributes(attribute.String("content.key", token.key.Short())))
	defer span.End()

	defer reservationsInflight.Dec()

	err := c.store.Insert(ctx, result)
	switch {
	case err == nil:
		c.resolve(token.key, token.res, result)
		commitsTotal.WithLabelValues("committed").Inc()
		return result, nil

	case analysis.IsConflict(err):
		// Lost a cross-process race. The stored result wins.
		commitsTotal.WithLabelValues("conflict").Inc()
		stored, getErr := c.store.Get(ctx, token.key)
		if getErr != nil {
			c.log.Warn(ctx, "conflict re-read failed, serving computed result",
				zap.String("content_key", token.key.Short()), zap.Error(getErr))
			c.resolve(token.key, token.res, result)
			return result, &analysis.StorageError{Op: "get", Err: getErr}
		}
		c.resolve(token.key, token.res, stored)
		return stored, nil

	default:
		commitsTotal.WithLabelValues("error").Inc()
		c.log.Warn(ctx, "cache write failed, serving unpersisted result",
			zap.String("content_key", token.key.Short()), zap.Error(err))
		c.resolve(token.key, token.res, result)
		return result, &analysis.StorageError{Op: "put", Err: err}
	}
}

// Abort releases the reservation without a result. Parked waiters wake and
// one of them claims the next attempt.
func (c *Cache) Abort(token *Token) {
	if token == nil || !token.used.CompareAndSwap(false, true) {
		return
	}
	commitsTotal.WithLabelValues("aborted").Inc()
	reservationsInflight.Dec()
	c.resolve(token.key, token.res, nil)
}

// ForceUpdate overwrites any committed result for the key, bypassing the
// reservation protocol. Used for explicit re-analysis.
func (c *Cache) ForceUpdate(ctx context.Context, result *analysis.Result) error {
	ctx, span := tracer.Start(ctx, "cache.ForceUpdate",
		trace.WithAttributes(attribute.String("content.key", result.ContentKey.Short())))
	defer span.End()

	if err := c.store.Upsert(ctx, result); err != nil {
		commitsTotal.WithLabelValues("error").Inc()
		return &analysis.StorageError{Op: "upsert", Err: err}
	}
	commitsTotal.WithLabelValues("forced").Inc()
	return nil
}

// ByTrend returns up to limit committed results for a trend, newest first.
func (c *Cache) ByTrend(ctx context.Context, trend string, limit int) ([]*analysis.Result, error) {
	results, err := c.store.ByTrend(ctx, trend, limit)
	if err != nil {
		return nil, &analysis.StorageError{Op: "by_trend", Err: err}
	}
	return results, nil
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}

func (c *Cache) resolve(key post.ContentKey, res *reservation, result *analysis.Result) {
	c.mu.Lock()
	if c.inflight[key] == res {
		delete(c.inflight, key)
	}
	c.mu.Unlock()
	res.result = result
	close(res.done)
}
