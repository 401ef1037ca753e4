package cache

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/veridexlabs/veridexd/internal/config"
	"github.com/veridexlabs/veridexd/internal/logging"
)

// NewStore creates the configured cache backend.
func NewStore(ctx context.Context, cfg config.CacheConfig, log *logging.Logger) (Store, error) {
	if log == nil {
		log = logging.NewNop()
	}

	switch cfg.Provider {
	case "memory", "":
		log.Info(ctx, "using in-process analysis cache")
		return NewMemoryStore(), nil

	case "postgres":
		store, err := NewPostgresStore(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("creating postgres cache: %w", err)
		}
		log.Info(ctx, "using postgres analysis cache",
			zap.Int32("max_conns", cfg.Postgres.MaxConns))
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}
}
