// Veridexd is a fake-news risk analysis daemon.
//
// It exposes an HTTP API that scores social media posts for misinformation
// risk, deduplicating identical content through a content-addressed analysis
// cache. The pipeline fuses a text classifier, trusted-source retrieval, and
// verdict synthesis.
//
// Usage:
//
//	# Start with defaults (in-memory cache, embedded vector store)
//	veridexd
//
//	# Start with a config file
//	veridexd -config /etc/veridexd/config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/veridexlabs/veridexd/internal/cache"
	"github.com/veridexlabs/veridexd/internal/classifier"
	"github.com/veridexlabs/veridexd/internal/config"
	"github.com/veridexlabs/veridexd/internal/embeddings"
	"github.com/veridexlabs/veridexd/internal/httpapi"
	"github.com/veridexlabs/veridexd/internal/logging"
	"github.com/veridexlabs/veridexd/internal/post"
	"github.com/veridexlabs/veridexd/internal/retrieval"
	"github.com/veridexlabs/veridexd/internal/synthesis"
	"github.com/veridexlabs/veridexd/internal/telemetry"
	"github.com/veridexlabs/veridexd/internal/vectorstore"
	"github.com/veridexlabs/veridexd/internal/workflow"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (YAML)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "veridexd: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("veridexd by Veridex Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until the context is cancelled.
//
// Initialization order:
//  1. Configuration
//  2. Logger and telemetry
//  3. Analysis cache (memory or postgres)
//  4. Embeddings, vector store, trusted-source retrieval
//  5. Classifier and synthesizer
//  6. Workflow and HTTP server
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info(ctx, "starting veridexd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("cache_provider", cfg.Cache.Provider),
		zap.String("vectorstore_provider", cfg.VectorStore.Provider),
	)

	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			log.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
		}
	}()

	store, err := cache.NewStore(ctx, cfg.Cache, log)
	if err != nil {
		return fmt.Errorf("initializing cache store: %w", err)
	}
	defer func() { _ = store.Close() }()

	analysisCache, err := cache.New(store, log)
	if err != nil {
		return fmt.Errorf("initializing analysis cache: %w", err)
	}

	embedder, err := embeddings.NewService(cfg.Embeddings)
	if err != nil {
		return fmt.Errorf("initializing embeddings: %w", err)
	}

	vecStore, err := vectorstore.New(ctx, cfg.VectorStore, embedder, log.Underlying())
	if err != nil {
		return fmt.Errorf("initializing vector store: %w", err)
	}
	defer func() { _ = vecStore.Close() }()

	retriever, err := retrieval.NewRetriever(vecStore, cfg.Retrieval, log)
	if err != nil {
		return fmt.Errorf("initializing retriever: %w", err)
	}

	watcher, err := setupCorpus(ctx, cfg.Retrieval, vecStore, log)
	if err != nil {
		return fmt.Errorf("initializing corpus: %w", err)
	}
	if watcher != nil {
		defer watcher.Stop()
	}

	cls, err := classifier.New(cfg.Classifier, log)
	if err != nil {
		return fmt.Errorf("initializing classifier: %w", err)
	}

	synth, err := synthesis.New(cfg.Synthesis, log)
	if err != nil {
		return fmt.Errorf("initializing synthesizer: %w", err)
	}

	wf, err := workflow.New(
		post.NewHasher(post.IdentityConfig(cfg.Identity)),
		analysisCache,
		cls,
		retriever,
		synth,
		workflow.Config{FailOnStorageError: cfg.Cache.FailOnStorageError},
		log,
	)
	if err != nil {
		return fmt.Errorf("initializing workflow: %w", err)
	}

	srv, err := httpapi.NewServer(wf, cfg.Server, log)
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down",
		zap.Duration("timeout", cfg.Server.ShutdownTimeout.Duration()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// setupCorpus ingests the configured trusted-source directory and optionally
// starts a watcher that ingests new files as they appear. Returns nil when
// no corpus directory is configured.
func setupCorpus(ctx context.Context, cfg config.RetrievalConfig, store vectorstore.Store, log *logging.Logger) (*retrieval.CorpusWatcher, error) {
	if cfg.CorpusDir == "" {
		return nil, nil
	}

	ingestor, err := retrieval.NewIngestor(store, log)
	if err != nil {
		return nil, err
	}
	count, err := ingestor.IngestDir(ctx, cfg.CorpusDir)
	if err != nil {
		return nil, fmt.Errorf("ingesting corpus dir %s: %w", cfg.CorpusDir, err)
	}
	log.Info(ctx, "corpus ingested",
		zap.String("dir", cfg.CorpusDir),
		zap.Int("documents", count))

	if !cfg.Watch {
		return nil, nil
	}

	watcher, err := retrieval.NewCorpusWatcher(cfg.CorpusDir, ingestor, log)
	if err != nil {
		return nil, err
	}
	if err := watcher.Start(ctx); err != nil {
		return nil, err
	}
	log.Info(ctx, "corpus watcher started", zap.String("dir", cfg.CorpusDir))
	return watcher, nil
}

func newLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	logCfg := logging.NewDefaultConfig()
	logCfg.Format = cfg.Format

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}
	logCfg.Level = level

	return logging.NewLogger(logCfg, nil)
}
