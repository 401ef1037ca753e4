package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/veridexlabs/veridexd/internal/logging"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// debounceDelay coalesces the write bursts editors and copies produce.
const debounceDelay = 500 * time.Millisecond

// CorpusWatcher ingests new and modified corpus files as they appear, so the
// trusted-source index can be updated without restarting the daemon.
type CorpusWatcher struct {
	dir      string
	ingestor *Ingestor
	watcher  *fsnotify.Watcher
	log      *logging.Logger
	stop     chan struct{}
}

// NewCorpusWatcher creates a watcher over dir.
func NewCorpusWatcher(dir string, ingestor *Ingestor, log *logging.Logger) (*CorpusWatcher, error) {
	if ingestor == nil {
		return nil, errors.New("ingestor is required")
	}
	if log == nil {
		log = logging.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &CorpusWatcher{
		dir:      dir,
		ingestor: ingestor,
		watcher:  watcher,
		log:      log.Named("corpuswatch"),
		stop:     make(chan struct{}),
	}, nil
}

// Start begins watching. Events are processed in a background goroutine
// until Stop is called or the context is cancelled.
func (w *CorpusWatcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching corpus directory: %w", err)
	}
	go w.processEvents(ctx)
	w.log.Info(ctx, "watching corpus directory", zap.String("dir", w.dir))
	return nil
}

// Stop stops the watcher and releases resources.
func (w *CorpusWatcher) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
	_ = w.watcher.Close()
}

func (w *CorpusWatcher) processEvents(ctx context.Context) {
	// pending tracks files awaiting their debounce deadline.
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounceDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !supportedCorpusFile(event.Name) {
				continue
			}
			pending[event.Name] = time.Now().Add(debounceDelay)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn(ctx, "corpus watcher error", zap.Error(err))

		case now := <-ticker.C:
			for path, deadline := range pending {
				if now.Before(deadline) {
					continue
				}
				delete(pending, path)
				if _, err := w.ingestor.IngestFile(ctx, path); err != nil {
					w.log.Warn(ctx, "corpus file ingestion failed",
						zap.String("file", path), zap.Error(err))
				}
			}
		}
	}
}
