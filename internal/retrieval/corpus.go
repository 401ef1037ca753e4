package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/veridexlabs/veridexd/internal/logging"
	"github.com/veridexlabs/veridexd/internal/vectorstore"
)

// corpusDoc is the schema of entries in .json corpus files.
type corpusDoc struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url,omitempty"`
	Topic   string `json:"topic,omitempty"`
}

// Ingestor loads trusted-source documents from a directory into the vector
// store. Supported formats:
//
//   - .json: an array of {title, content, url, topic} objects
//   - .txt, .md: one document per file, titled by filename
//
// Document IDs are derived from content, so re-ingesting an unchanged file
// overwrites its own entries instead of duplicating them.
type Ingestor struct {
	store vectorstore.Store
	log   *logging.Logger
}

// NewIngestor creates an Ingestor writing to the given store.
func NewIngestor(store vectorstore.Store, log *logging.Logger) (*Ingestor, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Ingestor{store: store, log: log.Named("ingest")}, nil
}

// IngestDir loads every supported file in dir (non-recursive) and returns
// the number of documents indexed.
func (in *Ingestor) IngestDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading corpus directory: %w", err)
	}

	total := 0
	for _, entry := range entries {
		if entry.IsDir() || !supportedCorpusFile(entry.Name()) {
			continue
		}
		n, err := in.IngestFile(ctx, filepath.Join(dir, entry.Name()))
		if err != nil {
			return total, err
		}
		total += n
	}

	in.log.Info(ctx, "ingested trusted-source corpus",
		zap.String("dir", dir), zap.Int("documents", total))
	return total, nil
}

// IngestFile loads a single corpus file and returns the number of documents
// indexed.
func (in *Ingestor) IngestFile(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading corpus file: %w", err)
	}

	var docs []vectorstore.Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var entries []corpusDoc
		if err := json.Unmarshal(raw, &entries); err != nil {
			return 0, fmt.Errorf("parsing corpus file %s: %w", filepath.Base(path), err)
		}
		for _, e := range entries {
			if strings.TrimSpace(e.Content) == "" {
				continue
			}
			metadata := map[string]any{"title": e.Title}
			if e.URL != "" {
				metadata["url"] = e.URL
			}
			if e.Topic != "" {
				metadata["topic"] = e.Topic
			}
			docs = append(docs, vectorstore.Document{
				ID:       docID(e.Title, e.Content),
				Content:  e.Content,
				Metadata: metadata,
			})
		}

	case ".txt", ".md":
		content := strings.TrimSpace(string(raw))
		if content == "" {
			return 0, nil
		}
		title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		docs = append(docs, vectorstore.Document{
			ID:       docID(title, content),
			Content:  content,
			Metadata: map[string]any{"title": title},
		})

	default:
		return 0, nil
	}

	if len(docs) == 0 {
		return 0, nil
	}
	if _, err := in.store.Add(ctx, docs); err != nil {
		return 0, fmt.Errorf("indexing corpus file %s: %w", filepath.Base(path), err)
	}

	documentsIngested.Add(float64(len(docs)))
	in.log.Debug(ctx, "ingested corpus file",
		zap.String("file", filepath.Base(path)), zap.Int("documents", len(docs)))
	return len(docs), nil
}

func supportedCorpusFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".txt", ".md":
		return true
	}
	return false
}

func docID(title, content string) string {
	sum := sha256.Sum256([]byte(title + "\x00" + content))
	return "src_" + hex.EncodeToString(sum[:8])
}
