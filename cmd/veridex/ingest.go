package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veridexlabs/veridexd/internal/config"
	"github.com/veridexlabs/veridexd/internal/embeddings"
	"github.com/veridexlabs/veridexd/internal/logging"
	"github.com/veridexlabs/veridexd/internal/retrieval"
	"github.com/veridexlabs/veridexd/internal/vectorstore"
)

var ingestConfig string

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Ingest trusted-source documents into the vector store",
	Long: `Ingest a directory of trusted-source documents (.json, .txt, .md)
into the vector store used for retrieval.

This command writes to the store directly and must use the same vector
store configuration as the daemon. Point it at the daemon's config file.

Examples:
  # Ingest a corpus directory
  veridex ingest ./corpus

  # Ingest using an explicit config file
  veridex ingest --config /etc/veridexd/config.yaml ./corpus`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestConfig, "config", "", "path to the veridexd config file")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.LoadWithFile(ingestConfig)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logging.NewNop()

	embedder, err := embeddings.NewService(cfg.Embeddings)
	if err != nil {
		return fmt.Errorf("failed to create embedding service: %w", err)
	}

	store, err := vectorstore.New(ctx, cfg.VectorStore, embedder, log.Underlying())
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	defer store.Close()

	ingestor, err := retrieval.NewIngestor(store, log)
	if err != nil {
		return fmt.Errorf("failed to create ingestor: %w", err)
	}

	count, err := ingestor.IngestDir(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to ingest %s: %w", args[0], err)
	}

	total, err := store.Count(ctx)
	if err != nil {
		fmt.Printf("Ingested %d document(s) from %s\n", count, args[0])
		return nil
	}
	fmt.Printf("Ingested %d document(s) from %s (%d total in store)\n", count, args[0], total)
	return nil
}
