package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/logging"
)

// NewIngestCmd constructs the `ragchat ingest` command, which loads a CSV
// document collection into the vector index.
func NewIngestCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a CSV document collection into the vector index",
		Long: `Load a CSV document collection, embed every document, and add the
results to the configured vector index.

The CSV's first row is a header and is skipped. By default column 0 holds the
question (indexed text) and column 1 the answer (carried as metadata);
override with DATA_QUESTION_COLUMN / DATA_ANSWER_COLUMN.

With INDEX_BACKEND=memory (the default) the index is persisted to
INDEX_CACHE_PATH afterwards, so a later 'ragchat serve' starts pre-populated.
With INDEX_BACKEND=qdrant the documents go straight into the collection.

Examples:
  ragchat ingest --file faq.csv
  INDEX_CACHE_PATH=~/.ragchat/index.json ragchat ingest --file faq.csv
  INDEX_BACKEND=qdrant ragchat ingest --file faq.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if file == "" {
				file = os.Getenv("DATA_FILE")
			}
			if file == "" {
				return fmt.Errorf("ingest: --file or DATA_FILE is required")
			}

			stack, err := buildStack(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer stack.close()

			if err := ingestDataFile(ctx, stack.service, file, log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("ingestion complete", slog.String("file", file))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV document collection to ingest (default: DATA_FILE)")

	return cmd
}
