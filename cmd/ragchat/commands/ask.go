package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/rag"
)

// defaultAskTimeout bounds how long ask waits between streamed fragments
// before giving up on the model.
const defaultAskTimeout = 2 * time.Minute

// answerer is the slice of rag.Service the ask command needs.
type answerer interface {
	Chat(ctx context.Context, query rag.Query, onTokens func(rag.Tokens)) error
}

// NewAskCmd constructs the `ragchat ask` command, which answers a single
// question and streams the response to stdout.
func NewAskCmd() *cobra.Command {
	var file string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question against the indexed documents",
		Long: `Ask a one-shot question. The question is embedded, the most similar
document chunks are retrieved, and the model's answer streams to stdout.

The index comes from the INDEX_CACHE_PATH snapshot or the Qdrant collection,
whichever INDEX_BACKEND selects. Pass --file to ingest a CSV collection
first — handy for trying out a fresh document set without running serve.

Examples:
  ragchat ask "what payment methods do you accept?"
  ragchat ask --file faq.csv "how do I reset my password?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			stack, err := buildStack(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer stack.close()

			if file != "" {
				if err := ingestDataFile(ctx, stack.service, file, log); err != nil {
					return fmt.Errorf("ask: %w", err)
				}
			}

			query := rag.Query{ID: uuid.New(), Question: args[0]}
			if err := streamAnswer(ctx, stack.service, query, os.Stdout, timeout); err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV document collection to ingest before asking")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultAskTimeout, "Give up when no fragment arrives within this duration")

	return cmd
}

// streamAnswer runs one query and writes the streamed answer to out. It
// returns once the terminal frame arrives, and fails when no fragment
// arrives within idleTimeout — a stream that dies mid-generation emits no
// terminal frame, so the timeout is the only end-of-stream signal then.
func streamAnswer(ctx context.Context, chat answerer, query rag.Query, out io.Writer, idleTimeout time.Duration) error {
	if idleTimeout <= 0 {
		idleTimeout = defaultAskTimeout
	}

	// The sink runs on the generator's goroutine; the select keeps it from
	// blocking forever once this function has returned.
	frames := make(chan rag.Tokens, 64)
	sink := func(t rag.Tokens) {
		select {
		case frames <- t:
		case <-ctx.Done():
		}
	}

	if err := chat.Chat(ctx, query, sink); err != nil {
		return err //nolint:wrapcheck // caller adds the command prefix
	}

	idle := time.NewTimer(idleTimeout)
	defer idle.Stop()

	for {
		select {
		case t := <-frames:
			if t.Complete {
				fmt.Fprintln(out)
				return nil
			}
			fmt.Fprint(out, t.Text)
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(idleTimeout)

		case <-idle.C:
			logging.FromContext(ctx).Warn("answer stream idle timeout",
				slog.String("query_id", query.ID.String()),
			)
			return fmt.Errorf("no response from model within %s — generation failed or stalled", idleTimeout)

		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck // CLI entry point — error goes directly to cobra
		}
	}
}
