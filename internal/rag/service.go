package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/54b3r/ragchat-go/internal/store"
)

// Default retrieval policy, applied when the corresponding Config field is
// zero. Tunables, not constants: config and env can override both.
const (
	// DefaultMaxResults is the number of segments retrieved per query.
	DefaultMaxResults = 2

	// DefaultMinScore is the minimum cosine similarity a segment must reach
	// to be included in the prompt context.
	DefaultMinScore = 0.75
)

// Config holds the tunable policy for a Service. Zero values select the
// documented defaults.
type Config struct {
	// MaxResults is the maximum number of segments retrieved per query.
	MaxResults int

	// MinScore is the minimum cosine similarity for a retrieved segment.
	// Zero selects DefaultMinScore; to disable the threshold entirely pass
	// any negative value (cosine similarity never falls below -1).
	MinScore float64

	// ChunkSize is the maximum segment length in characters.
	ChunkSize int

	// ChunkOverlap is the character overlap between consecutive segments.
	ChunkOverlap int

	// Template overrides DefaultPromptTemplate when non-empty.
	Template string

	// CachePath is where SaveIndex writes the index snapshot. Empty disables
	// snapshot persistence.
	CachePath string

	// History is the optional conversation store. When set, each completed
	// chat turn (question + full answer) is persisted keyed by query ID.
	History store.ConversationStore
}

// Service is the RAG orchestrator. It owns no transport concerns: Ingest
// grows the index, Chat answers a query by streaming tokens to the caller's
// sink, and SaveIndex persists the index snapshot.
//
// A Service is safe for concurrent Chat calls, and for Chat calls concurrent
// with Ingest, as long as the configured Index guarantees atomic batch adds.
type Service struct {
	embedder  Embedder
	generator Generator
	index     Index
	splitter  *Splitter
	template  PromptTemplate
	cfg       Config
	log       *slog.Logger
}

// NewService constructs a Service from its capability dependencies.
// All three of embedder, generator, and index are required.
func NewService(embedder Embedder, generator Generator, index Index, cfg Config, log *slog.Logger) (*Service, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if generator == nil {
		return nil, fmt.Errorf("rag: generator must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("rag: index must not be nil")
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.MinScore == 0 {
		cfg.MinScore = DefaultMinScore
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		embedder:  embedder,
		generator: generator,
		index:     index,
		splitter:  NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		template:  NewPromptTemplate(cfg.Template),
		cfg:       cfg,
		log:       log,
	}, nil
}

// Ingest splits the document into segments, embeds them all, and adds the
// resulting entries to the index as one atomic batch. A document with empty
// text is a no-op, not an error. Embedding failures propagate to the caller
// and leave the index untouched — partial ingestion of a document is not
// possible.
func (s *Service) Ingest(ctx context.Context, doc Document) error {
	s.log.Info("ingesting document", slog.String("document_id", doc.ID))

	segments := s.splitter.Split(doc)
	if len(segments) == 0 {
		s.log.Debug("document produced no segments, skipping",
			slog.String("document_id", doc.ID))
		return nil
	}

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}

	embeddings, err := s.embedder.EmbedAll(ctx, texts)
	if err != nil {
		return fmt.Errorf("rag: embedding document %q: %w", doc.ID, err)
	}
	if len(embeddings) != len(segments) {
		return fmt.Errorf("rag: embedder returned %d vectors for %d segments of %q",
			len(embeddings), len(segments), doc.ID)
	}

	entries := make([]Entry, len(segments))
	for i := range segments {
		entries[i] = Entry{Embedding: embeddings[i], Segment: segments[i]}
	}

	if err := s.index.Add(ctx, entries); err != nil {
		return fmt.Errorf("rag: indexing document %q: %w", doc.ID, err)
	}

	s.log.Info("document ingested",
		slog.String("document_id", doc.ID),
		slog.Int("segments", len(segments)),
	)
	return nil
}

// Chat answers a query. It embeds the question, retrieves the most relevant
// segments, builds the prompt, and issues the streaming generation request.
// Chat returns once the stream is issued; every fragment is delivered to
// onTokens tagged with the query ID, followed by exactly one terminal frame
// (Complete=true) when generation finishes cleanly. If the generator reports
// an error mid-stream the failure is logged with the query ID and no further
// frames are emitted — previously delivered fragments remain valid.
//
// Failures before streaming starts (embedding, retrieval) are returned
// synchronously and nothing is emitted.
func (s *Service) Chat(ctx context.Context, query Query, onTokens func(Tokens)) error {
	if onTokens == nil {
		return fmt.Errorf("rag: onTokens sink must not be nil")
	}

	questionEmbedding, err := s.embedder.Embed(ctx, query.Question)
	if err != nil {
		return fmt.Errorf("rag: embedding query %s: %w", query.ID, err)
	}

	matches, err := s.index.Search(ctx, questionEmbedding, s.cfg.MaxResults, s.cfg.MinScore)
	if err != nil {
		return fmt.Errorf("rag: searching index for query %s: %w", query.ID, err)
	}

	segments := make([]Segment, len(matches))
	for i, m := range matches {
		segments[i] = m.Segment
	}
	prompt := s.template.Build(query.Question, segments)

	s.log.Debug("generated prompt",
		slog.String("query_id", query.ID.String()),
		slog.Int("retrieved", len(matches)),
		slog.String("prompt", prompt),
	)

	handler := StreamHandler{
		OnToken: func(text string) {
			onTokens(PartialResponse(query.ID, text))
		},
		OnComplete: func(full string) {
			onTokens(CompleteResponse(query.ID))
			s.log.Info("response complete",
				slog.String("query_id", query.ID.String()),
				slog.Int("response_chars", len(full)),
			)
			s.persistTurn(query, full)
		},
		OnError: func(err error) {
			s.log.Error("generation failed",
				slog.String("query_id", query.ID.String()),
				slog.Any("error", err),
			)
		},
	}

	if err := s.generator.Stream(ctx, prompt, handler); err != nil {
		return fmt.Errorf("rag: starting generation for query %s: %w", query.ID, err)
	}
	return nil
}

// SaveIndex persists the index snapshot to the configured cache path.
// It is idempotent and overwrites any prior snapshot. A no-op when no cache
// path is configured or the index does not support snapshots.
func (s *Service) SaveIndex() error {
	if s.cfg.CachePath == "" {
		return nil
	}
	snap, ok := s.index.(Snapshotter)
	if !ok {
		s.log.Debug("index backend does not support snapshots, skipping save")
		return nil
	}
	if err := snap.Save(s.cfg.CachePath); err != nil {
		return fmt.Errorf("rag: saving index snapshot: %w", err)
	}
	s.log.Info("index snapshot saved", slog.String("path", s.cfg.CachePath))
	return nil
}

// persistTurn writes the completed turn to the conversation store.
// Persistence failures are logged, never fatal for the chat.
func (s *Service) persistTurn(query Query, answer string) {
	if s.cfg.History == nil {
		return
	}
	ctx := context.Background()
	id := query.ID.String()
	if err := s.cfg.History.Append(ctx, id, store.RoleUser, query.Question); err != nil {
		s.log.Warn("history: failed to persist question", slog.Any("error", err))
	}
	if err := s.cfg.History.Append(ctx, id, store.RoleAssistant, answer); err != nil {
		s.log.Warn("history: failed to persist answer", slog.Any("error", err))
	}
}
