package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/54b3r/ragchat-go/internal/embedder"
	"github.com/54b3r/ragchat-go/internal/generator"
	"github.com/54b3r/ragchat-go/internal/index"
	"github.com/54b3r/ragchat-go/internal/rag"
	"github.com/54b3r/ragchat-go/internal/server"
	"github.com/54b3r/ragchat-go/internal/source"
	"github.com/54b3r/ragchat-go/internal/store"
)

// ragStack bundles the fully wired service and the supporting pieces the
// serve command needs to hand to the HTTP server.
type ragStack struct {
	// service is the RAG orchestrator.
	service *rag.Service
	// history is the conversation store, nil when disabled.
	history store.ConversationStore
	// pingers are the readiness probes for the configured backends.
	pingers []server.Pinger
	// close releases the stack's resources (index connection, history DB).
	close func()
}

// buildStack wires the embedder, generator, index, and history store into a
// ready rag.Service from environment variables. The returned close function
// must be called when the stack is no longer needed.
func buildStack(ctx context.Context, log *slog.Logger) (*ragStack, error) {
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised", slog.String("provider", embedder.Backend()))

	gen, err := generator.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise generator: %w", err)
	}
	log.Info("generator initialised", slog.String("provider", getEnvOrDefault("MODEL_PROVIDER", "ollama")))

	idx, closeIndex, pingers, err := buildIndex(ctx, log)
	if err != nil {
		return nil, err
	}

	history, closeHistory := buildHistory(log)

	svc, err := rag.NewService(emb, gen, idx, rag.Config{
		MaxResults:   getEnvInt("RETRIEVAL_MAX_RESULTS", 0),
		MinScore:     getEnvFloat("RETRIEVAL_MIN_SCORE", 0),
		ChunkSize:    getEnvInt("CHUNK_SIZE", 0),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 0),
		CachePath:    os.Getenv("INDEX_CACHE_PATH"),
		History:      history,
	}, log)
	if err != nil {
		closeIndex()
		closeHistory()
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	return &ragStack{
		service: svc,
		history: history,
		pingers: pingers,
		close: func() {
			closeIndex()
			closeHistory()
		},
	}, nil
}

// buildIndex constructs the vector index selected by INDEX_BACKEND:
// "memory" (default) or "qdrant". A memory index is rehydrated from
// INDEX_CACHE_PATH when a snapshot exists; a corrupt snapshot is logged
// and discarded so the service starts with an empty index.
func buildIndex(ctx context.Context, log *slog.Logger) (rag.Index, func(), []server.Pinger, error) {
	var pingers []server.Pinger
	if backend := embedder.Backend(); backend == "ollama" {
		pingers = append(pingers, server.NewHTTPPinger("ollama", getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")))
	}

	switch backend := getEnvOrDefault("INDEX_BACKEND", "memory"); backend {
	case "memory":
		mem := index.NewMemory()
		if path := os.Getenv("INDEX_CACHE_PATH"); path != "" {
			loaded, err := index.Load(path)
			switch {
			case err == nil:
				mem = loaded
				log.Info("index snapshot loaded",
					slog.String("path", path),
					slog.Int("entries", mem.Len()),
				)
			case errors.Is(err, os.ErrNotExist):
				log.Info("no index snapshot found, starting empty", slog.String("path", path))
			case errors.Is(err, index.ErrCorruptSnapshot):
				log.Warn("index snapshot is corrupt, starting empty",
					slog.String("path", path),
					slog.Any("error", err),
				)
			default:
				log.Warn("failed to load index snapshot, starting empty",
					slog.String("path", path),
					slog.Any("error", err),
				)
			}
		}
		return mem, func() {}, pingers, nil

	case "qdrant":
		vectorSize := uint64(embedder.DefaultDimensions(embedder.Backend()))
		if dims := getEnvInt("EMBEDDING_DIMENSIONS", 0); dims > 0 {
			vectorSize = uint64(dims)
		}
		q, err := index.NewQdrant(ctx, &index.QdrantConfig{
			Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: getEnvOrDefault("QDRANT_COLLECTION", "ragchat"),
			VectorSize: vectorSize,
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		log.Info("qdrant index ready",
			slog.String("host", getEnvOrDefault("QDRANT_HOST", "localhost")),
			slog.String("collection", getEnvOrDefault("QDRANT_COLLECTION", "ragchat")),
		)
		pingers = append(pingers, server.NewQdrantPinger(q.Client()))
		return q, func() { _ = q.Close() }, pingers, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown INDEX_BACKEND %q — valid values: memory, qdrant", backend)
	}
}

// buildHistory opens the conversation history store. RAGCHAT_HISTORY_DB
// overrides the default path (~/.ragchat/history.db); set it to "disabled"
// to turn history off. Failures disable history rather than aborting.
func buildHistory(log *slog.Logger) (store.ConversationStore, func()) {
	dbPath := os.Getenv("RAGCHAT_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via RAGCHAT_HISTORY_DB=disabled")
		return nil, func() {}
	}

	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, func() {}
		}
	}

	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil, func() {}
	}
	log.Info("history: store opened", slog.String("path", dbPath))
	return hs, func() { _ = hs.Close() }
}

// ingestDataFile loads the configured CSV document collection and ingests
// every document into the service's index, then persists the snapshot.
func ingestDataFile(ctx context.Context, svc *rag.Service, path string, log *slog.Logger) error {
	docs, err := source.LoadFAQ(source.FAQConfig{
		Path:           path,
		QuestionColumn: getEnvInt("DATA_QUESTION_COLUMN", 0),
		AnswerColumn:   getEnvInt("DATA_ANSWER_COLUMN", 1),
		MaxDocuments:   getEnvInt("DATA_MAX_DOCUMENTS", 0),
	})
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	log.Info("documents loaded", slog.String("file", path), slog.Int("count", len(docs)))

	for _, doc := range docs {
		if err := svc.Ingest(ctx, doc); err != nil {
			return fmt.Errorf("ingesting %q: %w", doc.ID, err)
		}
	}

	if err := svc.SaveIndex(); err != nil {
		log.Warn("failed to save index snapshot", slog.Any("error", err))
	}
	return nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat returns the float64 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
