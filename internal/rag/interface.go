// Package rag implements the retrieval-augmented generation core: document
// chunking, embedding, vector search, prompt assembly, and streaming answer
// generation. The embedding and chat models are abstracted behind the
// Embedder and Generator interfaces so the core never depends on a specific
// backend (Ollama, OpenAI, Gemini, ...).
package rag

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrModelUnavailable indicates the embedding or generation backend could not
// be invoked (model not loaded, endpoint unreachable). It is fatal for the
// in-flight ingest or chat call and is never retried by the core.
var ErrModelUnavailable = errors.New("model unavailable")

// ErrDocumentLoad indicates a source document could not be read or parsed.
// Raised by upstream loaders and surfaced through the ingest error path.
var ErrDocumentLoad = errors.New("document load failed")

// Document is a unit of ingestable knowledge: an identifier, its full text,
// and arbitrary key-value metadata. Documents are immutable once created.
type Document struct {
	// ID is the unique identifier for this document. For FAQ sources the
	// question text doubles as the ID.
	ID string

	// Text is the raw text content to be chunked and indexed.
	Text string

	// Metadata holds arbitrary key-value pairs carried onto every segment
	// produced from this document (e.g. "answer" for FAQ entries).
	Metadata map[string]string
}

// Segment is a contiguous slice of a document's text sized for embedding,
// carrying a copy of the document's metadata and its provenance.
type Segment struct {
	// DocumentID identifies the source document this segment came from.
	DocumentID string `json:"document_id"`

	// Text is the segment's text content.
	Text string `json:"text"`

	// Metadata is a copy of the source document's metadata.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Query is a single conversational turn: a caller-supplied identifier used to
// correlate streamed output with the originating request, plus the question.
type Query struct {
	// ID correlates every streamed token with this query.
	ID uuid.UUID

	// Question is the verbatim user question.
	Question string
}

// Tokens is one streamed fragment of a generated answer. A stream for a given
// query ID is totally ordered by emission and ends with exactly one terminal
// frame (Complete=true, empty Text); no further frames follow it.
type Tokens struct {
	// QueryID identifies the query this fragment belongs to, so a shared
	// sink can demultiplex concurrent streams.
	QueryID uuid.UUID `json:"queryId"`

	// Text is the fragment of generated text. Empty on the terminal frame.
	Text string `json:"tokens"`

	// Complete marks the end of the stream for this query ID.
	Complete bool `json:"complete"`
}

// PartialResponse builds a non-terminal token frame for the given query.
func PartialResponse(queryID uuid.UUID, text string) Tokens {
	return Tokens{QueryID: queryID, Text: text}
}

// CompleteResponse builds the terminal frame that closes the stream for the
// given query.
func CompleteResponse(queryID uuid.UUID) Tokens {
	return Tokens{QueryID: queryID, Complete: true}
}

// Entry is an (embedding, segment) pair as stored in a vector index.
type Entry struct {
	// Embedding is the fixed-dimension vector for Segment's text.
	Embedding []float32 `json:"embedding"`

	// Segment is the indexed text segment.
	Segment Segment `json:"segment"`
}

// Match is a single search hit: a stored segment and its similarity score.
type Match struct {
	// Segment is the matched segment.
	Segment Segment

	// Score is the cosine similarity to the query embedding, in [-1, 1].
	Score float64
}

// Embedder converts text into dense vector embeddings. All embeddings
// produced by one instance have the same dimension, and identical input text
// yields identical vectors within that instance.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a single text into its embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedAll converts a batch of texts into their embeddings. The returned
	// slice is parallel to the input: same order, same length.
	EmbedAll(ctx context.Context, texts []string) ([][]float32, error)
}

// StreamHandler receives the events of one streaming generation call.
// OnToken is invoked zero or more times in emission order, possibly from a
// different goroutine than the caller's. Exactly one of OnComplete or OnError
// is invoked exactly once, after the last OnToken call.
type StreamHandler struct {
	// OnToken receives successive fragments of generated text.
	OnToken func(text string)

	// OnComplete receives the full accumulated response when the stream
	// finishes cleanly.
	OnComplete func(full string)

	// OnError receives the failure if the stream aborts. Fragments already
	// delivered via OnToken remain valid.
	OnError func(err error)
}

// Generator streams generated text for a prompt. Stream issues the request
// and returns without waiting for the stream to finish; all events are
// delivered through the handler.
// Implementations must be safe to call from multiple goroutines.
type Generator interface {
	Stream(ctx context.Context, prompt string, h StreamHandler) error
}

// Index stores (embedding, segment) entries and answers top-k cosine
// similarity queries. Add appends a batch atomically: a concurrent Search
// observes either all of the batch or none of it. Entries are append-only;
// insertion order is preserved and breaks score ties in Search.
// Implementations must be safe for concurrent Add and Search calls.
type Index interface {
	// Add appends all entries as one atomic batch.
	Add(ctx context.Context, entries []Entry) error

	// Search returns up to maxResults segments whose cosine similarity to
	// query is >= minScore, ordered by descending score. Ties are broken by
	// insertion order, earlier entries first.
	Search(ctx context.Context, query []float32, maxResults int, minScore float64) ([]Match, error)
}

// Snapshotter is implemented by indexes that can persist their full contents
// to a single snapshot file. Saving is idempotent and overwrites any prior
// snapshot at the same path.
type Snapshotter interface {
	Save(path string) error
}
