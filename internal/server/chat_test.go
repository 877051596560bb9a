package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// ---------------------------------------------------------------------------
// Fake chatter for transport tests
// ---------------------------------------------------------------------------

// fakeChatter implements the chatter interface for tests. It delivers the
// configured tokens followed by a terminal frame, all tagged with the query
// ID it was called with.
type fakeChatter struct {
	// tokens is the sequence of partial fragments to deliver.
	tokens []string
	// omitTerminal suppresses the terminal frame, simulating a stream that
	// died mid-flight.
	omitTerminal bool
	// err is returned synchronously before anything is delivered.
	err error
	// lastQuery records the query of the most recent Chat call.
	lastQuery rag.Query
}

func (f *fakeChatter) Chat(_ context.Context, query rag.Query, onTokens func(rag.Tokens)) error {
	if f.err != nil {
		return f.err
	}
	f.lastQuery = query
	for _, tok := range f.tokens {
		onTokens(rag.PartialResponse(query.ID, tok))
	}
	if !f.omitTerminal {
		onTokens(rag.CompleteResponse(query.ID))
	}
	return nil
}

// newTestServer builds a *Server wired with the given chatter fake.
func newTestServer(t *testing.T, chat chatter, cfg *Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	s, err := New(chat, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(s.stopRL)
	return s
}

// ---------------------------------------------------------------------------
// POST /api/chat — validation error paths
// ---------------------------------------------------------------------------

func TestHandleChat_MissingMessage(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeChatter{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"queryId":"not-used"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleChat_InvalidJSON(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeChatter{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`not-json`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /api/chat — SSE streaming
// ---------------------------------------------------------------------------

func TestHandleChat_StreamsTokensAndDone(t *testing.T) {
	t.Parallel()

	chat := &fakeChatter{tokens: []string{"Hello", " world"}}
	s := newTestServer(t, chat, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"hi"}`))
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "data: Hello\n") {
		t.Errorf("body missing first token: %q", body)
	}
	if !strings.Contains(body, "data:  world\n") {
		t.Errorf("body missing second token: %q", body)
	}
	if !strings.Contains(body, "event: done\ndata: [DONE]\n\n") {
		t.Errorf("body missing done event: %q", body)
	}
}

func TestHandleChat_UsesClientQueryID(t *testing.T) {
	t.Parallel()

	chat := &fakeChatter{tokens: []string{"x"}}
	s := newTestServer(t, chat, nil)

	id := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(fmt.Sprintf(`{"queryId":%q,"message":"hi"}`, id)))
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if chat.lastQuery.ID != id {
		t.Errorf("query ID = %s, want %s", chat.lastQuery.ID, id)
	}
}

func TestHandleChat_GeneratesQueryIDWhenAbsent(t *testing.T) {
	t.Parallel()

	chat := &fakeChatter{tokens: []string{"x"}}
	s := newTestServer(t, chat, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"hi","queryId":"garbage"}`))
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if chat.lastQuery.ID == uuid.Nil {
		t.Error("expected a generated query ID for an unparsable one")
	}
}

func TestHandleChat_ChatErrorBecomesErrorEvent(t *testing.T) {
	t.Parallel()

	chat := &fakeChatter{err: fmt.Errorf("embedder down: %w", rag.ErrModelUnavailable)}
	s := newTestServer(t, chat, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"hi"}`))
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), "event: error\n") {
		t.Errorf("body missing error event: %q", w.Body.String())
	}
}

func TestHandleChat_IdleTimeoutWithoutTerminalFrame(t *testing.T) {
	t.Parallel()

	chat := &fakeChatter{tokens: []string{"partial"}, omitTerminal: true}
	s := newTestServer(t, chat, &Config{StreamIdleTimeout: 50 * time.Millisecond})

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"hi"}`))
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.Handler().ServeHTTP(w, req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not return after idle timeout")
	}

	body := w.Body.String()
	if !strings.Contains(body, "data: partial\n") {
		t.Errorf("delivered fragment missing from body: %q", body)
	}
	if !strings.Contains(body, "event: error\ndata: stream timed out\n\n") {
		t.Errorf("body missing timeout error event: %q", body)
	}
	if strings.Contains(body, "event: done") {
		t.Errorf("done event emitted for a dead stream: %q", body)
	}
}

// ---------------------------------------------------------------------------
// sseWriter framing
// ---------------------------------------------------------------------------

func TestSSEWriter_MultiLineChunk(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	sw := &sseWriter{w: w, flusher: w}

	if _, err := sw.Write([]byte("line one\nline two\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	want := "data: line one\ndata: line two\n\n"
	if got := w.Body.String(); got != want {
		t.Errorf("frame = %q, want %q", got, want)
	}
}
