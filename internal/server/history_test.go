package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/54b3r/ragchat-go/internal/store"
)

// fakeHistory implements store.ConversationStore with a canned message list.
type fakeHistory struct {
	// messages is returned from Recent regardless of limit.
	messages []store.Message
	// lastLimit records the limit of the most recent Recent call.
	lastLimit int
	// err fails Recent when set.
	err error
}

func (f *fakeHistory) Append(context.Context, string, store.Role, string) error { return nil }

func (f *fakeHistory) Recent(_ context.Context, n int) ([]store.Message, error) {
	f.lastLimit = n
	if f.err != nil {
		return nil, f.err
	}
	return f.messages, nil
}

func (f *fakeHistory) Close() error { return nil }

func TestHandleHistory_ReturnsMessages(t *testing.T) {
	t.Parallel()

	hist := &fakeHistory{messages: []store.Message{
		{Conversation: "q1", Role: store.RoleUser, Content: "hi", CreatedAt: time.Unix(100, 0)},
		{Conversation: "q1", Role: store.RoleAssistant, Content: "hello", CreatedAt: time.Unix(101, 0)},
	}}
	s := newTestServer(t, &fakeChatter{}, &Config{History: hist})

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp historyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(resp.Messages))
	}
	if resp.Messages[0].QueryID != "q1" || resp.Messages[0].Role != "user" {
		t.Errorf("messages[0] = %+v", resp.Messages[0])
	}
	if hist.lastLimit != defaultHistoryLimit {
		t.Errorf("default limit = %d, want %d", hist.lastLimit, defaultHistoryLimit)
	}
}

func TestHandleHistory_LimitParameter(t *testing.T) {
	t.Parallel()

	hist := &fakeHistory{}
	s := newTestServer(t, &fakeChatter{}, &Config{History: hist})

	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=7", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if hist.lastLimit != 7 {
		t.Errorf("limit = %d, want 7", hist.lastLimit)
	}
}

func TestHandleHistory_LimitCapped(t *testing.T) {
	t.Parallel()

	hist := &fakeHistory{}
	s := newTestServer(t, &fakeChatter{}, &Config{History: hist})

	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=99999", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if hist.lastLimit != maxHistoryLimit {
		t.Errorf("limit = %d, want cap %d", hist.lastLimit, maxHistoryLimit)
	}
}

func TestHandleHistory_InvalidLimit(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeChatter{}, &Config{History: &fakeHistory{}})

	for _, limit := range []string{"abc", "-1", "0"} {
		req := httptest.NewRequest(http.MethodGet, "/api/history?limit="+limit, nil)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%q: expected 400, got %d", limit, w.Code)
		}
	}
}

func TestHandleHistory_Disabled(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeChatter{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 with history disabled, got %d", w.Code)
	}
}
