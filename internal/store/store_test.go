package store

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndRecent(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, "q1", RoleUser, "how do refunds work?"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Append(ctx, "q1", RoleAssistant, "refunds take 5 days"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	msgs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[0].Content != "how do refunds work?" {
		t.Errorf("msgs[0] = %+v", msgs[0])
	}
	if msgs[1].Role != RoleAssistant || msgs[1].Conversation != "q1" {
		t.Errorf("msgs[1] = %+v", msgs[1])
	}
}

func TestRecent_ReturnsTailOldestFirst(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three", "four"} {
		if err := s.Append(ctx, "q", RoleUser, content); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	msgs, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	// The two newest, but presented oldest-first.
	if msgs[0].Content != "three" || msgs[1].Content != "four" {
		t.Errorf("Recent(2) = [%q, %q], want [three, four]", msgs[0].Content, msgs[1].Content)
	}
}

func TestRecent_AcrossConversations(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, "qa", RoleUser, "first"); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "qb", RoleUser, "second"); err != nil {
		t.Fatal(err)
	}

	msgs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want messages from both conversations", len(msgs))
	}
	if msgs[0].Conversation != "qa" || msgs[1].Conversation != "qb" {
		t.Errorf("conversations = [%q, %q]", msgs[0].Conversation, msgs[1].Conversation)
	}
}

func TestRecent_NonPositiveLimit(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	msgs, err := s.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if msgs != nil {
		t.Errorf("Recent(0) = %v, want nil", msgs)
	}
}

func TestOpen_MigratesIdempotently(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.db")
	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	if err := s1.Append(context.Background(), "q", RoleUser, "persisted"); err != nil {
		t.Fatal(err)
	}
	if err := s1.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopening the same file must not lose data or fail the migration.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer s2.Close()

	msgs, err := s2.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "persisted" {
		t.Errorf("messages after reopen = %+v", msgs)
	}
}
