package index

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/54b3r/ragchat-go/internal/rag"
)

func entry(id string, v ...float32) rag.Entry {
	return rag.Entry{
		Embedding: v,
		Segment:   rag.Segment{DocumentID: id, Text: id},
	}
}

func mustAdd(t *testing.T, m *Memory, entries ...rag.Entry) {
	t.Helper()
	if err := m.Add(context.Background(), entries); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
}

func matchIDs(matches []rag.Match) []string {
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.Segment.DocumentID)
	}
	return ids
}

func TestSearch_OrdersByDescendingScore(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	mustAdd(t, m,
		entry("low", 0.5, 0.5),  // cosine vs (1,0): ~0.707
		entry("high", 1, 0),     // cosine 1.0
		entry("mid", 0.9, 0.1),  // ~0.994
		entry("none", -1, 0),    // cosine -1
	)

	got, err := m.Search(context.Background(), []float32{1, 0}, 10, -1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	want := []string{"high", "mid", "low", "none"}
	if !reflect.DeepEqual(matchIDs(got), want) {
		t.Errorf("Search() order = %v, want %v", matchIDs(got), want)
	}
}

func TestSearch_MinScoreIsInclusive(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	mustAdd(t, m,
		entry("exact", 1, 0),   // score 1.0
		entry("edge", 0.8, 0.6), // score 0.8 against (1,0): unit-norm vector
		entry("below", 0.6, 0.8),
	)

	got, err := m.Search(context.Background(), []float32{1, 0}, 10, 0.8)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	want := []string{"exact", "edge"}
	if !reflect.DeepEqual(matchIDs(got), want) {
		t.Errorf("Search() = %v, want %v (threshold is inclusive)", matchIDs(got), want)
	}
}

func TestSearch_MaxResultsCapsOutput(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	mustAdd(t, m, entry("a", 1, 0), entry("b", 0.9, 0.1), entry("c", 0.8, 0.2))

	got, err := m.Search(context.Background(), []float32{1, 0}, 2, -1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2", len(got))
	}
	if got[0].Segment.DocumentID != "a" || got[1].Segment.DocumentID != "b" {
		t.Errorf("Search() kept %v, want the two best", matchIDs(got))
	}
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	// Same direction, different magnitude: identical cosine score.
	mustAdd(t, m, entry("first", 1, 0), entry("second", 2, 0), entry("third", 3, 0))

	got, err := m.Search(context.Background(), []float32{1, 0}, 10, -1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	want := []string{"first", "second", "third"}
	if !reflect.DeepEqual(matchIDs(got), want) {
		t.Errorf("tie order = %v, want insertion order %v", matchIDs(got), want)
	}
}

func TestSearch_ScoreIsRawCosine(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	mustAdd(t, m, entry("opposite", -1, 0))

	got, err := m.Search(context.Background(), []float32{1, 0}, 10, -1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d matches, want 1", len(got))
	}
	if math.Abs(got[0].Score-(-1)) > 1e-9 {
		t.Errorf("score = %v, want -1 (raw cosine, not remapped)", got[0].Score)
	}
}

func TestSearch_ZeroQueryVector(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	mustAdd(t, m, entry("a", 1, 0))

	got, err := m.Search(context.Background(), []float32{0, 0}, 10, -1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("zero-norm query returned %d matches, want 0", len(got))
	}
}

func TestSearch_DimensionMismatch(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	mustAdd(t, m, entry("a", 1, 0))

	if _, err := m.Search(context.Background(), []float32{1, 0, 0}, 10, -1); err == nil {
		t.Error("expected error for query dimension mismatch")
	}
}

func TestAdd_RejectsMismatchedBatchAtomically(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	mustAdd(t, m, entry("a", 1, 0))

	err := m.Add(context.Background(), []rag.Entry{
		entry("b", 0, 1),
		entry("bad", 1, 0, 0), // wrong dimension
	})
	if err == nil {
		t.Fatal("expected error for mixed-dimension batch")
	}
	// The whole batch must be rejected, not applied up to the bad entry.
	if m.Len() != 1 {
		t.Errorf("index has %d entries after rejected batch, want 1", m.Len())
	}
}

func TestAdd_RejectsEmptyEmbedding(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	if err := m.Add(context.Background(), []rag.Entry{{Segment: rag.Segment{DocumentID: "x"}}}); err == nil {
		t.Error("expected error for empty embedding")
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	mustAdd(t, m,
		entry("a", 1, 0),
		entry("b", 0.9, 0.1),
		entry("c", 0, 1),
	)

	path := filepath.Join(t.TempDir(), "index.json")
	if err := m.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Len() != m.Len() {
		t.Fatalf("loaded %d entries, want %d", loaded.Len(), m.Len())
	}

	// Rehydrated index must answer identically to the original.
	query := []float32{1, 0}
	want, err := m.Search(context.Background(), query, 10, -1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	got, err := loaded.Search(context.Background(), query, 10, -1)
	if err != nil {
		t.Fatalf("Search() on loaded index error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("loaded index results differ:\ngot  %v\nwant %v", got, want)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want os.ErrNotExist", err)
	}
}

func TestLoad_CorruptSnapshot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"version": 1, "dim`},
		{"unsupported version", `{"version": 99, "dimension": 2, "entries": []}`},
		{"entry dimension mismatch", `{"version": 1, "dimension": 2, "entries": [{"embedding": [1], "segment": {"document_id": "a", "text": "a"}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "index.json")
			if err := os.WriteFile(path, []byte(tt.data), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); !errors.Is(err, ErrCorruptSnapshot) {
				t.Errorf("Load() error = %v, want ErrCorruptSnapshot", err)
			}
		})
	}
}

func TestSave_Overwrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "index.json")

	m := NewMemory()
	mustAdd(t, m, entry("a", 1, 0))
	if err := m.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	mustAdd(t, m, entry("b", 0, 1))
	if err := m.Save(path); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Len() != 2 {
		t.Errorf("loaded %d entries, want 2", loaded.Len())
	}
}
