// Package index provides vector index implementations of the rag.Index
// interface: an in-memory brute-force index with JSON snapshot persistence
// (the default), and a Qdrant-backed index for deployments whose corpus
// outgrows a single process.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// ErrCorruptSnapshot indicates a persisted snapshot could not be decoded.
// Callers that fall back to an empty index must do so explicitly — rehydration
// never silently discards a broken snapshot.
var ErrCorruptSnapshot = errors.New("index: corrupt snapshot")

// snapshotVersion is the on-disk format version written by Save.
const snapshotVersion = 1

// Memory is an in-memory, append-only vector index using brute-force cosine
// similarity. A batch Add is visible atomically to concurrent Search calls:
// readers observe either the whole batch or none of it. Linear scan is
// deliberate — for corpora of a few thousand segments it beats any index
// structure worth maintaining.
type Memory struct {
	mu sync.RWMutex
	// dimension is fixed by the first batch added; all later entries must match.
	dimension int
	// entries holds all indexed (embedding, segment) pairs in insertion order.
	entries []rag.Entry
	// norms caches the L2 norm of each entry's embedding, parallel to entries.
	norms []float64
}

// NewMemory constructs an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{}
}

// snapshot is the JSON document written to and read from disk.
type snapshot struct {
	Version   int         `json:"version"`
	Dimension int         `json:"dimension"`
	Entries   []rag.Entry `json:"entries"`
}

// Add appends all entries as one atomic batch. Every embedding must be
// non-empty and match the index dimension (fixed by the first batch).
// On error nothing is added.
func (m *Memory) Add(_ context.Context, entries []rag.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dim := m.dimension
	if dim == 0 {
		dim = len(entries[0].Embedding)
	}

	norms := make([]float64, len(entries))
	for i, e := range entries {
		if len(e.Embedding) == 0 {
			return fmt.Errorf("index: entry %d has an empty embedding", i)
		}
		if len(e.Embedding) != dim {
			return fmt.Errorf("index: entry %d has dimension %d, index has %d",
				i, len(e.Embedding), dim)
		}
		norms[i] = norm(e.Embedding)
	}

	m.dimension = dim
	m.entries = append(m.entries, entries...)
	m.norms = append(m.norms, norms...)
	return nil
}

// Search returns up to maxResults entries whose cosine similarity to query is
// at least minScore, sorted by descending score. Ties are broken by insertion
// order, earlier entries first.
func (m *Memory) Search(_ context.Context, query []float32, maxResults int, minScore float64) ([]rag.Match, error) {
	if maxResults <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 {
		return nil, nil
	}
	if len(query) != m.dimension {
		return nil, fmt.Errorf("index: query has dimension %d, index has %d",
			len(query), m.dimension)
	}

	qNorm := norm(query)
	if qNorm == 0 {
		return nil, nil
	}

	var matches []rag.Match
	for i, e := range m.entries {
		if m.norms[i] == 0 {
			continue
		}
		score := dot(e.Embedding, query) / (m.norms[i] * qNorm)
		if score < minScore {
			continue
		}
		matches = append(matches, rag.Match{Segment: e.Segment, Score: score})
	}

	// Stable sort keeps insertion order within equal scores.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches, nil
}

// Len returns the number of indexed entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Save writes the full index contents to path as a JSON snapshot, overwriting
// any existing file. The write goes through a temp file and rename so a crash
// mid-write never leaves a truncated snapshot behind.
func (m *Memory) Save(path string) error {
	m.mu.RLock()
	snap := snapshot{
		Version:   snapshotVersion,
		Dimension: m.dimension,
		Entries:   m.entries,
	}
	data, err := json.Marshal(snap)
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("index: encode snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("index: write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("index: replace snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot written by Save and reconstructs the index.
// Search results on the loaded index are identical to those of the index that
// produced the snapshot. A snapshot that fails to decode or violates the
// dimension invariant returns an error wrapping ErrCorruptSnapshot.
func Load(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("index: read snapshot %s: %w", path, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptSnapshot, path, err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", ErrCorruptSnapshot, path, snap.Version)
	}

	m := NewMemory()
	m.dimension = snap.Dimension
	m.entries = snap.Entries
	m.norms = make([]float64, len(snap.Entries))
	for i, e := range snap.Entries {
		if snap.Dimension == 0 || len(e.Embedding) != snap.Dimension {
			return nil, fmt.Errorf("%w: %s: entry %d has dimension %d, snapshot declares %d",
				ErrCorruptSnapshot, path, i, len(e.Embedding), snap.Dimension)
		}
		m.norms[i] = norm(e.Embedding)
	}
	return m, nil
}

// dot computes the dot product of a and b in float64.
func dot(a []float32, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// norm computes the L2 norm of v in float64.
func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
