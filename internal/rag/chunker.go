package rag

import "strings"

// Default chunking parameters, applied when the corresponding Splitter
// argument is zero or out of range.
const (
	// DefaultChunkSize is the maximum number of characters per segment.
	DefaultChunkSize = 200

	// DefaultChunkOverlap is the number of characters shared between
	// consecutive segments.
	DefaultChunkOverlap = 0
)

// Splitter cuts a document's text into segments of bounded length with a
// configurable overlap between consecutive segments. Splitting is
// deterministic: the same document and configuration always produce the
// same segments.
type Splitter struct {
	// size is the maximum segment length in characters.
	size int
	// overlap is the number of characters shared between consecutive segments.
	overlap int
}

// NewSplitter constructs a Splitter. size defaults to DefaultChunkSize when
// non-positive; overlap is clamped to [0, size).
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &Splitter{size: size, overlap: overlap}
}

// Split cuts the document's text into segments. A document shorter than the
// configured size yields exactly one segment holding the whole text; an empty
// document yields no segments. Each segment carries its own copy of the
// document's metadata.
func (s *Splitter) Split(doc Document) []Segment {
	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return nil
	}

	// Windows are measured in runes so a multibyte character never straddles
	// a segment boundary.
	runes := []rune(text)
	var segments []Segment
	step := s.size - s.overlap
	for start := 0; start < len(runes); start += step {
		end := start + s.size
		if end > len(runes) {
			end = len(runes)
		}
		segments = append(segments, Segment{
			DocumentID: doc.ID,
			Text:       string(runes[start:end]),
			Metadata:   copyMetadata(doc.Metadata),
		})
		if end == len(runes) {
			break
		}
	}

	return segments
}

// copyMetadata returns an independent copy of m, or nil if m is empty.
func copyMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
