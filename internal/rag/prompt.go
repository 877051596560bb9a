package rag

import "strings"

// DefaultPromptTemplate is the prompt used when no template is configured.
// It instructs the model to answer strictly from the retrieved context.
const DefaultPromptTemplate = `Context information is below.:
------------------
{{information}}
------------------
Given the context information and not prior knowledge, answer the query.
Query: {{question}}
Answer:`

// PromptTemplate assembles the final prompt from retrieved segments and the
// user's question. The template has two named slots: {{information}} receives
// the joined, de-duplicated segment texts and {{question}} the verbatim
// question. Both slots are substituted in a single pass, so slot markers
// appearing inside the question or segment text are left untouched.
type PromptTemplate struct {
	text string
}

// NewPromptTemplate constructs a PromptTemplate. An empty template falls back
// to DefaultPromptTemplate.
func NewPromptTemplate(text string) PromptTemplate {
	if text == "" {
		text = DefaultPromptTemplate
	}
	return PromptTemplate{text: text}
}

// Build renders the prompt for the given question and retrieved segments.
// Duplicate segment texts are collapsed to their first occurrence and the
// remaining texts are joined with a blank line. With no segments the
// {{information}} slot is an empty string; the prompt is still well-formed.
func (t PromptTemplate) Build(question string, segments []Segment) string {
	information := joinDistinct(segments)
	return strings.NewReplacer(
		"{{information}}", information,
		"{{question}}", question,
	).Replace(t.text)
}

// joinDistinct joins segment texts with blank lines, keeping only the first
// occurrence of each exact text.
func joinDistinct(segments []Segment) string {
	seen := make(map[string]bool, len(segments))
	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seen[seg.Text] {
			continue
		}
		seen[seg.Text] = true
		texts = append(texts, seg.Text)
	}
	return strings.Join(texts, "\n\n")
}
