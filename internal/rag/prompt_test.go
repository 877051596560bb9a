package rag

import (
	"strings"
	"testing"
)

func TestPromptBuild_SubstitutesBothSlots(t *testing.T) {
	t.Parallel()

	tpl := NewPromptTemplate("INFO:{{information}} Q:{{question}}")
	got := tpl.Build("why?", []Segment{{Text: "because"}})

	if got != "INFO:because Q:why?" {
		t.Errorf("Build() = %q", got)
	}
}

func TestPromptBuild_EmptyTemplateUsesDefault(t *testing.T) {
	t.Parallel()

	tpl := NewPromptTemplate("")
	got := tpl.Build("how do refunds work?", []Segment{{Text: "Refunds take 5 days."}})

	if !strings.Contains(got, "Refunds take 5 days.") {
		t.Error("information slot not filled")
	}
	if !strings.Contains(got, "Query: how do refunds work?") {
		t.Error("question slot not filled")
	}
	if strings.Contains(got, "{{") {
		t.Errorf("unsubstituted slot remains in %q", got)
	}
}

func TestPromptBuild_NoSegments(t *testing.T) {
	t.Parallel()

	// With an empty index the prompt must still be well-formed: the
	// information slot becomes an empty string, nothing else changes.
	tpl := NewPromptTemplate("")
	got := tpl.Build("anything?", nil)

	if strings.Contains(got, "{{information}}") || strings.Contains(got, "{{question}}") {
		t.Errorf("unsubstituted slot remains in %q", got)
	}
	if !strings.Contains(got, "Query: anything?") {
		t.Error("question slot not filled")
	}
}

func TestPromptBuild_DeduplicatesSegments(t *testing.T) {
	t.Parallel()

	tpl := NewPromptTemplate("{{information}}")
	segments := []Segment{
		{Text: "alpha"},
		{Text: "beta"},
		{Text: "alpha"}, // duplicate, dropped
		{Text: "gamma"},
	}

	got := tpl.Build("q", segments)
	want := "alpha\n\nbeta\n\ngamma"
	if got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestPromptBuild_SinglePassSubstitution(t *testing.T) {
	t.Parallel()

	// Slot markers inside the question or segment text must survive:
	// substitution happens in one pass over the template only.
	tpl := NewPromptTemplate("{{information}}|{{question}}")
	got := tpl.Build("what does {{information}} mean?", []Segment{{Text: "see {{question}}"}})

	want := "see {{question}}|what does {{information}} mean?"
	if got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}
