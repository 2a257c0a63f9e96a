package retrieval

import (
	"strings"
	"testing"
)

const drillChunk = "Backups are replicated nightly to a secondary region. RTO is guaranteed at 1 hour. All recovery procedures are rehearsed during quarterly drills."

func TestExtractSnippetPicksMatchingSentence(t *testing.T) {
	got := extractSnippet(drillChunk, []string{"rto"})
	if got != "RTO is guaranteed at 1 hour." {
		t.Errorf("snippet = %q", got)
	}
}

func TestExtractSnippetExtendsToAdjacent(t *testing.T) {
	got := extractSnippet(drillChunk, []string{"rto", "recovery"})
	want := "RTO is guaranteed at 1 hour. All recovery procedures are rehearsed during quarterly drills."
	if got != want {
		t.Errorf("snippet = %q, want %q", got, want)
	}
}

func TestExtractSnippetIsVerbatimSubstring(t *testing.T) {
	content := "Uptime of 99.95% is guaranteed monthly.\nCredits apply below that threshold.\nSupport responds within 4 hours."
	got := extractSnippet(content, []string{"uptime", "credits"})
	if got == "" {
		t.Fatal("expected a snippet")
	}
	if !strings.Contains(content, got) {
		t.Errorf("snippet %q is not a verbatim substring of content", got)
	}
}

func TestExtractSnippetNoMatch(t *testing.T) {
	if got := extractSnippet(drillChunk, []string{"quantum"}); got != "" {
		t.Errorf("expected empty snippet, got %q", got)
	}
	if got := extractSnippet(drillChunk, nil); got != "" {
		t.Errorf("expected empty snippet for no keywords, got %q", got)
	}
	// Keywords shorter than 3 chars never match.
	if got := extractSnippet(drillChunk, []string{"at"}); got != "" {
		t.Errorf("expected empty snippet for short keyword, got %q", got)
	}
}

func TestExtractSnippetRespectsLengthCap(t *testing.T) {
	// Both sentences match, but the combined span exceeds the cap, so only
	// the best sentence is returned.
	long := "Uptime target is defined here. " + strings.Repeat("word ", 60) + "uptime credits apply."
	got := extractSnippet(long, []string{"uptime"})
	if got != "Uptime target is defined here." {
		t.Errorf("snippet = %q", got)
	}
}

func TestSentenceSpans(t *testing.T) {
	spans := sentenceSpans("First. Second? Third")
	if len(spans) != 3 {
		t.Fatalf("expected 3 sentences, got %d: %+v", len(spans), spans)
	}
	if spans[0].text != "First." || spans[1].text != "Second?" || spans[2].text != "Third" {
		t.Errorf("unexpected sentences: %+v", spans)
	}
	// Decimal numbers do not end a sentence.
	spans = sentenceSpans("Uptime is 99.95% monthly.")
	if len(spans) != 1 {
		t.Errorf("decimal split the sentence: %+v", spans)
	}
}
