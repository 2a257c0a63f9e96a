package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/provado/provado/parser"
)

func TestChunkShortSection(t *testing.T) {
	c := New(Config{MaxTokens: 100, Overlap: 10})
	sections := []parser.Section{
		{Heading: "SLA", Content: "RTO is guaranteed at 1 hour.", PageNumber: 3},
	}

	chunks := c.Chunk(sections)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	ch := chunks[0]
	if ch.Content != "RTO is guaranteed at 1 hour." {
		t.Errorf("content = %q", ch.Content)
	}
	if ch.Heading != "SLA" || ch.PageNumber != 3 || ch.PositionInDoc != 0 {
		t.Errorf("unexpected chunk metadata: %+v", ch)
	}
	if ch.TokenCount == 0 {
		t.Error("expected non-zero token count")
	}
}

func TestChunkSplitsLongContent(t *testing.T) {
	var paras []string
	for i := 0; i < 20; i++ {
		paras = append(paras, fmt.Sprintf(
			"Paragraph %d covers backup retention policies and disaster recovery procedures in detail.", i))
	}
	sections := []parser.Section{
		{Heading: "Operations", Content: strings.Join(paras, "\n\n")},
	}

	c := New(Config{MaxTokens: 50, Overlap: 10})
	chunks := c.Chunk(sections)

	if len(chunks) < 2 {
		t.Fatalf("expected content to split into multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.TokenCount > 50+10 {
			t.Errorf("chunk %d exceeds budget: %d tokens", i, ch.TokenCount)
		}
		if ch.Heading != "Operations" {
			t.Errorf("chunk %d lost heading: %q", i, ch.Heading)
		}
		if ch.PositionInDoc != i {
			t.Errorf("chunk %d has position %d", i, ch.PositionInDoc)
		}
	}
}

func TestChunkOverlap(t *testing.T) {
	var paras []string
	for i := 0; i < 10; i++ {
		paras = append(paras, fmt.Sprintf(
			"Section %d describes the failover mechanism and its recovery guarantees.", i))
	}
	sections := []parser.Section{{Content: strings.Join(paras, "\n\n")}}

	c := New(Config{MaxTokens: 30, Overlap: 8})
	chunks := c.Chunk(sections)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	// Each chunk after the first starts with trailing words of its predecessor.
	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1].Content)
		tail := prevWords[len(prevWords)-1]
		if !strings.Contains(chunks[i].Content, tail) {
			t.Errorf("chunk %d missing overlap from predecessor (want %q in %q)",
				i, tail, chunks[i].Content)
		}
	}
}

func TestChunkRecursesIntoChildren(t *testing.T) {
	sections := []parser.Section{
		{
			Heading: "3. Service Levels",
			Content: "This section defines the service level commitments.",
			Children: []parser.Section{
				{Heading: "3.1 Availability", Content: "Uptime of 99.95% is guaranteed monthly."},
				{Heading: "3.2 Recovery", Content: "RTO is guaranteed at 1 hour."},
			},
		},
	}

	c := New(Config{})
	chunks := c.Chunk(sections)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[1].Heading != "3.1 Availability" || chunks[2].Heading != "3.2 Recovery" {
		t.Errorf("child headings not preserved: %q, %q", chunks[1].Heading, chunks[2].Heading)
	}
	for i, ch := range chunks {
		if ch.PositionInDoc != i {
			t.Errorf("chunk %d has position %d", i, ch.PositionInDoc)
		}
	}
}

func TestChunkSkipsEmptySections(t *testing.T) {
	sections := []parser.Section{
		{Heading: "Empty"},
		{Heading: "Body", Content: "Some actual text."},
	}

	chunks := New(Config{}).Chunk(sections)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Heading != "Body" {
		t.Errorf("unexpected chunk: %+v", chunks[0])
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("RTO is 1 hour. RPO is 15 minutes. Is that enough?")
	want := []string{"RTO is 1 hour.", "RPO is 15 minutes.", "Is that enough?"}
	if len(got) != len(want) {
		t.Fatalf("got %d sentences, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d = %q, want %q", i, got[i], want[i])
		}
	}
}
