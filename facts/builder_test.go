//go:build cgo

package facts

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/provado/provado/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), 4)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

const builderChunk = "RTO is guaranteed at 1 hour for all production workloads. " +
	"Failover is supported by our multi-region deployment across three availability zones."

func builderResponse() string {
	return `{"facts": [
		{"subject": "RTO", "relation": "HAS_VALUE", "object": "1 hour", "quote": "RTO is guaranteed at 1 hour"},
		{"subject": "Failover", "relation": "SUPPORTED_BY", "object": "multi-region deployment", "quote": "Failover is supported by our multi-region deployment"}
	]}`
}

func TestBuildStoresFactsWithProvenance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chat := &scriptedChat{responses: []string{builderResponse()}}
	b, err := NewBuilder(s, NewExtractor(chat), 2)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	defer b.Close()

	chunks := []store.Chunk{
		{ID: 1, Content: builderChunk, Heading: "Service Levels"},
	}
	if err := b.Build(ctx, "proposal.pdf", chunks); err != nil {
		t.Fatalf("Build: %v", err)
	}

	got, err := s.SearchFacts(ctx, []string{"rto"}, 10)
	if err != nil {
		t.Fatalf("SearchFacts: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 fact for 'rto', got %d", len(got))
	}
	f := got[0]
	if f.SubjectNorm != "rto" || f.Relation != RelationHasValue || f.ObjectNorm != "1 hour" {
		t.Errorf("unexpected fact: %+v", f)
	}
	if len(f.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(f.Sources))
	}
	src := f.Sources[0]
	if src.Document != "proposal.pdf" || src.Section != "Service Levels" {
		t.Errorf("unexpected provenance: %+v", src)
	}
	if src.Quote != "RTO is guaranteed at 1 hour" {
		t.Errorf("unexpected quote: %q", src.Quote)
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chunks := []store.Chunk{{ID: 1, Content: builderChunk}}

	for i := 0; i < 2; i++ {
		chat := &scriptedChat{responses: []string{builderResponse()}}
		b, err := NewBuilder(s, NewExtractor(chat), 1)
		if err != nil {
			t.Fatalf("NewBuilder: %v", err)
		}
		if err := b.Build(ctx, "proposal.pdf", chunks); err != nil {
			t.Fatalf("Build pass %d: %v", i+1, err)
		}
		b.Close()
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Facts != 2 {
		t.Errorf("expected 2 facts after re-ingest, got %d", stats.Facts)
	}
	if stats.Sources != 2 {
		t.Errorf("expected 2 provenance rows after re-ingest, got %d", stats.Sources)
	}
}

func TestBuildSkipsTrivialChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chat := &scriptedChat{responses: []string{builderResponse()}}
	b, err := NewBuilder(s, NewExtractor(chat), 1)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	defer b.Close()

	// A heading-only chunk is below the token threshold; no model call expected.
	if err := b.Build(ctx, "proposal.pdf", []store.Chunk{{ID: 1, Content: "3. Service Levels"}}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if chat.calls != 0 {
		t.Errorf("expected no model calls for trivial chunk, got %d", chat.calls)
	}
}

func TestSectionLabel(t *testing.T) {
	tests := []struct {
		chunk store.Chunk
		want  string
	}{
		{store.Chunk{Heading: "SLA"}, "SLA"},
		{store.Chunk{PageNumber: 3}, "p.3"},
		{store.Chunk{PositionInDoc: 7}, "chunk 7"},
	}
	for _, tt := range tests {
		if got := sectionLabel(tt.chunk); got != tt.want {
			t.Errorf("sectionLabel(%+v) = %q, want %q", tt.chunk, got, tt.want)
		}
	}
}
