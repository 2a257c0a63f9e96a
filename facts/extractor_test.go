package facts

import (
	"context"
	"testing"

	"github.com/provado/provado/llm"
	"github.com/provado/provado/store"
)

// scriptedChat returns canned chat responses in order.
type scriptedChat struct {
	responses []string
	calls     int
}

func (s *scriptedChat) Chat(_ context.Context, _ llm.ChatRequest) (*llm.ChatResponse, error) {
	idx := s.calls
	s.calls++
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return &llm.ChatResponse{Content: s.responses[idx]}, nil
}

func (s *scriptedChat) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0, 0, 0, 1}
	}
	return out, nil
}

const slaChunk = "RTO is guaranteed at 1 hour. Failover is supported by our multi-region deployment."

func TestExtractChunk(t *testing.T) {
	chat := &scriptedChat{responses: []string{
		`{"facts": [
			{"subject": "RTO", "relation": "HAS_VALUE", "object": "1 hour", "quote": "RTO is guaranteed at 1 hour."},
			{"subject": "Failover", "relation": "SUPPORTED_BY", "object": "multi-region deployment", "quote": "Failover is supported by our multi-region deployment."}
		]}`,
	}}

	e := NewExtractor(chat)
	got, err := e.ExtractChunk(context.Background(), store.Chunk{ID: 1, Content: slaChunk})
	if err != nil {
		t.Fatalf("ExtractChunk: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(got))
	}
	if got[0].Subject != "RTO" || got[0].Relation != RelationHasValue || got[0].Object != "1 hour" {
		t.Errorf("unexpected first fact: %+v", got[0])
	}
	if got[0].Quote != "RTO is guaranteed at 1 hour." {
		t.Errorf("unexpected quote: %q", got[0].Quote)
	}
}

func TestExtractChunkDropsNonVerbatimQuote(t *testing.T) {
	// The model paraphrased the quote; the fact must be dropped, never repaired.
	chat := &scriptedChat{responses: []string{
		`{"facts": [
			{"subject": "RTO", "relation": "HAS_VALUE", "object": "1 hour", "quote": "The recovery time objective is one hour."},
			{"subject": "Failover", "relation": "SUPPORTED_BY", "object": "multi-region deployment", "quote": "Failover is supported by our multi-region deployment."}
		]}`,
	}}

	e := NewExtractor(chat)
	got, err := e.ExtractChunk(context.Background(), store.Chunk{ID: 1, Content: slaChunk})
	if err != nil {
		t.Fatalf("ExtractChunk: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 fact after dropping paraphrase, got %d", len(got))
	}
	if got[0].Subject != "Failover" {
		t.Errorf("kept wrong fact: %+v", got[0])
	}
}

func TestExtractChunkDropsUnknownRelation(t *testing.T) {
	chat := &scriptedChat{responses: []string{
		`{"facts": [
			{"subject": "RTO", "relation": "IMPLIES", "object": "1 hour", "quote": "RTO is guaranteed at 1 hour."}
		]}`,
	}}

	e := NewExtractor(chat)
	got, err := e.ExtractChunk(context.Background(), store.Chunk{ID: 1, Content: slaChunk})
	if err != nil {
		t.Fatalf("ExtractChunk: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected unknown relation to be dropped, got %+v", got)
	}
}

func TestExtractChunkDropsIncompleteFacts(t *testing.T) {
	chat := &scriptedChat{responses: []string{
		`{"facts": [
			{"subject": "", "relation": "HAS_VALUE", "object": "1 hour", "quote": "RTO is guaranteed at 1 hour."},
			{"subject": "RTO", "relation": "HAS_VALUE", "object": "1 hour", "quote": ""}
		]}`,
	}}

	e := NewExtractor(chat)
	got, err := e.ExtractChunk(context.Background(), store.Chunk{ID: 1, Content: slaChunk})
	if err != nil {
		t.Fatalf("ExtractChunk: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected incomplete facts to be dropped, got %+v", got)
	}
}

func TestExtractChunkRetriesUnparseableOutput(t *testing.T) {
	chat := &scriptedChat{responses: []string{
		"Sure, here are the facts I found in the text.",
		`{"facts": [{"subject": "RTO", "relation": "HAS_VALUE", "object": "1 hour", "quote": "RTO is guaranteed at 1 hour."}]}`,
	}}

	e := NewExtractor(chat)
	got, err := e.ExtractChunk(context.Background(), store.Chunk{ID: 1, Content: slaChunk})
	if err != nil {
		t.Fatalf("ExtractChunk: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 fact after retry, got %d", len(got))
	}
	if chat.calls != 2 {
		t.Errorf("expected 2 model calls, got %d", chat.calls)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"RTO", "rto"},
		{"  1  Hour.  ", "1 hour"},
		{"Multi-Region Deployment", "multi-region deployment"},
		{"\"99.9%\"", "99.9%"},
		{"uptime,", "uptime"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKnownRelation(t *testing.T) {
	for _, r := range []string{RelationHasMetric, RelationHasValue, RelationSupportedBy} {
		if !KnownRelation(r) {
			t.Errorf("KnownRelation(%q) = false, want true", r)
		}
	}
	for _, r := range []string{"IMPLIES", "has_value", ""} {
		if KnownRelation(r) {
			t.Errorf("KnownRelation(%q) = true, want false", r)
		}
	}
}
