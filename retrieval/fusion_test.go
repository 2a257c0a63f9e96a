package retrieval

import (
	"reflect"
	"testing"
)

func TestFuseGraphPriorityTieBreak(t *testing.T) {
	vector := []EvidenceItem{{Quote: "vector quote", Source: "a.pdf", Score: 2.0, Origin: OriginVector}}
	graph := []EvidenceItem{{Quote: "graph quote!", Source: "b.pdf", Score: 2.0, Origin: OriginGraph}}

	fused := Fuse(vector, graph, 0.25, 5)
	if len(fused) != 2 {
		t.Fatalf("expected 2 items, got %d", len(fused))
	}
	if fused[0].Origin != OriginGraph {
		t.Errorf("expected GRAPH first on score tie, got %s", fused[0].Origin)
	}
}

func TestFuseCorroborationMerge(t *testing.T) {
	vector := []EvidenceItem{{
		Quote:  "RTO is guaranteed at 1 hour for all production workloads.",
		Source: "proposal.pdf",
		Score:  0.8,
		Origin: OriginVector,
	}}
	graph := []EvidenceItem{{
		Quote:  "RTO is guaranteed at 1 hour",
		Source: "proposal.pdf",
		Score:  1.0,
		Origin: OriginGraph,
	}}

	fused := Fuse(vector, graph, 0.25, 5)
	if len(fused) != 1 {
		t.Fatalf("expected overlapping items to merge into 1, got %d", len(fused))
	}
	item := fused[0]
	if !item.Corroborated {
		t.Error("merged item should be marked corroborated")
	}
	if item.Origin != OriginGraph {
		t.Errorf("merged item origin = %s, want GRAPH", item.Origin)
	}
	if item.Score != 1.25 {
		t.Errorf("merged score = %f, want max(0.8, 1.0)+0.25 = 1.25", item.Score)
	}
	if item.Quote != vector[0].Quote {
		t.Errorf("merged item should carry the longer quote, got %q", item.Quote)
	}
}

func TestFuseNoMergeAcrossSources(t *testing.T) {
	vector := []EvidenceItem{{Quote: "RTO is guaranteed at 1 hour", Source: "a.pdf", Score: 0.8, Origin: OriginVector}}
	graph := []EvidenceItem{{Quote: "RTO is guaranteed at 1 hour", Source: "b.pdf", Score: 1.0, Origin: OriginGraph}}

	fused := Fuse(vector, graph, 0.25, 5)
	if len(fused) != 2 {
		t.Fatalf("items from different sources must not merge, got %d items", len(fused))
	}
	for _, item := range fused {
		if item.Corroborated {
			t.Errorf("no item should be corroborated: %+v", item)
		}
	}
}

func TestFuseTopN(t *testing.T) {
	var graph []EvidenceItem
	for i := 0; i < 10; i++ {
		graph = append(graph, EvidenceItem{
			Quote:  "quote",
			Source: "a.pdf",
			Score:  float64(i),
			Origin: OriginGraph,
		})
	}

	fused := Fuse(nil, graph, 0.25, 5)
	if len(fused) != 5 {
		t.Fatalf("expected top 5, got %d", len(fused))
	}
	if fused[0].Score != 9 {
		t.Errorf("expected highest score first, got %f", fused[0].Score)
	}
	for i := 1; i < len(fused); i++ {
		if fused[i].Score > fused[i-1].Score {
			t.Errorf("scores not descending at %d: %f > %f", i, fused[i].Score, fused[i-1].Score)
		}
	}
}

func TestFuseDeterministic(t *testing.T) {
	vector := []EvidenceItem{
		{Quote: "short", Source: "b.pdf", Score: 1.0, Origin: OriginVector},
		{Quote: "a much longer quote", Source: "a.pdf", Score: 1.0, Origin: OriginVector},
	}
	graph := []EvidenceItem{
		{Quote: "graph fact", Source: "c.pdf", Score: 1.0, Origin: OriginGraph},
	}

	first := Fuse(vector, graph, 0.25, 5)
	for i := 0; i < 10; i++ {
		if got := Fuse(vector, graph, 0.25, 5); !reflect.DeepEqual(got, first) {
			t.Fatalf("fusion not deterministic: %+v vs %+v", got, first)
		}
	}

	// GRAPH wins the three-way tie, then the longer vector quote.
	if first[0].Origin != OriginGraph {
		t.Errorf("expected GRAPH first, got %+v", first[0])
	}
	if first[1].Quote != "a much longer quote" {
		t.Errorf("expected longer quote second, got %+v", first[1])
	}
}

func TestFuseEmptyInputs(t *testing.T) {
	if got := Fuse(nil, nil, 0.25, 5); len(got) != 0 {
		t.Errorf("expected empty fusion, got %+v", got)
	}
}

func TestOverlaps(t *testing.T) {
	a := EvidenceItem{Quote: "RTO is guaranteed at 1 hour for all workloads", Source: "p.pdf"}
	b := EvidenceItem{Quote: "guaranteed at 1 hour", Source: "p.pdf"}
	c := EvidenceItem{Quote: "guaranteed at 1 hour", Source: "other.pdf"}

	if !overlaps(a, b) || !overlaps(b, a) {
		t.Error("containment in either direction should overlap")
	}
	if overlaps(a, c) {
		t.Error("different sources must not overlap")
	}
	if overlaps(EvidenceItem{Source: "p.pdf"}, b) {
		t.Error("empty quote must not overlap")
	}
}
