package retrieval

import (
	"sort"
	"strings"
)

// Fuse merges the two sub-retrieval result sets into one ranked sequence.
//
// A vector item that overlaps a graph item (same source, one quote contained
// in the other) is corroborated by an explicit fact: the pair collapses to a
// single item tagged GRAPH, scored max(vector, graph) plus bonus, carrying
// the longer of the two quotes.
//
// Ordering is descending by score; ties prefer GRAPH over VECTOR, then the
// longer quote, then source ascending, so rank is deterministic for equal
// inputs. The top n items are returned.
func Fuse(vector, graph []EvidenceItem, bonus float64, n int) []EvidenceItem {
	merged := make([]EvidenceItem, 0, len(vector)+len(graph))
	usedGraph := make([]bool, len(graph))

	for _, v := range vector {
		matched := false
		for gi, g := range graph {
			if usedGraph[gi] || !overlaps(v, g) {
				continue
			}
			item := g
			if v.Score > item.Score {
				item.Score = v.Score
			}
			item.Score += bonus
			item.Corroborated = true
			if len(v.Quote) > len(item.Quote) {
				item.Quote = v.Quote
			}
			merged = append(merged, item)
			usedGraph[gi] = true
			matched = true
			break
		}
		if !matched {
			merged = append(merged, v)
		}
	}
	for gi, g := range graph {
		if !usedGraph[gi] {
			merged = append(merged, g)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Origin != b.Origin {
			return a.Origin == OriginGraph
		}
		if len(a.Quote) != len(b.Quote) {
			return len(a.Quote) > len(b.Quote)
		}
		return a.Source < b.Source
	})

	if n > 0 && len(merged) > n {
		merged = merged[:n]
	}
	return merged
}

// overlaps reports whether two items describe the same span of text: same
// source document and one quote contained in the other.
func overlaps(a, b EvidenceItem) bool {
	if a.Source != b.Source || a.Quote == "" || b.Quote == "" {
		return false
	}
	return strings.Contains(a.Quote, b.Quote) || strings.Contains(b.Quote, a.Quote)
}
