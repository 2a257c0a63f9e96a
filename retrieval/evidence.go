// Package retrieval fuses vector similarity and fact-store matches into a
// ranked evidence set for a structured requirement.
package retrieval

// Origin identifies which sub-retrieval produced an evidence item.
type Origin string

const (
	OriginVector Origin = "VECTOR"
	OriginGraph  Origin = "GRAPH"
)

// EvidenceItem is one ranked piece of supporting text. Request-scoped;
// never persisted.
type EvidenceItem struct {
	Quote        string  `json:"quote"`
	Source       string  `json:"source"`
	Score        float64 `json:"relevance_score"`
	Origin       Origin  `json:"origin"`
	Corroborated bool    `json:"corroborated,omitempty"`
}
