package facts

import "strings"

// Relation kinds a fact may carry. The extraction prompt is constrained to
// this set; anything else coming back from the model is dropped.
const (
	RelationHasMetric   = "HAS_METRIC"
	RelationHasValue    = "HAS_VALUE"
	RelationSupportedBy = "SUPPORTED_BY"
)

// KnownRelation reports whether r is one of the allowed relation kinds.
func KnownRelation(r string) bool {
	switch r {
	case RelationHasMetric, RelationHasValue, RelationSupportedBy:
		return true
	}
	return false
}

// Triple is a subject-relation-object statement extracted from a document.
type Triple struct {
	Subject  string `json:"subject"`
	Relation string `json:"relation"`
	Object   string `json:"object"`
}

// Provenance ties a triple back to the verbatim text it was extracted from.
// Quote is always an exact substring of a stored chunk.
type Provenance struct {
	Document string `json:"document"`
	Section  string `json:"section"`
	Quote    string `json:"quote"`
}

// ExtractedFact is a triple plus the quote that supports it, as returned by
// the extraction model for a single chunk.
type ExtractedFact struct {
	Triple
	Quote string `json:"quote"`
}

// Normalize produces the canonical form used for triple identity: lowercase,
// whitespace collapsed, leading and trailing punctuation trimmed. Two triples
// that normalize to the same key are the same fact.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, ".,;:!?\"'()[]")
}
