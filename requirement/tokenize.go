package requirement

import "strings"

// stopwords excluded from fallback keyword sets. Short function words only;
// domain abbreviations like "RTO" must survive tokenization.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "do": true, "does": true, "did": true,
	"can": true, "could": true, "will": true, "would": true, "shall": true,
	"should": true, "may": true, "might": true, "must": true, "have": true,
	"has": true, "had": true, "what": true, "which": true, "who": true,
	"whom": true, "when": true, "where": true, "why": true, "how": true,
	"it": true, "its": true, "this": true, "that": true, "these": true,
	"those": true, "there": true, "of": true, "for": true, "to": true,
	"in": true, "on": true, "at": true, "by": true, "with": true, "from": true,
	"and": true, "or": true, "not": true, "no": true, "your": true, "you": true,
	"we": true, "our": true, "any": true, "all": true, "if": true, "as": true,
	"support": true, "supported": true, "provide": true, "provided": true,
}

// Tokenize splits a question into lowercase keyword tokens, dropping
// stopwords and punctuation. Used for graph filtering and as the
// never-empty fallback when the model returns no keywords.
func Tokenize(question string) []string {
	fields := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !isWordRune(r)
	})

	seen := make(map[string]bool, len(fields))
	var out []string
	for i, f := range fields {
		f = strings.Trim(f, "-.")
		fields[i] = f
		if len(f) < 2 || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}

	// Degenerate questions ("Is it?") still need something for filtering.
	if len(out) == 0 {
		for _, f := range fields {
			if f != "" && !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '.':
		// Keep hyphenated terms (multi-region) and versions (9001.2).
		return true
	}
	return false
}

// normalizeQuestion collapses whitespace and trims a trailing question mark,
// producing the fallback subject.
func normalizeQuestion(q string) string {
	q = strings.Join(strings.Fields(q), " ")
	return strings.TrimRight(strings.TrimSpace(q), "?! .")
}
