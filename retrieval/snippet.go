package retrieval

import "strings"

// snippetMaxLen is the approximate maximum character length for a snippet.
const snippetMaxLen = 300

// extractSnippet returns the 1-2 sentences of content most relevant to the
// keywords. The snippet is always a verbatim substring of content, so it can
// stand as quotable evidence on its own. Returns empty string when no
// sentence matches any keyword.
func extractSnippet(content string, keywords []string) string {
	if len(keywords) == 0 || content == "" {
		return ""
	}

	spans := sentenceSpans(content)
	if len(spans) == 0 {
		return ""
	}

	scores := make([]int, len(spans))
	bestIdx := 0
	for i, sp := range spans {
		scores[i] = sentenceScore(sp.text, keywords)
		if scores[i] > scores[bestIdx] {
			bestIdx = i
		}
	}
	if scores[bestIdx] == 0 {
		return ""
	}

	start, end := spans[bestIdx].start, spans[bestIdx].end

	// Extend with the better-scoring adjacent sentence if the combined span
	// still fits. Slicing the original content keeps the snippet verbatim.
	adjIdx := -1
	adjScore := 0
	for _, delta := range []int{1, -1} {
		adj := bestIdx + delta
		if adj >= 0 && adj < len(spans) && scores[adj] > adjScore {
			adjScore = scores[adj]
			adjIdx = adj
		}
	}
	if adjIdx >= 0 && adjScore > 0 {
		lo, hi := start, end
		if spans[adjIdx].start < lo {
			lo = spans[adjIdx].start
		}
		if spans[adjIdx].end > hi {
			hi = spans[adjIdx].end
		}
		if hi-lo <= snippetMaxLen {
			start, end = lo, hi
		}
	}

	return content[start:end]
}

// sentenceScore counts distinct keywords (3+ chars) appearing in the sentence.
func sentenceScore(sentence string, keywords []string) int {
	lower := strings.ToLower(sentence)
	n := 0
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if len(kw) < 3 {
			continue
		}
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

type sentenceSpan struct {
	text  string
	start int
	end   int
}

// sentenceSpans splits content into sentences at period/question/exclamation
// boundaries followed by whitespace, recording byte offsets so callers can
// slice the original text.
func sentenceSpans(content string) []sentenceSpan {
	var spans []sentenceSpan
	start := -1

	for i := 0; i < len(content); i++ {
		c := content[i]
		if start < 0 {
			if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
				continue
			}
			start = i
		}
		if c == '.' || c == '?' || c == '!' {
			if i+1 >= len(content) || isSpaceByte(content[i+1]) {
				spans = append(spans, sentenceSpan{content[start : i+1], start, i + 1})
				start = -1
			}
		}
	}
	if start >= 0 {
		text := strings.TrimRight(content[start:], " \n\t\r")
		if text != "" {
			spans = append(spans, sentenceSpan{text, start, start + len(text)})
		}
	}
	return spans
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}
