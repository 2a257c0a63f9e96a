package facts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/provado/provado/llm"
	"github.com/provado/provado/store"
)

// factExtractionPrompt asks the model for subject-relation-object triples,
// each backed by a verbatim quote. The relation vocabulary is fixed and the
// quote requirement is spelled out because everything downstream depends on
// quotes being exact substrings of the chunk.
const factExtractionPrompt = `You are a fact extraction engine for RFP and vendor proposal documents.
Given the following text chunk, extract factual statements as triples.

RELATION TYPES (use exactly these values):
- HAS_METRIC   : subject declares a measurable property (e.g. "RTO", "uptime", "latency")
- HAS_VALUE    : subject has a concrete value or guarantee (e.g. "1 hour", "99.9%%")
- SUPPORTED_BY : subject is backed or enabled by a named capability, product, or standard

Return a JSON object with exactly one key:
  "facts" : array of {"subject": string, "relation": string, "object": string, "quote": string}

Rules:
- "quote" MUST be copied verbatim from the text, character for character. Never paraphrase.
- Only include facts clearly stated in the text. Never infer or combine.
- If there are none, return an empty array.
- Do NOT include any text outside the JSON object.

EXAMPLES:

Input: "RTO is guaranteed at 1 hour. Failover is supported by our multi-region deployment."
Output:
{"facts": [{"subject": "RTO", "relation": "HAS_VALUE", "object": "1 hour", "quote": "RTO is guaranteed at 1 hour."}, {"subject": "Failover", "relation": "SUPPORTED_BY", "object": "multi-region deployment", "quote": "Failover is supported by our multi-region deployment."}]}

Input: "The platform provides 99.95%% monthly uptime, measured per the SLA in Appendix C."
Output:
{"facts": [{"subject": "platform", "relation": "HAS_METRIC", "object": "monthly uptime", "quote": "The platform provides 99.95%% monthly uptime"}, {"subject": "monthly uptime", "relation": "HAS_VALUE", "object": "99.95%%", "quote": "The platform provides 99.95%% monthly uptime"}]}

TEXT:
%s`

// factResult is the JSON shape returned by the extraction call.
type factResult struct {
	Facts []ExtractedFact `json:"facts"`
}

// Extractor turns chunks into provenance-backed triples via the chat model.
type Extractor struct {
	chat llm.Provider
}

// NewExtractor creates an extractor over the given chat provider.
func NewExtractor(chat llm.Provider) *Extractor {
	return &Extractor{chat: chat}
}

// ExtractChunk asks the model for triples in the chunk and filters out
// anything that fails the provenance contract. A fact whose quote is not a
// verbatim substring of the chunk, or whose relation is outside the allowed
// set, is dropped and logged as a gap rather than repaired.
func (e *Extractor) ExtractChunk(ctx context.Context, chunk store.Chunk) ([]ExtractedFact, error) {
	prompt := fmt.Sprintf(factExtractionPrompt, chunk.Content)

	result, err := llm.StructuredCall[factResult](ctx, e.chat, llm.StructuredRequest{
		Prompt:      prompt,
		Temperature: 0.0,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("fact extraction: %w", err)
	}

	kept := make([]ExtractedFact, 0, len(result.Facts))
	for _, f := range result.Facts {
		f.Subject = strings.TrimSpace(f.Subject)
		f.Object = strings.TrimSpace(f.Object)
		f.Relation = strings.ToUpper(strings.TrimSpace(f.Relation))
		f.Quote = strings.TrimSpace(f.Quote)

		if f.Subject == "" || f.Object == "" || f.Quote == "" {
			slog.Warn("facts: dropping incomplete fact", "chunk_id", chunk.ID, "fact", f.Triple)
			continue
		}
		if !KnownRelation(f.Relation) {
			slog.Warn("facts: dropping fact with unknown relation",
				"chunk_id", chunk.ID, "relation", f.Relation, "subject", f.Subject)
			continue
		}
		if !strings.Contains(chunk.Content, f.Quote) {
			slog.Warn("facts: dropping fact with non-verbatim quote",
				"chunk_id", chunk.ID, "subject", f.Subject, "quote", f.Quote)
			continue
		}
		kept = append(kept, f)
	}

	return kept, nil
}
