// Package decision maps a structured requirement plus retrieved evidence to
// a constrained YES/NO/PARTIAL verdict with traceable citations.
package decision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/provado/provado/llm"
	"github.com/provado/provado/requirement"
	"github.com/provado/provado/retrieval"
)

// Answer is the verdict vocabulary.
type Answer string

const (
	Yes     Answer = "YES"
	No      Answer = "NO"
	Partial Answer = "PARTIAL"
)

// allowed reports whether a is valid for the given decision type.
func allowed(a Answer, dt requirement.DecisionType) bool {
	switch a {
	case Yes, No:
		return true
	case Partial:
		return dt == requirement.YesNoPartial
	}
	return false
}

// Verdict is the terminal output of a validation request.
type Verdict struct {
	Answer        Answer                   `json:"answer"`
	Justification string                   `json:"justification"`
	Evidence      []retrieval.EvidenceItem `json:"evidence"`
}

// Justifications for the deterministic degradation paths.
const (
	noEvidenceJustification = "no supporting evidence found"
	invalidJustification    = "unable to validate model output"
)

// defaultTimeout bounds the decision model call when none is configured.
const defaultTimeout = 90 * time.Second

// decisionResult is the JSON shape the model must return. evidence_used
// holds 1-based indices into the prompt's evidence list.
type decisionResult struct {
	Answer        string `json:"answer"`
	Justification string `json:"justification"`
	EvidenceUsed  []int  `json:"evidence_used"`
}

// Engine produces verdicts.
type Engine struct {
	chat    llm.Provider
	timeout time.Duration
}

// New creates a decision engine over the given chat provider.
func New(chat llm.Provider, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Engine{chat: chat, timeout: timeout}
}

// Decide returns a verdict for the requirement given the fused evidence.
//
// The no-hallucination guarantee is enforced here, not trusted to the model:
// with empty evidence the answer is NO with no model call at all. Any model
// failure that survives the structured-call retry (unparseable output,
// answer outside the vocabulary, timeout) degrades to a forced NO. Decide
// never returns an error.
func (e *Engine) Decide(ctx context.Context, req requirement.Requirement, question string, evidence []retrieval.EvidenceItem) Verdict {
	if len(evidence) == 0 {
		return Verdict{Answer: No, Justification: noEvidenceJustification}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	validate := func(r *decisionResult) error {
		if !allowed(Answer(r.Answer), req.DecisionType) {
			return fmt.Errorf("answer %q outside allowed set for %s", r.Answer, req.DecisionType)
		}
		return nil
	}

	result, err := llm.StructuredCall[decisionResult](ctx, e.chat, llm.StructuredRequest{
		Prompt:      buildPrompt(req, question, evidence),
		Temperature: 0.0,
		RetryHint: "Your previous response violated the output contract. " +
			"Respond with ONLY the JSON object, and \"answer\" MUST be one of the allowed values.",
	}, validate)
	if err != nil {
		slog.Warn("decision: model output invalid after retry, forcing NO",
			"question", question, "error", err)
		return Verdict{Answer: No, Justification: invalidJustification, Evidence: evidence}
	}

	return Verdict{
		Answer:        Answer(result.Answer),
		Justification: result.Justification,
		Evidence:      citedSubset(evidence, result.EvidenceUsed),
	}
}

// citedSubset resolves the model's claimed citations against the real
// evidence list. Indices are 1-based and must be strictly increasing and in
// range; anything else is a fabricated citation set and the full evidence
// list is returned as the safe fallback.
func citedSubset(evidence []retrieval.EvidenceItem, used []int) []retrieval.EvidenceItem {
	if len(used) == 0 {
		return evidence
	}

	subset := make([]retrieval.EvidenceItem, 0, len(used))
	prev := 0
	for _, idx := range used {
		if idx <= prev || idx > len(evidence) {
			slog.Warn("decision: invalid citation indices, falling back to full evidence", "indices", used)
			return evidence
		}
		subset = append(subset, evidence[idx-1])
		prev = idx
	}
	return subset
}
