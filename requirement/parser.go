package requirement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/provado/provado/llm"
)

// parsePrompt asks the model to classify a question into the structured
// requirement shape. The vocabulary for each field is closed.
const parsePrompt = `You are a requirement parsing engine for RFP validation.
Classify the following question into a structured requirement.

Return a JSON object with exactly these keys:
  "requirement_type" : one of "COMPLIANCE", "FUNCTIONAL", "NON_FUNCTIONAL"
  "subject"          : the thing the question is about, short noun phrase
  "expected_value"   : the concrete value or guarantee asked about, or "" if none
  "decision_type"    : "YES_NO" for strict yes/no questions, "YES_NO_PARTIAL" otherwise
  "keywords"         : array of lowercase search terms from the question (never empty)

Rules:
- Keep abbreviations (RTO, SLA, ISO) as keywords verbatim, lowercased.
- Do NOT include any text outside the JSON object.

EXAMPLES:

Question: "What is the RTO?"
Output:
{"requirement_type": "NON_FUNCTIONAL", "subject": "RTO", "expected_value": "", "decision_type": "YES_NO_PARTIAL", "keywords": ["rto", "recovery"]}

Question: "Does the platform comply with ISO 27001?"
Output:
{"requirement_type": "COMPLIANCE", "subject": "ISO 27001 compliance", "expected_value": "ISO 27001", "decision_type": "YES_NO", "keywords": ["iso", "27001", "compliance"]}

QUESTION:
%s`

// Parser converts questions into Requirements. It never fails outward: any
// model failure degrades to a heuristic requirement built from the question
// text alone.
type Parser struct {
	chat llm.Provider
}

// NewParser creates a parser over the given chat provider.
func NewParser(chat llm.Provider) *Parser {
	return &Parser{chat: chat}
}

// Parse builds a structured requirement for the question. The returned
// value is always usable: keywords are non-empty and both enumeration
// fields hold valid members.
func (p *Parser) Parse(ctx context.Context, question string) Requirement {
	result, err := llm.StructuredCall[Requirement](ctx, p.chat, llm.StructuredRequest{
		Prompt:      fmt.Sprintf(parsePrompt, question),
		Temperature: 0.0,
	}, validateRequirement)
	if err != nil {
		slog.Warn("requirement: model parse failed, using heuristic fallback",
			"question", question, "error", err)
		return Fallback(question)
	}

	req := *result
	// Keyword repair: an empty set from the model is fixed by tokenizing,
	// not by discarding the rest of the parse.
	if len(req.Keywords) == 0 {
		req.Keywords = Tokenize(question)
	}
	return req
}

// validateRequirement enforces the closed enumerations. Keywords are
// repaired rather than rejected, so they are not checked here.
func validateRequirement(r *Requirement) error {
	if !ValidType(r.Type) {
		return fmt.Errorf("requirement_type %q outside allowed set", r.Type)
	}
	if !ValidDecisionType(r.DecisionType) {
		return fmt.Errorf("decision_type %q outside allowed set", r.DecisionType)
	}
	if r.Subject == "" {
		return fmt.Errorf("subject is empty")
	}
	return nil
}

// Fallback constructs the minimal requirement used when the model output
// cannot be parsed or validated.
func Fallback(question string) Requirement {
	return Requirement{
		Type:         NonFunctional,
		Subject:      normalizeQuestion(question),
		DecisionType: YesNoPartial,
		Keywords:     Tokenize(question),
	}
}
