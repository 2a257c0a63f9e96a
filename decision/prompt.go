package decision

import (
	"fmt"
	"strings"

	"github.com/provado/provado/requirement"
	"github.com/provado/provado/retrieval"
)

// buildPrompt renders the decision prompt: the requirement, the numbered
// evidence quotes, and the exact output contract. The allowed answer
// vocabulary depends on the requirement's decision type.
func buildPrompt(req requirement.Requirement, question string, evidence []retrieval.EvidenceItem) string {
	var b strings.Builder

	b.WriteString("You are a strict RFP requirement validator.\n")
	b.WriteString("Decide whether the evidence below proves the requirement is met.\n\n")

	fmt.Fprintf(&b, "QUESTION: %s\n", question)
	fmt.Fprintf(&b, "REQUIREMENT TYPE: %s\n", req.Type)
	fmt.Fprintf(&b, "SUBJECT: %s\n", req.Subject)
	if req.ExpectedValue != "" {
		fmt.Fprintf(&b, "EXPECTED VALUE: %s\n", req.ExpectedValue)
	}

	b.WriteString("\nEVIDENCE:\n")
	for i, item := range evidence {
		fmt.Fprintf(&b, "[%d] (%s) \"%s\"\n", i+1, item.Source, item.Quote)
	}

	b.WriteString("\nRules:\n")
	if req.DecisionType == requirement.YesNo {
		b.WriteString(`- "answer" MUST be exactly "YES" or "NO".` + "\n")
		b.WriteString(`- Answer YES only if the evidence explicitly and fully satisfies the requirement; otherwise NO.` + "\n")
	} else {
		b.WriteString(`- "answer" MUST be exactly "YES", "NO", or "PARTIAL".` + "\n")
		b.WriteString(`- Answer YES only if the evidence explicitly and fully satisfies the requirement.` + "\n")
		b.WriteString(`- Answer PARTIAL if the evidence addresses the requirement but does not fully satisfy it.` + "\n")
		b.WriteString(`- Answer NO if the evidence does not support the requirement.` + "\n")
	}
	b.WriteString("- Base your answer ONLY on the evidence above. Never use outside knowledge or inference.\n")
	b.WriteString("- \"evidence_used\" lists the numbers of the evidence items your answer relies on.\n\n")

	b.WriteString("Return a JSON object with exactly these keys:\n")
	b.WriteString(`  {"answer": string, "justification": string, "evidence_used": [int]}` + "\n")
	b.WriteString("Do NOT include any text outside the JSON object.")

	return b.String()
}
