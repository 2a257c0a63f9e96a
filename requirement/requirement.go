// Package requirement turns free-text RFP questions into structured
// requirements consumed by retrieval and decision.
package requirement

// Type classifies what kind of requirement a question expresses.
type Type string

const (
	Compliance    Type = "COMPLIANCE"
	Functional    Type = "FUNCTIONAL"
	NonFunctional Type = "NON_FUNCTIONAL"
)

// ValidType reports whether t is a member of the closed enumeration.
func ValidType(t Type) bool {
	switch t {
	case Compliance, Functional, NonFunctional:
		return true
	}
	return false
}

// DecisionType constrains the verdict vocabulary for a requirement.
type DecisionType string

const (
	YesNo        DecisionType = "YES_NO"
	YesNoPartial DecisionType = "YES_NO_PARTIAL"
)

// ValidDecisionType reports whether d is a member of the closed enumeration.
func ValidDecisionType(d DecisionType) bool {
	return d == YesNo || d == YesNoPartial
}

// Requirement is the structured form of a question. Immutable once built;
// request-scoped, never persisted.
type Requirement struct {
	Type          Type         `json:"requirement_type"`
	Subject       string       `json:"subject"`
	ExpectedValue string       `json:"expected_value"`
	DecisionType  DecisionType `json:"decision_type"`
	Keywords      []string     `json:"keywords"`
}

// QueryText is the text embedded for vector retrieval: subject plus expected
// value when both are present, otherwise whatever is available.
func (r Requirement) QueryText(question string) string {
	switch {
	case r.Subject != "" && r.ExpectedValue != "":
		return r.Subject + " " + r.ExpectedValue
	case r.Subject != "":
		return r.Subject
	default:
		return question
	}
}
