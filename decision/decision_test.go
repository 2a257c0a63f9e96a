package decision

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provado/provado/llm"
	"github.com/provado/provado/requirement"
	"github.com/provado/provado/retrieval"
)

type scriptedChat struct {
	responses []string
	calls     int
	delay     time.Duration
}

func (s *scriptedChat) Chat(ctx context.Context, _ llm.ChatRequest) (*llm.ChatResponse, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	idx := s.calls
	s.calls++
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return &llm.ChatResponse{Content: s.responses[idx]}, nil
}

func (s *scriptedChat) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

func partialReq() requirement.Requirement {
	return requirement.Requirement{
		Type:         requirement.NonFunctional,
		Subject:      "RTO",
		DecisionType: requirement.YesNoPartial,
		Keywords:     []string{"rto"},
	}
}

func rtoEvidence() []retrieval.EvidenceItem {
	return []retrieval.EvidenceItem{
		{Quote: "RTO is guaranteed at 1 hour.", Source: "proposal.pdf", Score: 1.25, Origin: retrieval.OriginGraph},
		{Quote: "Disaster recovery drills run quarterly.", Source: "proposal.pdf", Score: 0.7, Origin: retrieval.OriginVector},
	}
}

func TestDecideEmptyEvidenceShortCircuits(t *testing.T) {
	chat := &scriptedChat{responses: []string{`{"answer": "YES"}`}}
	e := New(chat, time.Second)

	v := e.Decide(context.Background(), partialReq(), "What is the RTO?", nil)

	assert.Equal(t, No, v.Answer)
	assert.Equal(t, "no supporting evidence found", v.Justification)
	assert.Empty(t, v.Evidence)
	assert.Equal(t, 0, chat.calls, "empty evidence must skip the model call entirely")
}

func TestDecideYesWithCitedSubset(t *testing.T) {
	chat := &scriptedChat{responses: []string{
		`{"answer": "YES", "justification": "RTO of 1 hour is explicitly guaranteed.", "evidence_used": [1]}`,
	}}
	e := New(chat, time.Second)
	evidence := rtoEvidence()

	v := e.Decide(context.Background(), partialReq(), "What is the RTO?", evidence)

	assert.Equal(t, Yes, v.Answer)
	assert.Contains(t, v.Justification, "1 hour")
	require.Len(t, v.Evidence, 1)
	assert.Equal(t, evidence[0], v.Evidence[0])
}

func TestDecideVerdictDomain(t *testing.T) {
	// PARTIAL is rejected under YES_NO, both times, forcing NO.
	chat := &scriptedChat{responses: []string{
		`{"answer": "PARTIAL", "justification": "somewhat", "evidence_used": [1]}`,
		`{"answer": "PARTIAL", "justification": "somewhat", "evidence_used": [1]}`,
	}}
	e := New(chat, time.Second)
	req := partialReq()
	req.DecisionType = requirement.YesNo

	v := e.Decide(context.Background(), req, "Is the RTO 1 hour?", rtoEvidence())

	assert.Equal(t, No, v.Answer)
	assert.Equal(t, "unable to validate model output", v.Justification)
	assert.Equal(t, 2, chat.calls, "invalid answer should be retried once")
}

func TestDecidePartialAllowedUnderYesNoPartial(t *testing.T) {
	chat := &scriptedChat{responses: []string{
		`{"answer": "PARTIAL", "justification": "only staging is covered", "evidence_used": [1, 2]}`,
	}}
	e := New(chat, time.Second)

	v := e.Decide(context.Background(), partialReq(), "What is the RTO?", rtoEvidence())

	assert.Equal(t, Partial, v.Answer)
	assert.Len(t, v.Evidence, 2)
}

func TestDecideRetryRecovers(t *testing.T) {
	chat := &scriptedChat{responses: []string{
		`The answer is yes because the RTO is stated.`,
		`{"answer": "YES", "justification": "stated", "evidence_used": [1]}`,
	}}
	e := New(chat, time.Second)

	v := e.Decide(context.Background(), partialReq(), "What is the RTO?", rtoEvidence())

	assert.Equal(t, Yes, v.Answer)
	assert.Equal(t, 2, chat.calls)
}

func TestDecideFabricatedCitationsFallBackToFullEvidence(t *testing.T) {
	tests := []struct {
		name string
		used string
	}{
		{"out of range", `[1, 5]`},
		{"not increasing", `[2, 1]`},
		{"zero index", `[0]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &scriptedChat{responses: []string{
				`{"answer": "YES", "justification": "ok", "evidence_used": ` + tt.used + `}`,
			}}
			e := New(chat, time.Second)
			evidence := rtoEvidence()

			v := e.Decide(context.Background(), partialReq(), "What is the RTO?", evidence)

			assert.Equal(t, Yes, v.Answer)
			assert.Equal(t, evidence, v.Evidence, "fabricated citations must be replaced with the full set")
		})
	}
}

func TestDecideEmptyCitationsKeepFullEvidence(t *testing.T) {
	chat := &scriptedChat{responses: []string{
		`{"answer": "NO", "justification": "evidence does not address the requirement"}`,
	}}
	e := New(chat, time.Second)
	evidence := rtoEvidence()

	v := e.Decide(context.Background(), partialReq(), "What is the RTO?", evidence)

	assert.Equal(t, No, v.Answer)
	assert.Equal(t, evidence, v.Evidence)
}

func TestDecideTimeoutForcesNo(t *testing.T) {
	chat := &scriptedChat{
		responses: []string{`{"answer": "YES", "justification": "ok", "evidence_used": [1]}`},
		delay:     200 * time.Millisecond,
	}
	e := New(chat, 20*time.Millisecond)

	v := e.Decide(context.Background(), partialReq(), "What is the RTO?", rtoEvidence())

	assert.Equal(t, No, v.Answer)
	assert.Equal(t, "unable to validate model output", v.Justification)
}

func TestCitedSubsetIsSubsequence(t *testing.T) {
	evidence := rtoEvidence()
	subset := citedSubset(evidence, []int{2})
	require.Len(t, subset, 1)
	assert.Equal(t, evidence[1], subset[0])

	// Every returned item exists by identity in the input.
	for _, item := range citedSubset(evidence, []int{1, 2}) {
		assert.Contains(t, evidence, item)
	}
}
