package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// StructuredRequest describes a model call whose output must parse into a
// typed value. The prompt should spell out the exact JSON shape expected.
type StructuredRequest struct {
	System      string
	Prompt      string
	Model       string
	Temperature float64
	MaxTokens   int
	// RetryHint is appended to the prompt on the second attempt. If empty,
	// a generic strict-JSON reminder is used.
	RetryHint string
}

const defaultRetryHint = "Your previous response was not valid. Respond with ONLY the JSON object described above, no prose, no code fences."

// StructuredCall asks the model for a JSON response, parses it into T and
// runs validate over the result. On a parse or validation failure it retries
// once with a stricter reformulation, then returns the last error.
func StructuredCall[T any](ctx context.Context, p Provider, req StructuredRequest, validate func(*T) error) (*T, error) {
	hint := req.RetryHint
	if hint == "" {
		hint = defaultRetryHint
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		prompt := req.Prompt
		if attempt > 0 {
			prompt = prompt + "\n\n" + hint
		}

		messages := []Message{}
		if req.System != "" {
			messages = append(messages, Message{Role: "system", Content: req.System})
		}
		messages = append(messages, Message{Role: "user", Content: prompt})

		resp, err := p.Chat(ctx, ChatRequest{
			Model:          req.Model,
			Messages:       messages,
			Temperature:    req.Temperature,
			MaxTokens:      req.MaxTokens,
			ResponseFormat: "json_object",
		})
		if err != nil {
			// Transport failures are not fixed by reformulation.
			return nil, err
		}

		var out T
		if err := json.Unmarshal([]byte(ExtractJSON(resp.Content)), &out); err != nil {
			lastErr = fmt.Errorf("parsing structured response: %w", err)
			slog.Warn("llm: structured response unparseable, retrying", "attempt", attempt+1, "error", err)
			continue
		}

		if validate != nil {
			if err := validate(&out); err != nil {
				lastErr = fmt.Errorf("validating structured response: %w", err)
				slog.Warn("llm: structured response invalid, retrying", "attempt", attempt+1, "error", err)
				continue
			}
		}

		return &out, nil
	}

	return nil, lastErr
}

// ExtractJSON strips markdown code fences and surrounding prose from a model
// response, returning the outermost JSON object or array. Models wrap JSON in
// ```json fences or add commentary despite instructions not to.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)

	// Strip code fences.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// Find the outermost object or array.
	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")

	var start int
	var closer byte
	switch {
	case objStart == -1 && arrStart == -1:
		return s
	case objStart == -1 || (arrStart != -1 && arrStart < objStart):
		start, closer = arrStart, ']'
	default:
		start, closer = objStart, '}'
	}

	if end := strings.LastIndexByte(s, closer); end > start {
		return s[start : end+1]
	}
	return s[start:]
}
