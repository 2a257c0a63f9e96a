package provado

import "errors"

var (
	// ErrDocumentNotFound is returned when a document ID or path does not exist.
	ErrDocumentNotFound = errors.New("provado: document not found")

	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("provado: unsupported document format")

	// ErrParsingFailed is returned when document parsing fails.
	ErrParsingFailed = errors.New("provado: parsing failed")

	// ErrEmbeddingFailed is returned when embedding generation fails.
	ErrEmbeddingFailed = errors.New("provado: embedding generation failed")

	// ErrExtractionParse is returned when the model's fact extraction output
	// is not in the expected structured form. Recovered by retry-then-skip;
	// a chunk that still fails is logged as a gap, never fabricated.
	ErrExtractionParse = errors.New("provado: fact extraction output unparseable")

	// ErrRequirementParse is returned internally when the model's requirement
	// output cannot be parsed. Always recovered by the heuristic fallback;
	// never surfaces to callers.
	ErrRequirementParse = errors.New("provado: requirement parse failed")

	// ErrRetrievalBackend is returned when a retrieval branch (vector index
	// or fact store) fails. The other branch's evidence still proceeds.
	ErrRetrievalBackend = errors.New("provado: retrieval backend failed")

	// ErrDecisionValidation is returned when the model's verdict violates the
	// output contract. Recovered by retry-then-forced-NO.
	ErrDecisionValidation = errors.New("provado: verdict output invalid")

	// ErrUpstreamTimeout is returned when a model or index call exceeds its
	// deadline. Recovered by the same forced-NO/degraded path.
	ErrUpstreamTimeout = errors.New("provado: upstream call timed out")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("provado: invalid configuration")
)
