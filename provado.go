// Package provado validates RFP requirements against a corpus of technical
// documents, producing YES/NO/PARTIAL verdicts backed by exact quoted
// evidence. If a fact is not explicitly stated in source material, the
// verdict defaults to NO.
package provado

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/provado/provado/chunker"
	"github.com/provado/provado/decision"
	"github.com/provado/provado/facts"
	"github.com/provado/provado/llm"
	"github.com/provado/provado/parser"
	"github.com/provado/provado/requirement"
	"github.com/provado/provado/retrieval"
	"github.com/provado/provado/store"
)

// Engine is the main entry point for the validation engine.
type Engine interface {
	// Ingest parses, chunks, embeds, and extracts facts from a document.
	// Returns document ID. Skips if content hash unchanged.
	Ingest(ctx context.Context, path string, opts ...IngestOption) (int64, error)

	// IngestDir ingests every supported document under dir.
	IngestDir(ctx context.Context, dir string, opts ...IngestOption) ([]IngestResult, error)

	// Validate runs a question through requirement parsing, hybrid
	// retrieval, and the constrained decision procedure.
	Validate(ctx context.Context, question string) (*Result, error)

	// Delete removes a document and all associated data.
	Delete(ctx context.Context, documentID int64) error

	// ListDocuments returns all ingested documents.
	ListDocuments(ctx context.Context) ([]store.Document, error)

	// Reset wipes all documents, chunks, embeddings, and facts. Required
	// before re-ingesting a changed corpus for a clean rebuild.
	Reset(ctx context.Context) error

	// Stats reports row counts for diagnostics.
	Stats(ctx context.Context) (*store.DBStats, error)

	// Store returns the underlying store for diagnostic access.
	Store() *store.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// Result is the terminal output of a validation request.
type Result struct {
	Question      string                  `json:"question"`
	Requirement   requirement.Requirement `json:"requirement"`
	Answer        string                  `json:"answer"` // YES, NO, PARTIAL
	Justification string                  `json:"justification"`
	Evidence      []EvidenceRef           `json:"evidence"`
	ElapsedMs     int64                   `json:"elapsed_ms"`
}

// EvidenceRef is one cited quote with its source document.
type EvidenceRef struct {
	Quote  string `json:"quote"`
	Source string `json:"source"`
}

// IngestResult reports the outcome of one document in a batch ingest.
type IngestResult struct {
	Path       string `json:"path"`
	DocumentID int64  `json:"document_id"`
	Skipped    bool   `json:"skipped"`
	Error      error  `json:"-"`
}

// MarshalJSON renders Error as its message; a bare error value would
// marshal to an empty object and lose the failure reason.
func (r IngestResult) MarshalJSON() ([]byte, error) {
	out := struct {
		Path       string `json:"path"`
		DocumentID int64  `json:"document_id"`
		Skipped    bool   `json:"skipped"`
		Error      string `json:"error,omitempty"`
	}{Path: r.Path, DocumentID: r.DocumentID, Skipped: r.Skipped}
	if r.Error != nil {
		out.Error = r.Error.Error()
	}
	return json.Marshal(out)
}

// IngestOption configures ingestion behavior.
type IngestOption func(*ingestOptions)

type ingestOptions struct {
	forceReparse bool
	skipFacts    bool
}

// WithForceReparse forces re-parsing even if the hash hasn't changed.
func WithForceReparse() IngestOption {
	return func(o *ingestOptions) { o.forceReparse = true }
}

// WithSkipFacts skips fact extraction for this ingest (vector-only).
func WithSkipFacts() IngestOption {
	return func(o *ingestOptions) { o.skipFacts = true }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg      Config
	store    *store.Store
	chatLLM  llm.Provider
	embedLLM llm.Provider
	parsers  *parser.Registry
	chunkr   *chunker.Chunker
	factB    *facts.Builder
	reqP     *requirement.Parser
	retr     *retrieval.Engine
	decider  *decision.Engine
}

// New creates a validation engine with the given configuration.
func New(cfg Config) (Engine, error) {
	dbPath := cfg.resolveDBPath()

	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 768
	}

	s, err := store.New(dbPath, cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	chatLLM, err := llm.NewProvider(llm.Config{
		Provider: cfg.Chat.Provider,
		Model:    cfg.Chat.Model,
		BaseURL:  cfg.Chat.BaseURL,
		APIKey:   cfg.Chat.APIKey,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating chat provider: %w", err)
	}

	embedLLM, err := llm.NewProvider(llm.Config{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	factB, err := facts.NewBuilder(s, facts.NewExtractor(chatLLM), cfg.ExtractConcurrency)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating fact builder: %w", err)
	}

	return &engine{
		cfg:      cfg,
		store:    s,
		chatLLM:  chatLLM,
		embedLLM: embedLLM,
		parsers:  parser.NewRegistry(),
		chunkr: chunker.New(chunker.Config{
			MaxTokens: cfg.MaxChunkTokens,
			Overlap:   cfg.ChunkOverlap,
		}),
		factB: factB,
		reqP:  requirement.NewParser(chatLLM),
		retr: retrieval.New(s, embedLLM, retrieval.Config{
			VectorTopK:         cfg.VectorTopK,
			EvidenceTopN:       cfg.EvidenceTopN,
			CorroborationBonus: cfg.CorroborationBonus,
		}),
		decider: decision.New(chatLLM, cfg.DecideTimeout),
	}, nil
}

// Ingest processes a document through the full pipeline: parse, chunk,
// embed, extract facts.
func (e *engine) Ingest(ctx context.Context, path string, opts ...IngestOption) (int64, error) {
	options := &ingestOptions{skipFacts: e.cfg.SkipFacts}
	for _, o := range opts {
		o(options)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("resolving path: %w", err)
	}

	hash, err := fileHash(absPath)
	if err != nil {
		return 0, fmt.Errorf("hashing file: %w", err)
	}

	// Unchanged document: nothing to do.
	if !options.forceReparse {
		existing, err := e.store.GetDocumentByPath(ctx, absPath)
		if err == nil && existing.ContentHash == hash {
			slog.Debug("ingest: document unchanged, skipping", "path", absPath)
			return existing.ID, nil
		}
	}

	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(absPath), "."))
	filename := filepath.Base(absPath)

	p, err := e.parsers.Get(format)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	docID, err := e.store.UpsertDocument(ctx, store.Document{
		Path:        absPath,
		Filename:    filename,
		Format:      format,
		ContentHash: hash,
		Status:      "processing",
	})
	if err != nil {
		return 0, fmt.Errorf("upserting document: %w", err)
	}

	slog.Info("ingest: parsing document", "file", filename, "format", format, "doc_id", docID)
	start := time.Now()

	parsed, err := p.Parse(ctx, absPath)
	if err != nil {
		e.store.UpdateDocumentStatus(ctx, docID, "error")
		return 0, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	chunks := e.chunkr.Chunk(parsed.Sections)
	slog.Info("ingest: chunking complete", "file", filename,
		"sections", len(parsed.Sections), "chunks", len(chunks))

	// Re-ingest of a changed document: drop its old chunks and embeddings.
	// Facts are corpus-wide and survive; a clean rebuild goes through Reset.
	if err := e.store.DeleteDocumentData(ctx, docID); err != nil {
		return 0, fmt.Errorf("cleaning old data: %w", err)
	}

	for i := range chunks {
		chunks[i].DocumentID = docID
	}
	chunkIDs, err := e.store.InsertChunks(ctx, chunks)
	if err != nil {
		e.store.UpdateDocumentStatus(ctx, docID, "error")
		return 0, fmt.Errorf("inserting chunks: %w", err)
	}
	for i := range chunks {
		chunks[i].ID = chunkIDs[i]
	}

	slog.Info("ingest: generating embeddings", "file", filename, "chunks", len(chunks))
	if err := e.embedChunks(ctx, chunks, chunkIDs); err != nil {
		e.store.UpdateDocumentStatus(ctx, docID, "error")
		return 0, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	if options.skipFacts {
		slog.Info("ingest: fact extraction skipped", "doc_id", docID)
	} else {
		if err := e.factB.Build(ctx, filename, chunks); err != nil {
			// Non-fatal: vector retrieval still works without facts.
			slog.Warn("ingest: fact extraction had errors", "doc_id", docID, "error", err)
		}
	}

	e.store.UpdateDocumentStatus(ctx, docID, "ready")
	slog.Info("ingest: document ready", "file", filename, "doc_id", docID,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return docID, nil
}

// IngestDir walks dir and ingests every file with a registered parser.
// Individual document failures are reported, not fatal to the batch.
func (e *engine) IngestDir(ctx context.Context, dir string, opts ...IngestOption) ([]IngestResult, error) {
	supported := make(map[string]bool)
	for _, f := range e.parsers.Formats() {
		supported[f] = true
	}

	var results []IngestResult
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
		if !supported[ext] {
			return nil
		}

		docID, ierr := e.Ingest(ctx, path, opts...)
		results = append(results, IngestResult{
			Path:       path,
			DocumentID: docID,
			Error:      ierr,
		})
		if ierr != nil {
			slog.Warn("ingest: document failed", "path", path, "error", ierr)
		}
		return ctx.Err()
	})
	if err != nil {
		return results, fmt.Errorf("walking %s: %w", dir, err)
	}
	return results, nil
}

// Validate answers one question against the ingested corpus.
func (e *engine) Validate(ctx context.Context, question string) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", ErrInvalidConfig)
	}

	start := time.Now()

	req := e.reqP.Parse(ctx, question)
	slog.Debug("validate: requirement parsed",
		"type", req.Type, "subject", req.Subject, "keywords", req.Keywords)

	evidence := e.retr.Retrieve(ctx, req, question)

	verdict := e.decider.Decide(ctx, req, question, evidence)

	result := &Result{
		Question:      question,
		Requirement:   req,
		Answer:        string(verdict.Answer),
		Justification: verdict.Justification,
		Evidence:      make([]EvidenceRef, 0, len(verdict.Evidence)),
		ElapsedMs:     time.Since(start).Milliseconds(),
	}
	for _, item := range verdict.Evidence {
		result.Evidence = append(result.Evidence, EvidenceRef{
			Quote:  item.Quote,
			Source: item.Source,
		})
	}

	if err := e.store.LogVerdict(ctx, store.VerdictLog{
		Question:      question,
		Answer:        result.Answer,
		Justification: result.Justification,
		Evidence:      result.Evidence,
		ModelUsed:     e.cfg.Chat.Model,
		ElapsedMs:     result.ElapsedMs,
	}); err != nil {
		slog.Warn("validate: verdict logging failed", "error", err)
	}

	return result, nil
}

// Delete removes a document and all its associated data.
func (e *engine) Delete(ctx context.Context, documentID int64) error {
	return e.store.DeleteDocument(ctx, documentID)
}

// ListDocuments returns all ingested documents.
func (e *engine) ListDocuments(ctx context.Context) ([]store.Document, error) {
	return e.store.ListDocuments(ctx)
}

// Reset wipes the store for a clean rebuild.
func (e *engine) Reset(ctx context.Context) error {
	return e.store.Reset(ctx)
}

// Stats reports row counts.
func (e *engine) Stats(ctx context.Context) (*store.DBStats, error) {
	return e.store.Stats(ctx)
}

// Store returns the underlying store for diagnostic access.
func (e *engine) Store() *store.Store {
	return e.store
}

// Close shuts down the engine.
func (e *engine) Close() error {
	e.factB.Close()
	return e.store.Close()
}

// maxEmbedChars is the maximum character length for a single text sent to
// the embedding model, leaving headroom under typical 8192-token windows.
const maxEmbedChars = 24000

// truncateForEmbed truncates text to maxEmbedChars on a word boundary.
func truncateForEmbed(text string) string {
	if len(text) <= maxEmbedChars {
		return text
	}
	cut := strings.LastIndex(text[:maxEmbedChars], " ")
	if cut <= 0 {
		cut = maxEmbedChars
	}
	return text[:cut]
}

// embedChunks generates embeddings for chunks in batches. Individual batch
// failures trigger per-text fallback so a single oversized text does not
// cause the entire batch to be lost.
func (e *engine) embedChunks(ctx context.Context, chunks []store.Chunk, chunkIDs []int64) error {
	const batchSize = 32
	var failed int

	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, end-i)
		for j := i; j < end; j++ {
			prefix := ""
			if chunks[j].Heading != "" {
				prefix = chunks[j].Heading + ": "
			}
			texts[j-i] = truncateForEmbed(prefix + chunks[j].Content)
		}

		embeddings, err := e.embedLLM.Embed(ctx, texts)
		if err != nil {
			// Batch failed, fall back to embedding each text individually.
			slog.Warn("embedding batch failed, falling back to individual",
				"batch_start", i, "batch_end", end, "error", err)
			for j, text := range texts {
				single, serr := e.embedLLM.Embed(ctx, []string{text})
				if serr != nil || len(single) == 0 || len(single[0]) == 0 {
					slog.Warn("embedding single text failed",
						"chunk_id", chunkIDs[i+j], "error", serr)
					failed++
					continue
				}
				if serr := e.store.InsertEmbedding(ctx, chunkIDs[i+j], single[0]); serr != nil {
					slog.Warn("storing embedding failed",
						"chunk_id", chunkIDs[i+j], "error", serr)
					failed++
				}
			}
			continue
		}

		for j, emb := range embeddings {
			if err := e.store.InsertEmbedding(ctx, chunkIDs[i+j], emb); err != nil {
				slog.Warn("storing embedding failed",
					"chunk_id", chunkIDs[i+j], "error", err)
				failed++
			}
		}
	}

	if len(chunks) > 0 && failed == len(chunks) {
		return fmt.Errorf("all %d chunks failed embedding", len(chunks))
	}
	if failed > 0 {
		slog.Warn("some embeddings failed", "failed", failed, "total", len(chunks))
	}
	return nil
}

// fileHash computes the SHA-256 hash of a file's content.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
