package facts

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/provado/provado/store"
)

// minChunkTokens skips chunks below this threshold (headers, TOC lines, etc.)
const minChunkTokens = 20

// perChunkTimeout caps how long a single chunk extraction can take.
const perChunkTimeout = 90 * time.Second

// defaultConcurrency is the worker pool size when none is configured.
const defaultConcurrency = 8

// estimateTokens approximates token count using a word-based heuristic.
func estimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) * 1.3))
}

// Builder fans chunk extraction out over a worker pool and persists the
// resulting triples with their provenance.
type Builder struct {
	store     *store.Store
	extractor *Extractor
	pool      *ants.Pool
}

// NewBuilder creates a fact builder. concurrency bounds the number of
// simultaneous extraction calls against the chat model.
func NewBuilder(s *store.Store, extractor *Extractor, concurrency int) (*Builder, error) {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, fmt.Errorf("creating extraction pool: %w", err)
	}
	return &Builder{
		store:     s,
		extractor: extractor,
		pool:      pool,
	}, nil
}

// Close releases the worker pool.
func (b *Builder) Close() {
	b.pool.Release()
}

// Build extracts facts from the given chunks and upserts them into the
// store. document is the provenance label (filename) recorded on every
// fact source. Individual chunk failures degrade to logged gaps; Build
// only fails when every eligible chunk fails.
func (b *Builder) Build(ctx context.Context, document string, chunks []store.Chunk) error {
	var eligible []store.Chunk
	for _, c := range chunks {
		if estimateTokens(c.Content) < minChunkTokens {
			slog.Debug("facts: skipping trivial chunk", "chunk_id", c.ID,
				"tokens", estimateTokens(c.Content))
			continue
		}
		eligible = append(eligible, c)
	}

	if len(eligible) == 0 {
		return nil
	}

	slog.Info("facts: extracting from chunks", "document", document,
		"total", len(chunks), "eligible", len(eligible), "workers", b.pool.Cap())

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		failed int
		stored int
		start  = time.Now()
	)

	for _, chunk := range eligible {
		chunk := chunk
		wg.Add(1)
		err := b.pool.Submit(func() {
			defer wg.Done()

			chunkCtx, cancel := context.WithTimeout(ctx, perChunkTimeout)
			defer cancel()

			n, err := b.processChunk(chunkCtx, document, chunk)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				slog.Warn("facts: chunk extraction failed", "chunk_id", chunk.ID, "error", err)
				return
			}
			stored += n
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			failed++
			mu.Unlock()
			slog.Warn("facts: pool submit failed", "chunk_id", chunk.ID, "error", err)
		}
	}

	wg.Wait()

	if failed == len(eligible) {
		return fmt.Errorf("facts: all %d eligible chunks failed", len(eligible))
	}
	slog.Info("facts: extraction complete", "document", document,
		"facts_stored", stored, "chunks_failed", failed,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// processChunk extracts and persists facts for one chunk, returning the
// number of provenance-backed facts stored.
func (b *Builder) processChunk(ctx context.Context, document string, chunk store.Chunk) (int, error) {
	extracted, err := b.extractor.ExtractChunk(ctx, chunk)
	if err != nil {
		return 0, err
	}

	section := sectionLabel(chunk)

	stored := 0
	for _, f := range extracted {
		fact := store.Fact{
			Subject:     f.Subject,
			Relation:    f.Relation,
			Object:      f.Object,
			SubjectNorm: Normalize(f.Subject),
			ObjectNorm:  Normalize(f.Object),
		}
		src := store.FactSource{
			Document: document,
			Section:  section,
			Quote:    f.Quote,
		}
		if _, _, err := b.store.UpsertFact(ctx, fact, src); err != nil {
			slog.Warn("facts: upsert failed, skipping",
				"subject", f.Subject, "relation", f.Relation, "error", err)
			continue
		}
		stored++
	}
	return stored, nil
}

// sectionLabel picks the most specific location descriptor available for a
// chunk, used in provenance and in answers shown to the user.
func sectionLabel(chunk store.Chunk) string {
	if chunk.Heading != "" {
		return chunk.Heading
	}
	if chunk.PageNumber > 0 {
		return fmt.Sprintf("p.%d", chunk.PageNumber)
	}
	return fmt.Sprintf("chunk %d", chunk.PositionInDoc)
}
