package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/provado/provado/llm"
	"github.com/provado/provado/requirement"
	"github.com/provado/provado/store"
)

// Config holds retrieval engine configuration.
type Config struct {
	VectorTopK         int     // nearest chunks fetched from the vector index
	EvidenceTopN       int     // fused items returned
	CorroborationBonus float64 // score bonus for fact-backed vector hits
}

// graphFetchLimit caps how many facts a keyword query may return before
// scoring. Generous relative to EvidenceTopN since scoring reorders.
const graphFetchLimit = 50

// embedCacheTTL bounds how long a query embedding is reused. Repeated
// validation runs ask the same questions; embedding them once is enough.
const embedCacheTTL = 10 * time.Minute

// Engine performs hybrid retrieval over the vector index and the fact store.
type Engine struct {
	store      *store.Store
	embedder   llm.Provider
	embedCache *gocache.Cache
	cfg        Config
}

// New creates a retrieval engine.
func New(s *store.Store, embedder llm.Provider, cfg Config) *Engine {
	if cfg.VectorTopK <= 0 {
		cfg.VectorTopK = 8
	}
	if cfg.EvidenceTopN <= 0 {
		cfg.EvidenceTopN = 5
	}
	return &Engine{
		store:      s,
		embedder:   embedder,
		embedCache: gocache.New(embedCacheTTL, 2*embedCacheTTL),
		cfg:        cfg,
	}
}

// Retrieve runs the vector and graph sub-retrievals concurrently and fuses
// the results. A failing branch degrades to an empty contribution; Retrieve
// itself never fails, because empty evidence downstream deterministically
// yields NO.
func (e *Engine) Retrieve(ctx context.Context, req requirement.Requirement, question string) []EvidenceItem {
	start := time.Now()

	type result struct {
		items []EvidenceItem
		err   error
	}

	vecCh := make(chan result, 1)
	graphCh := make(chan result, 1)

	go func() {
		items, err := e.vectorRetrieve(ctx, req.QueryText(question), req.Keywords)
		vecCh <- result{items, err}
	}()

	go func() {
		items, err := e.graphRetrieve(ctx, req.Keywords)
		graphCh <- result{items, err}
	}()

	vecRes := <-vecCh
	graphRes := <-graphCh

	if vecRes.err != nil {
		slog.Warn("retrieval: vector branch failed, degrading to graph only", "error", vecRes.err)
	}
	if graphRes.err != nil {
		slog.Warn("retrieval: graph branch failed, degrading to vector only", "error", graphRes.err)
	}

	fused := Fuse(vecRes.items, graphRes.items, e.cfg.CorroborationBonus, e.cfg.EvidenceTopN)

	slog.Debug("retrieval: complete",
		"vector", len(vecRes.items), "graph", len(graphRes.items), "fused", len(fused),
		"elapsed", time.Since(start).Round(time.Millisecond))

	return fused
}

// vectorRetrieve embeds the query text and searches the vector index. Each
// hit's quote is trimmed to its most keyword-relevant sentences; the full
// chunk is quoted only when no sentence matches.
func (e *Engine) vectorRetrieve(ctx context.Context, query string, keywords []string) ([]EvidenceItem, error) {
	embedding, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := e.store.VectorSearch(ctx, embedding, e.cfg.VectorTopK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	items := make([]EvidenceItem, 0, len(hits))
	for _, h := range hits {
		quote := extractSnippet(h.Content, keywords)
		if quote == "" {
			quote = h.Content
		}
		items = append(items, EvidenceItem{
			Quote:  quote,
			Source: h.Filename,
			Score:  h.Score,
			Origin: OriginVector,
		})
	}
	return items, nil
}

// embedQuery computes (or reuses) the embedding for a query string.
func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if cached, ok := e.embedCache.Get(query); ok {
		return cached.([]float32), nil
	}

	embeddings, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}

	e.embedCache.Set(query, embeddings[0], gocache.DefaultExpiration)
	return embeddings[0], nil
}

// graphRetrieve filters stored facts by the requirement keywords and projects
// each matching fact's provenance into evidence. Score is the count of
// distinct keywords the fact matches, so facts hitting more of the
// requirement rank higher.
func (e *Engine) graphRetrieve(ctx context.Context, keywords []string) ([]EvidenceItem, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	facts, err := e.store.SearchFacts(ctx, keywords, graphFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("fact search: %w", err)
	}

	var items []EvidenceItem
	for _, f := range facts {
		score := float64(matchedKeywords(f, keywords))
		if score == 0 {
			continue
		}
		for _, src := range f.Sources {
			items = append(items, EvidenceItem{
				Quote:  src.Quote,
				Source: src.Document,
				Score:  score,
				Origin: OriginGraph,
			})
		}
	}
	return items, nil
}

// matchedKeywords counts how many distinct keywords appear in the fact's
// normalized subject or object.
func matchedKeywords(f store.Fact, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if strings.Contains(f.SubjectNorm, kw) || strings.Contains(f.ObjectNorm, kw) {
			n++
		}
	}
	return n
}
