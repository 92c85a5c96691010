package search

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	corerrors "github.com/ragforge/corerag/internal/errors"
	"github.com/ragforge/corerag/internal/lang"
	"github.com/ragforge/corerag/internal/store"
)

// Embedder is the subset of embed.Embedder the search engine depends on.
// Callers are expected to pass an embedder already wrapped with a query
// cache (embed.CachedEmbedder), satisfying the ≈1000-entry LRU named in
// the semantic-search contract.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Engine executes one query as semantic, keyword, or hybrid search.
type Engine struct {
	store    *store.Store
	embedder Embedder

	scoreThreshold float64 // cosine-similarity floor for semantic results
	logger         *slog.Logger
}

// New builds an Engine. scoreThreshold is the semantic-search cosine floor.
func New(s *store.Store, embedder Embedder, scoreThreshold float64, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: s, embedder: embedder, scoreThreshold: scoreThreshold, logger: logger}
}

// Search dispatches to the strategy named by opts.Type; an unset or
// unrecognized Type runs semantic search.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, corerrors.Validation(corerrors.CodeEmptyQuery, "query must not be empty", nil)
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	switch opts.Type {
	case TypeKeyword:
		return e.keywordSearch(ctx, query, topK)
	case TypeHybrid:
		return e.hybridSearch(ctx, query, topK)
	default:
		return e.semanticSearch(ctx, query, topK)
	}
}

// semanticSearch embeds the query, searches the vector index, and filters
// by the configured cosine-similarity floor.
func (e *Engine) semanticSearch(ctx context.Context, query string, topK int) ([]Result, error) {
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, corerrors.Search(corerrors.CodeSearchPipeline, "embed query", err)
	}

	hits, err := e.store.SemanticSearch(ctx, vec, topK)
	if err != nil {
		return nil, corerrors.Search(corerrors.CodeSearchPipeline, "semantic search", err)
	}

	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		if float64(h.Score) < e.scoreThreshold {
			continue
		}
		out = append(out, Result{Record: h.Record, Score: float64(h.Score)})
	}
	return out, nil
}

// keywordSearch detects the query's language, segments it with the
// matching tokenizer when non-whitespace-segmented, and runs FTS on the
// appropriate column. The query is lowercased before the FTS call either way.
func (e *Engine) keywordSearch(ctx context.Context, query string, topK int) ([]Result, error) {
	column, ftsQuery := e.ftsTarget(query)

	hits, err := e.store.FulltextSearch(ctx, column, ftsQuery, topK)
	if err != nil {
		return nil, corerrors.Search(corerrors.CodeSearchPipeline, "keyword search", err)
	}

	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		out = append(out, Result{Record: h.Record, Score: h.Score})
	}
	return out, nil
}

// ftsTarget returns the column to query and the (lowercased, possibly
// tokenized) query string to run against it.
func (e *Engine) ftsTarget(query string) (column, ftsQuery string) {
	lowered := strings.ToLower(query)
	tag, _ := lang.Detect(query)
	if lang.NonWhitespaceSegmented(tag) {
		return store.ColumnTokenizedText, lang.TokenizedSurfaceForm(tag, lowered)
	}
	return store.ColumnText, lowered
}

// hybridSearch runs semantic and keyword search concurrently for 2*topK
// candidates each, then fuses them by Reciprocal Rank Fusion. A failed
// keyword branch falls back to semantic-only results and a failed semantic
// branch to keyword-only results, logged rather than propagated; only when
// both branches fail is an error returned.
func (e *Engine) hybridSearch(ctx context.Context, query string, topK int) ([]Result, error) {
	fetch := 2 * topK

	var semResults, kwResults []Result
	var semErr, kwErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		semResults, semErr = e.semanticSearch(gctx, query, fetch)
		return nil
	})
	g.Go(func() error {
		kwResults, kwErr = e.keywordSearch(gctx, query, fetch)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if semErr != nil && kwErr != nil {
		return nil, corerrors.Search(corerrors.CodeSearchPipeline, "both hybrid branches failed", semErr)
	}
	if kwErr != nil {
		e.logger.Warn("hybrid search keyword branch failed, falling back to semantic-only", "error", kwErr)
		return truncate(semResults, topK), nil
	}
	if semErr != nil {
		e.logger.Warn("hybrid search semantic branch failed, falling back to keyword-only", "error", semErr)
		return truncate(kwResults, topK), nil
	}

	fused := RRFFusion(semResults, kwResults, RRFConstant)
	return truncate(fused, topK), nil
}

func truncate(r []Result, topK int) []Result {
	if len(r) <= topK {
		return r
	}
	return r[:topK]
}
