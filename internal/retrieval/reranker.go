package retrieval

import (
	"context"
	"sort"
	"sync"

	"vidsage-ai/internal/contextutil"
)

// ModelLoader loads a model into the inference server. *llm.ModelLoader
// satisfies it.
type ModelLoader interface {
	LoadModel(ctx context.Context, modelName string, extraArgs []string) error
}

// RerankScorer scores (query, document) pairs with a cross-encoder.
// *llm.RerankClient satisfies it.
type RerankScorer interface {
	Rerank(ctx context.Context, query string, documents []string) ([]float32, error)
}

// load states for the cross-encoder model.
const (
	loadStateUnloaded = iota
	loadStateLoaded
	loadStateFailed
)

// Reranker reorders retrieved chunks by cross-encoder relevance. The model is
// loaded lazily, at most once per process; a failed load is cached and turns
// the reranker into a permanent pass-through. No failure of any kind escapes
// Rerank: the worst case is the original ordering, truncated.
type Reranker struct {
	loader  ModelLoader
	scorer  RerankScorer
	model   string
	enabled bool

	loadOnce  sync.Once
	loadState int
}

// NewReranker creates a new Reranker. The model is not loaded until first use.
func NewReranker(loader ModelLoader, scorer RerankScorer, model string, enabled bool) *Reranker {
	return &Reranker{
		loader:  loader,
		scorer:  scorer,
		model:   model,
		enabled: enabled,
	}
}

// ensureLoaded attempts the model load exactly once, even under concurrent
// first use. The resulting state is read-only afterwards.
func (rr *Reranker) ensureLoaded(ctx context.Context) int {
	rr.loadOnce.Do(func() {
		logger := contextutil.LoggerFromContext(ctx)
		// Detach from the caller's deadline: the first request should not
		// poison the process-wide load state just because it was abandoned.
		loadCtx := context.WithoutCancel(ctx)
		if err := rr.loader.LoadModel(loadCtx, rr.model, nil); err != nil {
			rr.loadState = loadStateFailed
			logger.ErrorContext(ctx, "cross-encoder load failed, reranking disabled for this process",
				"model", rr.model, "error", err)
			return
		}
		rr.loadState = loadStateLoaded
		logger.InfoContext(ctx, "cross-encoder loaded", "model", rr.model)
	})
	return rr.loadState
}

// Rerank reorders chunks by cross-encoder score, descending, truncated to
// topK when topK > 0. Disabled, unloadable, or failing scoring all degrade to
// the input ordering (still truncated).
func (rr *Reranker) Rerank(ctx context.Context, query string, chunks []RetrievedChunk, topK int) []RetrievedChunk {
	logger := contextutil.LoggerFromContext(ctx)

	if len(chunks) == 0 {
		return chunks
	}
	if !rr.enabled || rr.ensureLoaded(ctx) != loadStateLoaded {
		return truncateAndRank(chunks, topK)
	}

	documents := make([]string, len(chunks))
	for i, chunk := range chunks {
		documents[i] = chunk.Text
	}

	scores, err := rr.scorer.Rerank(ctx, query, documents)
	if err != nil || len(scores) != len(chunks) {
		logger.WarnContext(ctx, "reranking failed, keeping retrieval order",
			"chunks", len(chunks), "error", err)
		return truncateAndRank(chunks, topK)
	}

	reranked := make([]RetrievedChunk, len(chunks))
	copy(reranked, chunks)
	for i := range reranked {
		reranked[i].Score = scores[i]
	}
	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})

	return truncateAndRank(reranked, topK)
}

// truncateAndRank copies the slice, truncates it to topK when topK > 0, and
// renumbers ranks from 1.
func truncateAndRank(chunks []RetrievedChunk, topK int) []RetrievedChunk {
	n := len(chunks)
	if topK > 0 && topK < n {
		n = topK
	}
	out := make([]RetrievedChunk, n)
	copy(out, chunks[:n])
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
