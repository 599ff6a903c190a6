package retrieval

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"vidsage-ai/internal/contextutil"
	"vidsage-ai/internal/vectorstore"
)

// Retriever issues one similarity search per query variant and merges the
// results into a single ranked, deduplicated chunk list.
type Retriever struct {
	embedder   Embedder
	store      vectorstore.VectorStore
	collection string
}

// NewRetriever creates a new Retriever.
func NewRetriever(embedder Embedder, store vectorstore.VectorStore, collection string) *Retriever {
	return &Retriever{
		embedder:   embedder,
		store:      store,
		collection: collection,
	}
}

// mergedChunk tracks the best evidence for one chunk across query variants.
type mergedChunk struct {
	result       vectorstore.SearchResult
	score        float32
	firstVariant int // index of the query variant that found the chunk first
	firstRank    int // rank within that variant's result list
}

// Retrieve searches the index once per query variant, restricted to the given
// video ids, and merges by chunk id keeping the maximum score observed across
// variants. A chunk surfaced by several phrasings is stronger evidence, not
// averaged-down evidence. Ties are broken by the (variant, rank) position of
// whichever variant found the chunk first, so results are deterministic.
func (r *Retriever) Retrieve(ctx context.Context, queries []string, videoIDs []string, topK int) ([]RetrievedChunk, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries provided")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be greater than 0")
	}

	vectors, err := r.embedder.EmbedTexts(ctx, queries)
	if err != nil {
		return nil, fmt.Errorf("failed to embed queries: %w", err)
	}
	if len(vectors) != len(queries) {
		return nil, fmt.Errorf("expected %d query embeddings, got %d", len(queries), len(vectors))
	}

	// One search per variant, in parallel. Failed variants are skipped; the
	// search only fails outright when every variant fails.
	variantResults := make([][]vectorstore.SearchResult, len(queries))
	variantErrs := make([]error, len(queries))

	var g errgroup.Group
	for i := range queries {
		g.Go(func() error {
			results, err := r.store.Search(ctx, r.collection, vectors[i], topK, videoIDs)
			if err != nil {
				variantErrs[i] = err
				return nil
			}
			variantResults[i] = results
			return nil
		})
	}
	_ = g.Wait()

	merged := make(map[string]*mergedChunk)
	failures := 0
	for variantIdx, results := range variantResults {
		if variantErrs[variantIdx] != nil {
			failures++
			logger.WarnContext(ctx, "variant search failed, skipping",
				"variant", variantIdx, "query", queries[variantIdx], "error", variantErrs[variantIdx])
			continue
		}
		for rank, result := range results {
			existing, ok := merged[result.PointID]
			if !ok {
				merged[result.PointID] = &mergedChunk{
					result:       result,
					score:        result.Score,
					firstVariant: variantIdx,
					firstRank:    rank,
				}
				continue
			}
			if result.Score > existing.score {
				existing.score = result.Score
			}
		}
	}

	if failures == len(queries) {
		return nil, fmt.Errorf("all variant searches failed: %w", firstError(variantErrs))
	}

	ordered := make([]*mergedChunk, 0, len(merged))
	for _, chunk := range merged {
		ordered = append(ordered, chunk)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].score != ordered[j].score {
			return ordered[i].score > ordered[j].score
		}
		if ordered[i].firstVariant != ordered[j].firstVariant {
			return ordered[i].firstVariant < ordered[j].firstVariant
		}
		return ordered[i].firstRank < ordered[j].firstRank
	})

	if len(ordered) > topK {
		ordered = ordered[:topK]
	}

	chunks := make([]RetrievedChunk, 0, len(ordered))
	for i, item := range ordered {
		chunks = append(chunks, toRetrievedChunk(item.result, item.score, i+1))
	}

	logger.InfoContext(ctx, "multi-query retrieval completed",
		"variants", len(queries), "failed_variants", failures, "merged", len(merged), "returned", len(chunks))
	return chunks, nil
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// toRetrievedChunk lifts a raw search result into a RetrievedChunk, pulling
// text and timing out of the index payload.
func toRetrievedChunk(result vectorstore.SearchResult, score float32, rank int) RetrievedChunk {
	chunk := RetrievedChunk{
		ChunkID: result.PointID,
		VideoID: result.VideoID,
		Score:   score,
		Rank:    rank,
	}
	if text, ok := result.Meta["text"].(string); ok {
		chunk.Text = text
	}
	if start, ok := result.Meta["start_seconds"].(float64); ok {
		chunk.StartSeconds = start
	}
	if end, ok := result.Meta["end_seconds"].(float64); ok {
		chunk.EndSeconds = end
	}
	if title, ok := result.Meta["chapter_title"].(string); ok {
		chunk.ChapterTitle = title
	}
	return chunk
}
