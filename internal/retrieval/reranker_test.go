package retrieval

import (
	"context"
	"errors"
	"testing"
)

func rerankInput(n int) []RetrievedChunk {
	chunks := make([]RetrievedChunk, n)
	for i := range chunks {
		chunks[i] = RetrievedChunk{
			ChunkID: string(rune('a' + i)),
			Score:   float32(n-i) / float32(n+1),
			Rank:    i + 1,
			Text:    "chunk " + string(rune('a'+i)),
		}
	}
	return chunks
}

func TestRerankDisabledPreservesOrder(t *testing.T) {
	loader := &fakeModelLoader{}
	scorer := &fakeRerankScorer{}
	reranker := NewReranker(loader, scorer, "cross-encoder", false)

	got := reranker.Rerank(context.Background(), "query", rerankInput(4), 3)

	if len(got) != 3 {
		t.Fatalf("got %d chunks, want min(topK, len) = 3", len(got))
	}
	wantOrder := []string{"a", "b", "c"}
	for i, want := range wantOrder {
		if got[i].ChunkID != want {
			t.Errorf("got[%d] = %q, want %q", i, got[i].ChunkID, want)
		}
		if got[i].Rank != i+1 {
			t.Errorf("got[%d].Rank = %d, want %d", i, got[i].Rank, i+1)
		}
	}
	if loader.calls != 0 {
		t.Errorf("disabled reranker attempted %d model loads", loader.calls)
	}
	if scorer.calls != 0 {
		t.Errorf("disabled reranker made %d scoring calls", scorer.calls)
	}
}

func TestRerankLoadFailureIsPassthroughAndCached(t *testing.T) {
	loader := &fakeModelLoader{err: errors.New("model not found")}
	scorer := &fakeRerankScorer{}
	reranker := NewReranker(loader, scorer, "cross-encoder", true)

	for call := 0; call < 3; call++ {
		got := reranker.Rerank(context.Background(), "query", rerankInput(2), 5)
		if len(got) != 2 {
			t.Fatalf("call %d: got %d chunks, want 2", call, len(got))
		}
		if got[0].ChunkID != "a" || got[1].ChunkID != "b" {
			t.Fatalf("call %d: order changed despite failed load: %v", call, got)
		}
	}

	if loader.calls != 1 {
		t.Errorf("load attempted %d times, want exactly 1 (failure cached)", loader.calls)
	}
	if scorer.calls != 0 {
		t.Errorf("scorer called %d times after failed load", scorer.calls)
	}
}

func TestRerankReordersByScore(t *testing.T) {
	loader := &fakeModelLoader{}
	// Scores positionally aligned with the input: "c" best, then "a", then "b".
	scorer := &fakeRerankScorer{scores: []float32{0.5, 0.1, 0.9}}
	reranker := NewReranker(loader, scorer, "cross-encoder", true)

	got := reranker.Rerank(context.Background(), "query", rerankInput(3), 0)

	wantOrder := []string{"c", "a", "b"}
	for i, want := range wantOrder {
		if got[i].ChunkID != want {
			t.Errorf("got[%d] = %q, want %q", i, got[i].ChunkID, want)
		}
		if got[i].Rank != i+1 {
			t.Errorf("got[%d].Rank = %d, want %d", i, got[i].Rank, i+1)
		}
	}
	if got[0].Score != 0.9 {
		t.Errorf("top score = %f, want the cross-encoder score 0.9", got[0].Score)
	}
	if loader.calls != 1 {
		t.Errorf("load attempted %d times, want 1", loader.calls)
	}
}

func TestRerankLoadsModelOnce(t *testing.T) {
	loader := &fakeModelLoader{}
	scorer := &fakeRerankScorer{scores: []float32{0.2, 0.8}}
	reranker := NewReranker(loader, scorer, "cross-encoder", true)

	for call := 0; call < 3; call++ {
		reranker.Rerank(context.Background(), "query", rerankInput(2), 0)
	}

	if loader.calls != 1 {
		t.Errorf("load attempted %d times, want exactly 1", loader.calls)
	}
	if scorer.calls != 3 {
		t.Errorf("scorer called %d times, want 3", scorer.calls)
	}
}

func TestRerankScorerErrorFallsBack(t *testing.T) {
	loader := &fakeModelLoader{}
	scorer := &fakeRerankScorer{err: errors.New("rerank endpoint unavailable")}
	reranker := NewReranker(loader, scorer, "cross-encoder", true)

	got := reranker.Rerank(context.Background(), "query", rerankInput(3), 2)

	if len(got) != 2 {
		t.Fatalf("got %d chunks, want 2", len(got))
	}
	if got[0].ChunkID != "a" || got[1].ChunkID != "b" {
		t.Errorf("fallback should keep retrieval order, got %v", got)
	}
}

func TestRerankScoreCountMismatchFallsBack(t *testing.T) {
	loader := &fakeModelLoader{}
	scorer := &fakeRerankScorer{scores: []float32{0.9}}
	reranker := NewReranker(loader, scorer, "cross-encoder", true)

	got := reranker.Rerank(context.Background(), "query", rerankInput(3), 0)

	wantOrder := []string{"a", "b", "c"}
	for i, want := range wantOrder {
		if got[i].ChunkID != want {
			t.Errorf("got[%d] = %q, want %q", i, got[i].ChunkID, want)
		}
	}
}

func TestRerankEmptyInput(t *testing.T) {
	loader := &fakeModelLoader{}
	reranker := NewReranker(loader, &fakeRerankScorer{}, "cross-encoder", true)

	if got := reranker.Rerank(context.Background(), "query", nil, 5); len(got) != 0 {
		t.Errorf("got %d chunks for empty input", len(got))
	}
	if loader.calls != 0 {
		t.Errorf("empty input should not trigger a model load, got %d", loader.calls)
	}
}
