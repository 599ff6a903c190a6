package retrieval

import (
	"context"
	"fmt"

	"vidsage-ai/internal/llm"
	"vidsage-ai/internal/vectorstore"
)

// fakeCompletionClient returns a canned completion or error and records calls.
type fakeCompletionClient struct {
	content string
	err     error
	calls   int
}

func (f *fakeCompletionClient) Complete(ctx context.Context, messages []llm.Message, params llm.ChatParams) (llm.Completion, error) {
	f.calls++
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	return llm.Completion{Content: f.content}, nil
}

// fakeEmbedder returns a distinct unit vector per input text.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i + 1), 0, 0}
	}
	return vectors, nil
}

// fakeVectorStore serves canned results per query variant. Searches run in
// parallel so arrival order is not deterministic; results are keyed by the
// first component of the query vector, which fakeEmbedder sets to the
// variant index + 1.
type fakeVectorStore struct {
	resultsByVariant map[int][]vectorstore.SearchResult
	errsByVariant    map[int]error
}

func (f *fakeVectorStore) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	return nil
}

func (f *fakeVectorStore) Delete(ctx context.Context, collection string, ids []string) error {
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, collection string, query []float32, k int, videoIDs []string) ([]vectorstore.SearchResult, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}
	variant := int(query[0]) - 1
	if err, ok := f.errsByVariant[variant]; ok {
		return nil, err
	}
	return f.resultsByVariant[variant], nil
}

func searchHit(id, videoID string, score float32, text string) vectorstore.SearchResult {
	return vectorstore.SearchResult{
		PointID: id,
		VideoID: videoID,
		Score:   score,
		Meta: map[string]any{
			"text":          text,
			"video_id":      videoID,
			"start_seconds": 10.0,
			"end_seconds":   20.0,
			"chapter_title": "Intro",
		},
	}
}

// fakeModelLoader records load attempts and optionally fails them.
type fakeModelLoader struct {
	err   error
	calls int
}

func (f *fakeModelLoader) LoadModel(ctx context.Context, modelName string, extraArgs []string) error {
	f.calls++
	return f.err
}

// fakeRerankScorer returns canned scores or an error.
type fakeRerankScorer struct {
	scores []float32
	err    error
	calls  int
}

func (f *fakeRerankScorer) Rerank(ctx context.Context, query string, documents []string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}
