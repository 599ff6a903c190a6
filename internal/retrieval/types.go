package retrieval

import (
	"context"

	"vidsage-ai/internal/llm"
)

// Turn is one prior message in the conversation, used for anaphora resolution.
type Turn struct {
	Role    string
	Content string
}

// RetrievedChunk is a transient retrieval result. It carries the chunk text
// and timing returned by the vector index payload so downstream stages
// (reranking, prompt assembly) need no extra database round trip.
type RetrievedChunk struct {
	ChunkID      string
	VideoID      string
	Score        float32
	Rank         int // 1-based position in the current ordering
	Text         string
	StartSeconds float64
	EndSeconds   float64
	ChapterTitle string
}

// CompletionClient is the completion capability the pipeline consumes.
// Defined here from the consumer's perspective; *llm.Client satisfies it.
type CompletionClient interface {
	Complete(ctx context.Context, messages []llm.Message, params llm.ChatParams) (llm.Completion, error)
}

// Embedder turns query text into vectors for the similarity search.
// *llm.EmbeddingsClient satisfies it.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
