package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"vidsage-ai/internal/contextutil"
	"vidsage-ai/internal/storage"
	"vidsage-ai/internal/vectorstore"
)

// Embedder produces fixed-length vectors for a batch of texts.
// *llm.EmbeddingsClient satisfies it.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// TranscriptChunk is one pre-chunked transcript excerpt handed to ingestion.
// Chunking itself happens upstream; this pipeline only stores and embeds.
type TranscriptChunk struct {
	ChunkIndex    int
	StartSeconds  float64
	EndSeconds    float64
	ChapterTitle  string
	Keywords      []string
	Text          string
	EmbeddingText string
}

// Pipeline stores a video's transcript chunks in SQLite and its embeddings
// in the vector index.
type Pipeline struct {
	videos      storage.VideoStore
	chunks      storage.ChunkStore
	embedder    Embedder
	vectorStore vectorstore.VectorStore
	collection  string
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	videos storage.VideoStore,
	chunks storage.ChunkStore,
	embedder Embedder,
	vectorStore vectorstore.VectorStore,
	collection string,
) *Pipeline {
	return &Pipeline{
		videos:      videos,
		chunks:      chunks,
		embedder:    embedder,
		vectorStore: vectorStore,
		collection:  collection,
	}
}

// IngestVideo registers the video and replaces its stored chunks and vectors.
// Re-ingesting a video drops the previous chunk set first, so the operation
// is idempotent per video. Returns the number of chunks stored.
func (p *Pipeline) IngestVideo(ctx context.Context, videoID, title string, transcript []TranscriptChunk) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if videoID == "" {
		return 0, fmt.Errorf("video id is required")
	}
	if len(transcript) == 0 {
		return 0, fmt.Errorf("transcript has no chunks")
	}

	if err := p.videos.Upsert(ctx, &storage.Video{ID: videoID, Title: title}); err != nil {
		return 0, fmt.Errorf("failed to register video: %w", err)
	}

	// Drop the previous chunk set, vectors first.
	existing, err := p.chunks.ListByVideos(ctx, []string{videoID})
	if err != nil {
		return 0, fmt.Errorf("failed to list existing chunks: %w", err)
	}
	if len(existing) > 0 {
		oldIDs := make([]string, len(existing))
		for i, chunk := range existing {
			oldIDs[i] = chunk.ID
		}
		if err := p.vectorStore.Delete(ctx, p.collection, oldIDs); err != nil {
			logger.WarnContext(ctx, "failed to delete old vectors, new points will overwrite by id where possible",
				"video_id", videoID, "count", len(oldIDs), "error", err)
		}
		if err := p.chunks.DeleteByVideo(ctx, videoID); err != nil {
			return 0, fmt.Errorf("failed to delete old chunks: %w", err)
		}
	}

	texts := make([]string, len(transcript))
	for i, chunk := range transcript {
		if chunk.EmbeddingText != "" {
			texts[i] = chunk.EmbeddingText
		} else {
			texts[i] = chunk.Text
		}
	}
	embeddings, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed transcript: %w", err)
	}
	if len(embeddings) != len(transcript) {
		return 0, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(transcript), len(embeddings))
	}

	points := make([]vectorstore.Point, len(transcript))
	for i, chunk := range transcript {
		chunkID := uuid.New().String()
		record := &storage.Chunk{
			ID:            chunkID,
			VideoID:       videoID,
			ChunkIndex:    chunk.ChunkIndex,
			StartSeconds:  chunk.StartSeconds,
			EndSeconds:    chunk.EndSeconds,
			ChapterTitle:  chunk.ChapterTitle,
			Keywords:      chunk.Keywords,
			Text:          chunk.Text,
			EmbeddingText: texts[i],
		}
		if err := p.chunks.Insert(ctx, record); err != nil {
			return 0, fmt.Errorf("failed to store chunk %d: %w", chunk.ChunkIndex, err)
		}

		points[i] = vectorstore.Point{
			ID:  chunkID,
			Vec: embeddings[i],
			Meta: map[string]any{
				"video_id":      videoID,
				"chunk_index":   chunk.ChunkIndex,
				"start_seconds": chunk.StartSeconds,
				"end_seconds":   chunk.EndSeconds,
				"chapter_title": chunk.ChapterTitle,
				"text":          chunk.Text,
			},
		}
	}

	if err := p.vectorStore.Upsert(ctx, p.collection, points); err != nil {
		return 0, fmt.Errorf("failed to index vectors: %w", err)
	}

	logger.InfoContext(ctx, "video ingested", "video_id", videoID, "chunks", len(points))
	return len(points), nil
}
