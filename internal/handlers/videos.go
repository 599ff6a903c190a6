package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vidsage-ai/internal/contextutil"
	"vidsage-ai/internal/ingest"
	"vidsage-ai/internal/storage"
)

// VideoIngestor stores a video's transcript chunks and embeddings.
// *ingest.Pipeline satisfies it.
type VideoIngestor interface {
	IngestVideo(ctx context.Context, videoID, title string, transcript []ingest.TranscriptChunk) (int, error)
}

// VideosHandler handles HTTP requests for the video catalog.
type VideosHandler struct {
	ingestor VideoIngestor
	videos   storage.VideoStore
}

// NewVideosHandler creates a new VideosHandler.
func NewVideosHandler(ingestor VideoIngestor, videos storage.VideoStore) *VideosHandler {
	return &VideosHandler{ingestor: ingestor, videos: videos}
}

// TranscriptChunkPayload is one pre-chunked transcript excerpt in the ingest
// request.
type TranscriptChunkPayload struct {
	ChunkIndex    int      `json:"chunk_index"`
	StartSeconds  float64  `json:"start_seconds"`
	EndSeconds    float64  `json:"end_seconds"`
	ChapterTitle  string   `json:"chapter_title,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	Text          string   `json:"text"`
	EmbeddingText string   `json:"embedding_text,omitempty"`
}

// IngestRequest represents the HTTP request payload for video ingestion.
type IngestRequest struct {
	Title  string                   `json:"title"`
	Chunks []TranscriptChunkPayload `json:"chunks"`
}

// IngestResponse represents the HTTP response payload for video ingestion.
type IngestResponse struct {
	VideoID     string `json:"video_id"`
	ChunksCount int    `json:"chunks_count"`
}

// VideoResponse represents a catalog video in HTTP responses.
type VideoResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Ingest handles PUT /api/videos/{videoID}.
func (h *VideosHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Chunks) == 0 {
		writeError(ctx, w, http.StatusBadRequest, "chunks cannot be empty")
		return
	}

	transcript := make([]ingest.TranscriptChunk, len(req.Chunks))
	for i, chunk := range req.Chunks {
		transcript[i] = ingest.TranscriptChunk{
			ChunkIndex:    chunk.ChunkIndex,
			StartSeconds:  chunk.StartSeconds,
			EndSeconds:    chunk.EndSeconds,
			ChapterTitle:  chunk.ChapterTitle,
			Keywords:      chunk.Keywords,
			Text:          chunk.Text,
			EmbeddingText: chunk.EmbeddingText,
		}
	}

	videoID := chi.URLParam(r, "videoID")
	count, err := h.ingestor.IngestVideo(ctx, videoID, req.Title, transcript)
	if err != nil {
		logger.ErrorContext(ctx, "video ingestion failed", "video_id", videoID, "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to ingest video")
		return
	}

	writeJSON(ctx, w, http.StatusOK, IngestResponse{VideoID: videoID, ChunksCount: count})
}

// List handles GET /api/videos.
func (h *VideosHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	videos, err := h.videos.ListAll(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list videos", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to list videos")
		return
	}

	resp := make([]VideoResponse, 0, len(videos))
	for _, video := range videos {
		resp = append(resp, VideoResponse{ID: video.ID, Title: video.Title})
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}
