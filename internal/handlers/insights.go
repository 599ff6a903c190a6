package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vidsage-ai/internal/contextutil"
	"vidsage-ai/internal/insights"
	"vidsage-ai/internal/storage"
)

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_insight_service.go -package=mocks vidsage-ai/internal/handlers InsightService

// InsightService is the insight capability the handler needs.
// *insights.Service satisfies it.
type InsightService interface {
	GetOrGenerate(ctx context.Context, conversationID, userID string, videoIDs []string, rootLabel string, forceRegenerate bool) (*storage.Insight, bool, error)
	GetTopicChunks(ctx context.Context, conversationID, topicID string) ([]string, error)
}

// InsightsHandler handles HTTP requests for conversation insights.
type InsightsHandler struct {
	insightService InsightService
}

// NewInsightsHandler creates a new InsightsHandler.
func NewInsightsHandler(insightService InsightService) *InsightsHandler {
	return &InsightsHandler{insightService: insightService}
}

// InsightsRequest represents the HTTP request payload for insight generation.
type InsightsRequest struct {
	UserID          string   `json:"user_id"`
	VideoIDs        []string `json:"video_ids"`
	RootLabel       string   `json:"root_label"`
	ForceRegenerate bool     `json:"force_regenerate"`
}

// InsightsResponse represents the HTTP response payload for an insight.
type InsightsResponse struct {
	ID                    string          `json:"id"`
	ConversationID        string          `json:"conversation_id"`
	VideoIDs              []string        `json:"video_ids"`
	Graph                 json.RawMessage `json:"graph"`
	TopicChunks           json.RawMessage `json:"topic_chunks"`
	TopicsCount           int             `json:"topics_count"`
	TotalChunksAnalyzed   int             `json:"total_chunks_analyzed"`
	GenerationTimeSeconds float64         `json:"generation_time_seconds"`
	WasCacheHit           bool            `json:"was_cache_hit"`
}

// TopicChunksResponse represents the HTTP response payload for a topic's chunks.
type TopicChunksResponse struct {
	TopicID  string   `json:"topic_id"`
	ChunkIDs []string `json:"chunk_ids"`
}

// Generate handles POST /api/conversations/{conversationID}/insights.
func (h *InsightsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req InsightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.VideoIDs) == 0 {
		writeError(ctx, w, http.StatusBadRequest, "video_ids cannot be empty")
		return
	}

	conversationID := chi.URLParam(r, "conversationID")
	insight, wasCacheHit, err := h.insightService.GetOrGenerate(ctx, conversationID, req.UserID, req.VideoIDs, req.RootLabel, req.ForceRegenerate)
	if err != nil {
		if errors.Is(err, insights.ErrNoChunks) {
			writeError(ctx, w, http.StatusUnprocessableEntity, "No chunks available for the selected videos")
			return
		}
		logger.ErrorContext(ctx, "insight generation failed", "conversation_id", conversationID, "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to generate insights")
		return
	}

	writeJSON(ctx, w, http.StatusOK, InsightsResponse{
		ID:                    insight.ID,
		ConversationID:        insight.ConversationID,
		VideoIDs:              insight.VideoIDs,
		Graph:                 json.RawMessage(insight.GraphData),
		TopicChunks:           json.RawMessage(insight.TopicChunks),
		TopicsCount:           insight.TopicsCount,
		TotalChunksAnalyzed:   insight.TotalChunksAnalyzed,
		GenerationTimeSeconds: insight.GenerationTimeSeconds,
		WasCacheHit:           wasCacheHit,
	})
}

// TopicChunks handles GET /api/conversations/{conversationID}/insights/topics/{topicID}/chunks.
func (h *InsightsHandler) TopicChunks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	conversationID := chi.URLParam(r, "conversationID")
	topicID := chi.URLParam(r, "topicID")

	chunkIDs, err := h.insightService.GetTopicChunks(ctx, conversationID, topicID)
	if err != nil {
		if errors.Is(err, insights.ErrTopicNotFound) {
			writeError(ctx, w, http.StatusNotFound, "Topic not found")
			return
		}
		logger.ErrorContext(ctx, "topic chunk lookup failed", "conversation_id", conversationID, "topic_id", topicID, "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to look up topic chunks")
		return
	}

	writeJSON(ctx, w, http.StatusOK, TopicChunksResponse{TopicID: topicID, ChunkIDs: chunkIDs})
}
