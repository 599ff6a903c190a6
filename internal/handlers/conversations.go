package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"vidsage-ai/internal/contextutil"
	"vidsage-ai/internal/storage"
)

// ConversationsHandler handles HTTP requests for conversation lifecycle.
type ConversationsHandler struct {
	conversations storage.ConversationStore
}

// NewConversationsHandler creates a new ConversationsHandler.
func NewConversationsHandler(conversations storage.ConversationStore) *ConversationsHandler {
	return &ConversationsHandler{conversations: conversations}
}

// CreateConversationRequest represents the HTTP request payload for creating
// a conversation.
type CreateConversationRequest struct {
	UserID   string   `json:"user_id"`
	Title    string   `json:"title"`
	VideoIDs []string `json:"video_ids"`
}

// ConversationResponse represents a conversation in HTTP responses.
type ConversationResponse struct {
	ID       string   `json:"id"`
	UserID   string   `json:"user_id"`
	Title    string   `json:"title"`
	VideoIDs []string `json:"video_ids"`
}

// Create handles POST /api/conversations.
func (h *ConversationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(ctx, w, http.StatusBadRequest, "user_id cannot be empty")
		return
	}

	conversation := &storage.Conversation{
		ID:     uuid.New().String(),
		UserID: req.UserID,
		Title:  req.Title,
	}
	if err := h.conversations.Create(ctx, conversation); err != nil {
		logger.ErrorContext(ctx, "failed to create conversation", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to create conversation")
		return
	}
	if len(req.VideoIDs) > 0 {
		if err := h.conversations.SetVideos(ctx, conversation.ID, req.VideoIDs); err != nil {
			logger.ErrorContext(ctx, "failed to set conversation videos", "error", err)
			writeError(ctx, w, http.StatusInternalServerError, "Failed to set conversation videos")
			return
		}
	}

	writeJSON(ctx, w, http.StatusCreated, ConversationResponse{
		ID:       conversation.ID,
		UserID:   conversation.UserID,
		Title:    conversation.Title,
		VideoIDs: req.VideoIDs,
	})
}

// SetVideosRequest represents the HTTP request payload for replacing a
// conversation's video selection.
type SetVideosRequest struct {
	VideoIDs []string `json:"video_ids"`
}

// SetVideos handles PUT /api/conversations/{conversationID}/videos.
func (h *ConversationsHandler) SetVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	conversationID := chi.URLParam(r, "conversationID")

	var req SetVideosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if _, err := h.conversations.GetByID(ctx, conversationID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(ctx, w, http.StatusNotFound, "Conversation not found")
			return
		}
		logger.ErrorContext(ctx, "failed to load conversation", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to load conversation")
		return
	}

	if err := h.conversations.SetVideos(ctx, conversationID, req.VideoIDs); err != nil {
		logger.ErrorContext(ctx, "failed to set conversation videos", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to set conversation videos")
		return
	}

	writeJSON(ctx, w, http.StatusOK, SetVideosRequest{VideoIDs: req.VideoIDs})
}
