package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vidsage-ai/internal/contextutil"
	"vidsage-ai/internal/service"
)

// ChatHandler handles HTTP requests for chat turns.
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// ChatRequest represents the HTTP request payload for one chat turn.
type ChatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// ChunkReference is one transcript location backing the answer.
type ChunkReference struct {
	ChunkID      string  `json:"chunk_id"`
	VideoID      string  `json:"video_id"`
	Score        float32 `json:"score"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	ChapterTitle string  `json:"chapter_title,omitempty"`
}

// ChatResponse represents the HTTP response payload for one chat turn.
type ChatResponse struct {
	Answer      string           `json:"answer"`
	TurnIndex   int              `json:"turn_index"`
	Chunks      []ChunkReference `json:"chunks"`
	TotalTokens int              `json:"total_tokens"`
}

// Chat handles POST /api/conversations/{conversationID}/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	turn, err := h.chatService.ProcessTurn(ctx, service.TurnRequest{
		ConversationID: chi.URLParam(r, "conversationID"),
		UserID:         req.UserID,
		Message:        req.Message,
	})
	if err != nil {
		var validationErr *service.ValidationError
		switch {
		case errors.As(err, &validationErr):
			writeError(ctx, w, http.StatusBadRequest, validationErr.Error())
		case errors.Is(err, service.ErrNotFound):
			writeError(ctx, w, http.StatusNotFound, "Conversation not found")
		default:
			logger.ErrorContext(ctx, "failed to process chat turn", "error", err)
			writeError(ctx, w, http.StatusInternalServerError, "Failed to process chat request")
		}
		return
	}

	resp := ChatResponse{
		Answer:      turn.Answer,
		TurnIndex:   turn.TurnIndex,
		Chunks:      make([]ChunkReference, 0, len(turn.Chunks)),
		TotalTokens: turn.Usage.TotalTokens,
	}
	for _, chunk := range turn.Chunks {
		resp.Chunks = append(resp.Chunks, ChunkReference{
			ChunkID:      chunk.ChunkID,
			VideoID:      chunk.VideoID,
			Score:        chunk.Score,
			StartSeconds: chunk.StartSeconds,
			EndSeconds:   chunk.EndSeconds,
			ChapterTitle: chunk.ChapterTitle,
		})
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}
