package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"vidsage-ai/internal/llm"
	"vidsage-ai/internal/service"
)

type fakeChatService struct {
	resp   service.TurnResponse
	err    error
	gotReq service.TurnRequest
}

func (f *fakeChatService) ProcessTurn(ctx context.Context, req service.TurnRequest) (service.TurnResponse, error) {
	f.gotReq = req
	if f.err != nil {
		return service.TurnResponse{}, f.err
	}
	return f.resp, nil
}

func chatRequest(t *testing.T, handler *ChatHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	router.Post("/api/conversations/{conversationID}/chat", handler.Chat)

	req := httptest.NewRequest(http.MethodPost, "/api/conversations/conv-1/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestChatHandler(t *testing.T) {
	svc := &fakeChatService{
		resp: service.TurnResponse{
			Answer:    "The pyramid was built from limestone.",
			TurnIndex: 2,
			Chunks: []service.ChunkReference{
				{ChunkID: "c1", VideoID: "vid-1", Score: 0.9, StartSeconds: 30, EndSeconds: 60},
			},
			Usage: llm.Usage{TotalTokens: 42},
		},
	}
	handler := NewChatHandler(svc)

	rec := chatRequest(t, handler, `{"user_id":"user-1","message":"What was it built from?"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.gotReq.ConversationID != "conv-1" {
		t.Errorf("ConversationID = %q, want path param", svc.gotReq.ConversationID)
	}
	if svc.gotReq.Message != "What was it built from?" {
		t.Errorf("Message = %q", svc.gotReq.Message)
	}

	var resp ChatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Answer != "The pyramid was built from limestone." {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if resp.TurnIndex != 2 || resp.TotalTokens != 42 {
		t.Errorf("TurnIndex = %d, TotalTokens = %d", resp.TurnIndex, resp.TotalTokens)
	}
	if len(resp.Chunks) != 1 || resp.Chunks[0].ChunkID != "c1" {
		t.Errorf("Chunks = %v", resp.Chunks)
	}
}

func TestChatHandlerErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
	}{
		{
			name:       "invalid body",
			body:       "{not json",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "validation error",
			body:       `{"message":""}`,
			serviceErr: &service.ValidationError{Field: "message", Message: "cannot be empty"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "conversation not found",
			body:       `{"message":"hi"}`,
			serviceErr: service.WrapError(service.ErrNotFound, "conversation conv-1"),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "internal error",
			body:       `{"message":"hi"}`,
			serviceErr: errors.New("backend down"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewChatHandler(&fakeChatService{err: tt.serviceErr})
			rec := chatRequest(t, handler, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if resp.Error == "" {
				t.Error("error response missing message")
			}
		})
	}
}
