package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"vidsage-ai/internal/insights"
	"vidsage-ai/internal/storage"
)

type fakeInsightService struct {
	insight     *storage.Insight
	wasCacheHit bool
	err         error
	chunkIDs    []string
	chunksErr   error

	gotForce    bool
	gotVideoIDs []string
	gotTopicID  string
}

func (f *fakeInsightService) GetOrGenerate(ctx context.Context, conversationID, userID string, videoIDs []string, rootLabel string, forceRegenerate bool) (*storage.Insight, bool, error) {
	f.gotVideoIDs = videoIDs
	f.gotForce = forceRegenerate
	if f.err != nil {
		return nil, false, f.err
	}
	return f.insight, f.wasCacheHit, nil
}

func (f *fakeInsightService) GetTopicChunks(ctx context.Context, conversationID, topicID string) ([]string, error) {
	f.gotTopicID = topicID
	if f.chunksErr != nil {
		return nil, f.chunksErr
	}
	return f.chunkIDs, nil
}

func insightsRouter(handler *InsightsHandler) http.Handler {
	router := chi.NewRouter()
	router.Post("/api/conversations/{conversationID}/insights", handler.Generate)
	router.Get("/api/conversations/{conversationID}/insights/topics/{topicID}/chunks", handler.TopicChunks)
	return router
}

func TestInsightsHandlerGenerate(t *testing.T) {
	svc := &fakeInsightService{
		insight: &storage.Insight{
			ID:                    "ins-1",
			ConversationID:        "conv-1",
			VideoIDs:              []string{"vid-1"},
			GraphData:             []byte(`{"nodes":[],"edges":[]}`),
			TopicChunks:           []byte(`{}`),
			TopicsCount:           4,
			TotalChunksAnalyzed:   40,
			GenerationTimeSeconds: 2.5,
		},
		wasCacheHit: true,
	}
	handler := NewInsightsHandler(svc)

	body := `{"user_id":"user-1","video_ids":["vid-1"],"root_label":"Egypt","force_regenerate":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/conversations/conv-1/insights", strings.NewReader(body))
	rec := httptest.NewRecorder()
	insightsRouter(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !svc.gotForce {
		t.Error("force_regenerate not passed through")
	}

	var resp InsightsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "ins-1" || !resp.WasCacheHit {
		t.Errorf("ID = %q, WasCacheHit = %v", resp.ID, resp.WasCacheHit)
	}
	if resp.TopicsCount != 4 || resp.TotalChunksAnalyzed != 40 {
		t.Errorf("TopicsCount = %d, TotalChunksAnalyzed = %d", resp.TopicsCount, resp.TotalChunksAnalyzed)
	}
	if string(resp.Graph) != `{"nodes":[],"edges":[]}` {
		t.Errorf("Graph = %s, want the stored graph passed through verbatim", resp.Graph)
	}
}

func TestInsightsHandlerGenerateErrors(t *testing.T) {
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
			name:       "empty video ids",
			body:       `{"video_ids":[]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no chunks",
			body:       `{"video_ids":["vid-1"]}`,
			serviceErr: fmt.Errorf("generation: %w", insights.ErrNoChunks),
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "internal error",
			body:       `{"video_ids":["vid-1"]}`,
			serviceErr: fmt.Errorf("all batches failed"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewInsightsHandler(&fakeInsightService{err: tt.serviceErr})
			req := httptest.NewRequest(http.MethodPost, "/api/conversations/conv-1/insights", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			insightsRouter(handler).ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestInsightsHandlerTopicChunks(t *testing.T) {
	svc := &fakeInsightService{chunkIDs: []string{"c1", "c2"}}
	handler := NewInsightsHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/conv-1/insights/topics/pyramid-construction/chunks", nil)
	rec := httptest.NewRecorder()
	insightsRouter(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.gotTopicID != "pyramid-construction" {
		t.Errorf("topic id = %q", svc.gotTopicID)
	}

	var resp TopicChunksResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.ChunkIDs) != 2 {
		t.Errorf("ChunkIDs = %v", resp.ChunkIDs)
	}
}

func TestInsightsHandlerTopicChunksNotFound(t *testing.T) {
	svc := &fakeInsightService{chunksErr: fmt.Errorf("topic %q: %w", "nope", insights.ErrTopicNotFound)}
	handler := NewInsightsHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/conv-1/insights/topics/nope/chunks", nil)
	rec := httptest.NewRecorder()
	insightsRouter(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
