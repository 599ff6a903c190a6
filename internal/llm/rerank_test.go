package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRerank(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/rerank" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}

		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Query != "pyramid construction" {
			t.Errorf("query = %q", req.Query)
		}
		if len(req.Documents) != 3 {
			t.Errorf("got %d documents, want 3", len(req.Documents))
		}

		// Results intentionally out of input order; the client must
		// re-assemble scores by index.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 2, "relevance_score": 0.9},
				{"index": 0, "relevance_score": 0.3},
				{"index": 1, "relevance_score": 0.7},
			},
		})
	}))
	defer server.Close()

	client := NewRerankClient(server.URL, "key", "reranker-model")
	scores, err := client.Rerank(context.Background(), "pyramid construction", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Rerank() returned error: %v", err)
	}

	want := []float32{0.3, 0.7, 0.9}
	for i, s := range want {
		if scores[i] != s {
			t.Errorf("scores[%d] = %f, want %f", i, scores[i], s)
		}
	}
}

func TestRerankScoreCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 0, "relevance_score": 0.5},
			},
		})
	}))
	defer server.Close()

	client := NewRerankClient(server.URL, "key", "reranker-model")
	if _, err := client.Rerank(context.Background(), "q", []string{"a", "b"}); err == nil {
		t.Fatal("Rerank() should fail when score count does not match document count")
	}
}

func TestRerankIndexOutOfRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 0, "relevance_score": 0.5},
				{"index": 7, "relevance_score": 0.9},
			},
		})
	}))
	defer server.Close()

	client := NewRerankClient(server.URL, "key", "reranker-model")
	if _, err := client.Rerank(context.Background(), "q", []string{"a", "b"}); err == nil {
		t.Fatal("Rerank() should fail on out-of-range result index")
	}
}

func TestRerankEmptyDocuments(t *testing.T) {
	client := NewRerankClient("http://localhost:0", "key", "reranker-model")
	if _, err := client.Rerank(context.Background(), "q", nil); err == nil {
		t.Fatal("Rerank() should reject empty document list")
	}
}

func TestRerankServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewRerankClient(server.URL, "key", "reranker-model")
	if _, err := client.Rerank(context.Background(), "q", []string{"a"}); err == nil {
		t.Fatal("Rerank() should surface server errors")
	}
}
