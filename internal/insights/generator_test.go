package insights

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"vidsage-ai/internal/llm"
	"vidsage-ai/internal/storage"
)

// fakeCompletionClient returns one canned response (or error) per call, in
// order, cycling the last entry when calls outnumber responses.
type fakeCompletionClient struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
}

func (f *fakeCompletionClient) Complete(ctx context.Context, messages []llm.Message, params llm.ChatParams) (llm.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return llm.Completion{}, f.errs[idx]
	}
	if len(f.responses) == 0 {
		return llm.Completion{}, errors.New("no canned response")
	}
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return llm.Completion{Content: f.responses[idx]}, nil
}

func (f *fakeCompletionClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func makeChunks(n int) []storage.Chunk {
	chunks := make([]storage.Chunk, n)
	for i := range chunks {
		chunks[i] = storage.Chunk{
			ID:      fmt.Sprintf("chunk-%d", i),
			VideoID: "vid-1",
			Text:    fmt.Sprintf("transcript excerpt %d", i),
		}
	}
	return chunks
}

func TestGenerateSingleBatch(t *testing.T) {
	client := &fakeCompletionClient{
		responses: []string{`[{"label":"Pyramid Construction","description":"building methods","chunks":[0,1]},
			{"label":"Nile Flooding","description":"agriculture","chunks":[2]}]`},
	}
	generator := NewGenerator(client, GeneratorConfig{BatchChunks: 10, MaxTopics: 12})

	graph, topicChunks, err := generator.Generate(context.Background(), "Egypt", makeChunks(3))
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if client.callCount() != 1 {
		t.Errorf("made %d completion calls, want 1", client.callCount())
	}
	if len(graph.Nodes) != 2 {
		t.Fatalf("got %d topics, want 2", len(graph.Nodes))
	}
	if graph.RootLabel != "Egypt" {
		t.Errorf("RootLabel = %q", graph.RootLabel)
	}
	chunks := topicChunks["pyramid-construction"]
	if len(chunks) != 2 || chunks[0] != "chunk-0" || chunks[1] != "chunk-1" {
		t.Errorf("pyramid-construction chunks = %v, want excerpt numbers mapped to chunk ids", chunks)
	}
}

func TestGenerateBatches(t *testing.T) {
	client := &fakeCompletionClient{
		responses: []string{`[{"label":"Topic","description":"","chunks":[0,1]}]`},
	}
	generator := NewGenerator(client, GeneratorConfig{BatchChunks: 2, MaxTopics: 12})

	_, _, err := generator.Generate(context.Background(), "root", makeChunks(5))
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if client.callCount() != 3 {
		t.Errorf("made %d completion calls, want 3 batches of 2,2,1", client.callCount())
	}
}

func TestGenerateToleratesPartialBatchFailure(t *testing.T) {
	client := &fakeCompletionClient{
		responses: []string{
			`[{"label":"Surviving Topic","description":"","chunks":[0]}]`,
			"",
		},
		errs: []error{nil, errors.New("backend timeout")},
	}
	generator := NewGenerator(client, GeneratorConfig{BatchChunks: 2, MaxTopics: 12})

	graph, _, err := generator.Generate(context.Background(), "root", makeChunks(4))
	if err != nil {
		t.Fatalf("partial batch failure should not fail generation, got %v", err)
	}
	if len(graph.Nodes) != 1 || graph.Nodes[0].ID != "surviving-topic" {
		t.Errorf("nodes = %v, want the surviving batch's topic", graph.Nodes)
	}
}

func TestGenerateFailsWhenAllBatchesFail(t *testing.T) {
	client := &fakeCompletionClient{
		errs: []error{errors.New("backend down"), errors.New("backend down")},
	}
	generator := NewGenerator(client, GeneratorConfig{BatchChunks: 2, MaxTopics: 12})

	if _, _, err := generator.Generate(context.Background(), "root", makeChunks(4)); err == nil {
		t.Fatal("Generate() should fail when every batch fails")
	}
}

func TestGenerateSkipsOutOfRangeExcerptNumbers(t *testing.T) {
	client := &fakeCompletionClient{
		responses: []string{`[{"label":"Topic","description":"","chunks":[0,7,-1]}]`},
	}
	generator := NewGenerator(client, GeneratorConfig{BatchChunks: 10, MaxTopics: 12})

	_, topicChunks, err := generator.Generate(context.Background(), "root", makeChunks(2))
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if got := topicChunks["topic"]; len(got) != 1 || got[0] != "chunk-0" {
		t.Errorf("chunks = %v, want only the in-range excerpt", got)
	}
}

func TestGenerateParsesFencedOutput(t *testing.T) {
	client := &fakeCompletionClient{
		responses: []string{"```json\n[{\"label\":\"Topic\",\"description\":\"\",\"chunks\":[0]}]\n```"},
	}
	generator := NewGenerator(client, GeneratorConfig{BatchChunks: 10, MaxTopics: 12})

	graph, _, err := generator.Generate(context.Background(), "root", makeChunks(1))
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if len(graph.Nodes) != 1 {
		t.Errorf("got %d topics from fenced output, want 1", len(graph.Nodes))
	}
}
