package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"vidsage-ai/internal/contextutil"
	"vidsage-ai/internal/llm"
	"vidsage-ai/internal/storage"
)

// ExtractionPromptVersion is stored with every insight so cached rows can be
// told apart from ones generated by a newer prompt.
const ExtractionPromptVersion = "v1"

const topicSystemPrompt = "You analyze video transcript excerpts and group them into topics. " +
	"Each excerpt is numbered. Return a JSON array of objects with fields: " +
	"\"label\" (2-5 word topic name), \"description\" (one sentence), " +
	"\"chunks\" (array of excerpt numbers belonging to the topic). " +
	"Every excerpt should belong to at least one topic. " +
	"Return only the JSON array, with no explanation."

// CompletionClient is the chat-completion capability topic extraction needs.
// *llm.Client satisfies it.
type CompletionClient interface {
	Complete(ctx context.Context, messages []llm.Message, params llm.ChatParams) (llm.Completion, error)
}

// GeneratorConfig holds the batching knobs for topic extraction.
type GeneratorConfig struct {
	BatchChunks int // chunks per completion call
	MaxTopics   int // cap on topics in the final graph
}

// Generator runs batched topic extraction over a chunk set and assembles the
// results into a topic graph.
type Generator struct {
	client CompletionClient
	cfg    GeneratorConfig
}

// NewGenerator creates a new Generator.
func NewGenerator(client CompletionClient, cfg GeneratorConfig) *Generator {
	return &Generator{client: client, cfg: cfg}
}

// batchTopic is the wire shape one extraction call returns per topic.
type batchTopic struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	Chunks      []int  `json:"chunks"`
}

// Generate extracts a topic graph from the given chunks. Batches fail
// independently; an error is returned only when every batch fails.
func (g *Generator) Generate(ctx context.Context, rootLabel string, chunks []storage.Chunk) (TopicGraph, map[string][]string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	batchSize := g.cfg.BatchChunks
	if batchSize <= 0 {
		batchSize = len(chunks)
	}

	builder := newGraphBuilder()
	batches := 0
	failed := 0
	var firstErr error
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		topics, err := g.extractBatch(ctx, batch)
		batches++
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			logger.WarnContext(ctx, "topic extraction batch failed",
				"batch", batches, "chunks", len(batch), "error", err)
			continue
		}

		for _, t := range topics {
			chunkIDs := make([]string, 0, len(t.Chunks))
			for _, idx := range t.Chunks {
				if idx < 0 || idx >= len(batch) {
					continue
				}
				chunkIDs = append(chunkIDs, batch[idx].ID)
			}
			builder.add(batches, t.Label, t.Description, chunkIDs)
		}
	}

	if failed == batches {
		return TopicGraph{}, nil, fmt.Errorf("all %d topic extraction batches failed: %w", batches, firstErr)
	}

	graph, topicChunks := builder.build(rootLabel, g.cfg.MaxTopics)
	return graph, topicChunks, nil
}

// extractBatch runs one completion over a numbered excerpt list and parses
// the returned topic array.
func (g *Generator) extractBatch(ctx context.Context, batch []storage.Chunk) ([]batchTopic, error) {
	var prompt strings.Builder
	for i, chunk := range batch {
		if chunk.ChapterTitle != "" {
			fmt.Fprintf(&prompt, "[%d] (%s) %s\n", i, chunk.ChapterTitle, chunk.Text)
		} else {
			fmt.Fprintf(&prompt, "[%d] %s\n", i, chunk.Text)
		}
	}

	messages := []llm.Message{
		{Role: "system", Content: topicSystemPrompt},
		{Role: "user", Content: prompt.String()},
	}
	completion, err := g.client.Complete(ctx, messages, llm.ChatParams{
		MaxTokens:   1500,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, err
	}

	cleaned := strings.TrimSpace(completion.Content)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.Index(cleaned, "\n"); idx >= 0 {
			cleaned = cleaned[idx+1:]
		}
		cleaned = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(cleaned), "```"))
	}
	if idx := strings.Index(cleaned, "["); idx > 0 {
		cleaned = cleaned[idx:]
	}

	var topics []batchTopic
	if err := json.Unmarshal([]byte(cleaned), &topics); err != nil {
		return nil, fmt.Errorf("unparseable topic extraction output: %w", err)
	}
	return topics, nil
}
