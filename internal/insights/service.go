package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"vidsage-ai/internal/contextutil"
	"vidsage-ai/internal/storage"
)

// Service caches one topic-graph insight per conversation, regenerating on
// demand. Generation for a conversation is single-flight: concurrent callers
// block on the in-flight run and share its result instead of triggering a
// duplicate batch of model calls.
type Service struct {
	generator *Generator
	chunks    storage.ChunkStore
	insights  storage.InsightStore
	group     singleflight.Group
}

// NewService creates a new Service.
func NewService(generator *Generator, chunks storage.ChunkStore, insights storage.InsightStore) *Service {
	return &Service{generator: generator, chunks: chunks, insights: insights}
}

// GetOrGenerate returns the conversation's insight and whether it came from
// cache. A cached row is valid only while the selected video set is unchanged;
// adding or removing a video invalidates it. Generation errors are reported
// to the caller, distinct from a plain cache miss.
func (s *Service) GetOrGenerate(ctx context.Context, conversationID, userID string, videoIDs []string, rootLabel string, forceRegenerate bool) (*storage.Insight, bool, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if !forceRegenerate {
		cached, err := s.insights.GetLatest(ctx, conversationID)
		switch {
		case err == nil && sameVideoSet(cached.VideoIDs, videoIDs):
			logger.DebugContext(ctx, "insight cache hit", "conversation_id", conversationID)
			return cached, true, nil
		case err == nil:
			logger.InfoContext(ctx, "insight cache invalidated by changed video selection",
				"conversation_id", conversationID)
		case !errors.Is(err, storage.ErrNotFound):
			return nil, false, fmt.Errorf("failed to read insight cache: %w", err)
		}
	}

	result, err, _ := s.group.Do(conversationID, func() (any, error) {
		// Re-check under the flight: a caller that arrived just after a
		// concurrent generation persisted should observe that result, not
		// start a duplicate batch run.
		if !forceRegenerate {
			if cached, err := s.insights.GetLatest(ctx, conversationID); err == nil && sameVideoSet(cached.VideoIDs, videoIDs) {
				return cached, nil
			}
		}
		return s.generate(ctx, conversationID, userID, videoIDs, rootLabel)
	})
	if err != nil {
		return nil, false, err
	}
	return result.(*storage.Insight), false, nil
}

// GetTopicChunks returns the ordered chunk ids for a topic from the latest
// cached insight. It is a pure cache lookup: an unknown topic id or a missing
// cache yields ErrTopicNotFound and never triggers regeneration.
func (s *Service) GetTopicChunks(ctx context.Context, conversationID, topicID string) ([]string, error) {
	cached, err := s.insights.GetLatest(ctx, conversationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("topic %q: %w", topicID, ErrTopicNotFound)
		}
		return nil, fmt.Errorf("failed to read insight cache: %w", err)
	}

	var topicChunks map[string][]string
	if err := json.Unmarshal(cached.TopicChunks, &topicChunks); err != nil {
		return nil, fmt.Errorf("corrupt topic_chunks for conversation %s: %w", conversationID, err)
	}

	chunkIDs, ok := topicChunks[topicID]
	if !ok {
		return nil, fmt.Errorf("topic %q: %w", topicID, ErrTopicNotFound)
	}
	return chunkIDs, nil
}

func (s *Service) generate(ctx context.Context, conversationID, userID string, videoIDs []string, rootLabel string) (*storage.Insight, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	chunks, err := s.chunks.ListByVideos(ctx, videoIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	graph, topicChunks, err := s.generator.Generate(ctx, rootLabel, chunks)
	if err != nil {
		return nil, fmt.Errorf("insight generation failed: %w", err)
	}

	graphData, err := json.Marshal(graph)
	if err != nil {
		return nil, fmt.Errorf("failed to encode topic graph: %w", err)
	}
	topicData, err := json.Marshal(topicChunks)
	if err != nil {
		return nil, fmt.Errorf("failed to encode topic chunk map: %w", err)
	}

	insight := &storage.Insight{
		ID:                      uuid.New().String(),
		ConversationID:          conversationID,
		VideoIDs:                videoIDs,
		GraphData:               graphData,
		TopicChunks:             topicData,
		TopicsCount:             len(graph.Nodes),
		TotalChunksAnalyzed:     len(chunks),
		GenerationTimeSeconds:   time.Since(start).Seconds(),
		ExtractionPromptVersion: ExtractionPromptVersion,
	}
	if err := s.insights.Replace(ctx, insight); err != nil {
		return nil, fmt.Errorf("failed to persist insight: %w", err)
	}

	logger.InfoContext(ctx, "insight generated",
		"conversation_id", conversationID,
		"user_id", userID,
		"topics", insight.TopicsCount,
		"chunks", insight.TotalChunksAnalyzed,
		"seconds", insight.GenerationTimeSeconds)
	return insight, nil
}

// sameVideoSet compares two video id lists as sets.
func sameVideoSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
