package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_insight_store.go -package=mocks vidsage-ai/internal/storage InsightStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// InsightStore defines the interface for cached conversation insights.
type InsightStore interface {
	// GetLatest returns the most recent insight row for a conversation.
	// Returns ErrNotFound when the conversation has no cached insight.
	GetLatest(ctx context.Context, conversationID string) (*Insight, error)
	// Replace inserts a new current insight row for the conversation.
	// Older rows are retained for audit but are never read back.
	Replace(ctx context.Context, insight *Insight) error
}

// InsightRepo provides methods for conversation insight operations.
// It implements the InsightStore interface.
type InsightRepo struct {
	db *sql.DB
}

// NewInsightRepo creates a new InsightRepo.
func NewInsightRepo(db *sql.DB) *InsightRepo {
	return &InsightRepo{db: db}
}

// GetLatest returns the most recent insight row for a conversation.
func (r *InsightRepo) GetLatest(ctx context.Context, conversationID string) (*Insight, error) {
	var insight Insight
	var videoIDs string
	var graphData, topicChunks string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, conversation_id, video_ids, graph_data, topic_chunks, topics_count,
			total_chunks_analyzed, generation_time_seconds, extraction_prompt_version, created_at
		 FROM conversation_insights WHERE conversation_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		conversationID,
	).Scan(&insight.ID, &insight.ConversationID, &videoIDs, &graphData, &topicChunks,
		&insight.TopicsCount, &insight.TotalChunksAnalyzed, &insight.GenerationTimeSeconds,
		&insight.ExtractionPromptVersion, &insight.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query insight: %w", err)
	}

	if err := json.Unmarshal([]byte(videoIDs), &insight.VideoIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal video ids: %w", err)
	}
	insight.GraphData = []byte(graphData)
	insight.TopicChunks = []byte(topicChunks)

	return &insight, nil
}

// Replace inserts a new current insight row for the conversation.
func (r *InsightRepo) Replace(ctx context.Context, insight *Insight) error {
	videoIDs, err := json.Marshal(insight.VideoIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal video ids: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO conversation_insights
			(id, conversation_id, video_ids, graph_data, topic_chunks, topics_count,
			 total_chunks_analyzed, generation_time_seconds, extraction_prompt_version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		insight.ID, insight.ConversationID, string(videoIDs), string(insight.GraphData),
		string(insight.TopicChunks), insight.TopicsCount, insight.TotalChunksAnalyzed,
		insight.GenerationTimeSeconds, insight.ExtractionPromptVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to insert insight: %w", err)
	}
	return nil
}
