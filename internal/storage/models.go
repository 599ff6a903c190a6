package storage

import "time"

// Video represents a source video whose transcript has been ingested.
type Video struct {
	ID        string // UUID
	Title     string
	CreatedAt time.Time
}

// Chunk represents an immutable transcript excerpt, the atomic retrieval unit.
// Chunks are produced by the ingestion pipeline; this layer only reads them.
type Chunk struct {
	ID            string // UUID (same as Qdrant point ID)
	VideoID       string // Foreign key to videos.id
	ChunkIndex    int    // Index within the video transcript (starts at 0)
	StartSeconds  float64
	EndSeconds    float64
	ChapterTitle  string
	Keywords      []string
	Text          string
	EmbeddingText string // Text variant used at index time
}

// Conversation represents a chat conversation over a set of source videos.
type Conversation struct {
	ID        string // UUID
	UserID    string
	Title     string
	CreatedAt time.Time
}

// Message represents one turn in a conversation.
type Message struct {
	ID             string // UUID
	ConversationID string
	TurnIndex      int
	Role           string // "user" or "assistant"
	Content        string
	CreatedAt      time.Time
}

// Fact categories, ordered here from most to least scope-stable.
const (
	FactCategoryIdentity   = "identity"
	FactCategoryPreference = "preference"
	FactCategoryTopic      = "topic"
	FactCategorySession    = "session"
)

// Fact represents a durable conversation fact extracted from a message.
// (conversation_id, fact_key) is unique; re-extraction of the same key
// overwrites the row rather than duplicating it.
type Fact struct {
	ID              string // UUID
	ConversationID  string
	FactKey         string
	FactValue       string
	SourceTurn      int
	ConfidenceScore float64 // 0-1, extractor certainty
	Importance      float64 // 0-1, rated significance
	Category        string  // identity | topic | preference | session
	LastAccessed    *time.Time
	AccessCount     int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Insight is a cached topic-graph artifact for a conversation. GraphData and
// TopicChunks are opaque JSON owned by the insights package; at most one row
// per conversation is current (the most recently created one).
type Insight struct {
	ID                      string // UUID
	ConversationID          string
	VideoIDs                []string
	GraphData               []byte // JSON topic graph
	TopicChunks             []byte // JSON topic-id -> ordered chunk-id list
	TopicsCount             int
	TotalChunksAnalyzed     int
	GenerationTimeSeconds   float64
	ExtractionPromptVersion string
	CreatedAt               time.Time
}
